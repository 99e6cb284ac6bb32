package genome

import "errors"

// Parse errors. All of them reject the whole genome string.
var (
	// ErrUnknownGene is returned when a declaration names a gene outside the catalog.
	ErrUnknownGene = errors.New("unknown gene")

	// ErrInvalidGeneValue is returned when a value does not fit the gene kind.
	ErrInvalidGeneValue = errors.New("invalid gene value")

	// ErrUnknownTimescale is returned for a Timescale value outside 1m/1h/1d.
	ErrUnknownTimescale = errors.New("unknown timescale")
)
