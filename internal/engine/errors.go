package engine

import (
	"errors"

	"stonkminer/internal/agent"
)

// Engine errors. Submission and query failures leave the phase unchanged and
// the decision is retried on a later tick.
var (
	ErrOrderSubmission = errors.New("order submission failed")
	ErrOrderQuery      = errors.New("order query failed")
	ErrNoPreviousTrade = errors.New("no previous trade in ledger")
	ErrInvalidOptions  = errors.New("invalid engine options")

	// ErrUnknownKind is returned by NewForKind for unsupported agent kinds.
	ErrUnknownKind = agent.ErrUnknownKind
)
