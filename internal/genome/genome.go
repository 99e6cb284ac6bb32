package genome

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	geneSeparator  = "|"
	valueSeparator = "="
)

var (
	geneSplit  = regexp.MustCompile(`[|,]`)
	valueSplit = regexp.MustCompile(`[$=\-]`)
)

// Gene is a catalog definition with its resolved value.
type Gene struct {
	Definition
	Value Value
	// Enabled is set for genes given explicitly in the parsed string.
	Enabled bool
}

// Genome is a full set of genes in catalog order. Every catalog gene is present.
type Genome struct {
	catalog *Catalog
	genes   []Gene
}

// New returns a genome holding catalog defaults.
func New(catalog *Catalog) *Genome {
	defs := catalog.Definitions()
	g := &Genome{catalog: catalog, genes: make([]Gene, len(defs))}
	for i, d := range defs {
		g.genes[i] = Gene{Definition: d, Value: d.Default}
	}
	return g
}

// Parse overlays the declarations in s onto catalog defaults.
// On any error no genome is returned.
func Parse(catalog *Catalog, s string) (*Genome, error) {
	g := New(catalog)

	for _, decl := range geneSplit.Split(s, -1) {
		if decl == "" {
			continue
		}

		pieces := valueSplit.Split(decl, -1)
		name := pieces[0]

		i, ok := catalog.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGene, name)
		}

		v, err := parseValue(g.genes[i].Definition, pieces[1:])
		if err != nil {
			return nil, err
		}

		g.genes[i].Value = v
		g.genes[i].Enabled = true
	}

	return g, nil
}

func parseValue(d Definition, args []string) (Value, error) {
	if d.Kind == Flag && len(args) == 0 {
		return FlagValue(true), nil
	}
	if len(args) != 1 {
		return Value{}, fmt.Errorf("%w: %s expects one value, got %d", ErrInvalidGeneValue, d.Name, len(args))
	}
	raw := args[0]

	switch d.Kind {
	case Flag:
		switch strings.ToLower(raw) {
		case "y", "yes":
			return FlagValue(true), nil
		case "n", "no":
			return FlagValue(false), nil
		}
		return Value{}, fmt.Errorf("%w: %s flag %q", ErrInvalidGeneValue, d.Name, raw)

	case Numeric, BuyWeight, SellWeight:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s number %q", ErrInvalidGeneValue, d.Name, raw)
		}
		return Value{Kind: d.Kind, Num: f}, nil

	case TimescaleKind:
		ts, ok := ParseTimescale(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s %q", ErrUnknownTimescale, d.Name, raw)
		}
		return Value{Kind: TimescaleKind, Scale: ts}, nil

	case Percent:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s percentage %q", ErrInvalidGeneValue, d.Name, raw)
		}
		// Serialized as value*100 but read back scaled again. Persisted
		// state files depend on this exact behavior.
		return Value{Kind: Percent, Num: math.Round(f*100*100) / 100}, nil
	}

	return Value{}, fmt.Errorf("%w: %s has kind %s", ErrInvalidGeneValue, d.Name, d.Kind)
}

// Serialize renders the genome in catalog order. With full unset only genes
// that differ from their default are written.
func (g *Genome) Serialize(full bool) string {
	parts := make([]string, 0, len(g.genes))
	for _, gene := range g.genes {
		if !full && gene.Value.Equal(gene.Default) {
			continue
		}
		parts = append(parts, gene.Name+valueSeparator+formatValue(gene.Value))
	}
	return strings.Join(parts, geneSeparator)
}

// String returns the short form.
func (g *Genome) String() string { return g.Serialize(false) }

func formatValue(v Value) string {
	switch v.Kind {
	case Flag:
		if v.Flag {
			return "y"
		}
		return "n"
	case TimescaleKind:
		return string(v.Scale)
	case Percent:
		return formatFloat(v.Num * 100)
	default:
		return formatFloat(v.Num)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Get returns the value of a catalog gene. ok is false for unknown names.
func (g *Genome) Get(name string) (Value, bool) {
	i, ok := g.catalog.index[name]
	if !ok {
		return Value{}, false
	}
	return g.genes[i].Value, true
}

// Gene returns the full gene record for name.
func (g *Genome) Gene(name string) (Gene, bool) {
	i, ok := g.catalog.index[name]
	if !ok {
		return Gene{}, false
	}
	return g.genes[i], true
}

// Float returns the numeric value of name, or 0 if absent.
func (g *Genome) Float(name string) float64 {
	v, _ := g.Get(name)
	return v.Num
}

// Bool returns the flag value of name, or false if absent.
func (g *Genome) Bool(name string) bool {
	v, _ := g.Get(name)
	return v.Flag
}

// Timescale returns the interval gene TS.
func (g *Genome) Timescale() Timescale {
	v, ok := g.Get("TS")
	if !ok || v.Scale == "" {
		return Minute
	}
	return v.Scale
}

// Genes returns a copy of all genes in catalog order.
func (g *Genome) Genes() []Gene {
	out := make([]Gene, len(g.genes))
	copy(out, g.genes)
	return out
}

// Catalog returns the catalog the genome was built from.
func (g *Genome) Catalog() *Catalog { return g.catalog }
