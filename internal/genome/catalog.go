// Package genome encodes the tunable parameters of a trading agent as a
// compact "genetics" string such as "RSIL=20|RSIH=80|BBBBO".
package genome

// Kind is the value domain of a gene.
type Kind int

const (
	Numeric Kind = iota + 1
	Flag
	BuyWeight
	SellWeight
	TimescaleKind
	Percent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Flag:
		return "flag"
	case BuyWeight:
		return "buy-weight"
	case SellWeight:
		return "sell-weight"
	case TimescaleKind:
		return "timescale"
	case Percent:
		return "percent"
	default:
		return "unknown"
	}
}

// Timescale is the candle interval an agent trades on.
type Timescale string

const (
	Minute Timescale = "1m"
	Hour   Timescale = "1h"
	Day    Timescale = "1d"
)

// ParseTimescale validates s against the supported intervals.
func ParseTimescale(s string) (Timescale, bool) {
	switch Timescale(s) {
	case Minute, Hour, Day:
		return Timescale(s), true
	}
	return "", false
}

// Value holds a typed gene value. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Num   float64
	Flag  bool
	Scale Timescale
}

// NumValue builds a Numeric value.
func NumValue(v float64) Value { return Value{Kind: Numeric, Num: v} }

// FlagValue builds a Flag value.
func FlagValue(v bool) Value { return Value{Kind: Flag, Flag: v} }

// Equal reports whether two values are the same.
func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Num == o.Num && v.Flag == o.Flag && v.Scale == o.Scale
}

// Definition describes one gene in the catalog.
type Definition struct {
	Name    string
	Title   string
	Kind    Kind
	Default Value
}

// Catalog is the ordered, read-only set of known genes.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// NewCatalog builds a catalog from definitions, keeping their order.
// A later definition with a duplicate name replaces the earlier one in place.
func NewCatalog(defs []Definition) *Catalog {
	c := &Catalog{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if i, ok := c.index[d.Name]; ok {
			c.defs[i] = d
			continue
		}
		c.index[d.Name] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c
}

// DefaultCatalog returns the trade bot gene catalog.
func DefaultCatalog() *Catalog {
	num := func(name, title string, kind Kind, v float64) Definition {
		return Definition{Name: name, Title: title, Kind: kind, Default: Value{Kind: kind, Num: v}}
	}
	flag := func(name, title string) Definition {
		return Definition{Name: name, Title: title, Kind: Flag, Default: FlagValue(false)}
	}

	return NewCatalog([]Definition{
		{Name: "TS", Title: "Timescale", Kind: TimescaleKind, Default: Value{Kind: TimescaleKind, Scale: Minute}},
		num("BT", "Buy signal threshold", Numeric, 1),
		num("ST", "Sell signal threshold", Numeric, 1),
		num("PLI", "Profit locking interval %", Percent, 0.1),
		num("PLT", "Profit locking buffer %", Percent, 0.05),
		num("SLF", "Stop loss floor %", Percent, 1),

		// Bollinger bands
		flag("BBUC", "Use close instead of low/high"),
		flag("BBBBO", "Buy breakouts only"),
		flag("BBSBO", "Sell breakouts only"),
		num("BWBBL", "Buy weight for a low escape", BuyWeight, 1),
		num("SWBBH", "Sell weight for a high escape", SellWeight, 1),

		// RSI
		num("RSIL", "RSI lower threshold", Numeric, 33.33),
		num("RSIH", "RSI upper threshold", Numeric, 66.66),
		num("BWRSI", "Buy weight for RSI below lower", Numeric, 1),
		num("SWRSI", "Sell weight for RSI above upper", Numeric, 1),
	})
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	i, ok := c.index[name]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Definitions returns a copy of the definitions in declaration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of genes.
func (c *Catalog) Len() int { return len(c.defs) }
