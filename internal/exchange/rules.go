package exchange

import "github.com/shopspring/decimal"

// SymbolRules are the price and quantity increments a pair trades in.
type SymbolRules struct {
	TickSize            float64
	StepSize            float64
	QuoteAssetPrecision int
}

// Normalize rounds price to the nearest tick and qty to the nearest step.
// Zero increments leave the value unchanged.
func (r SymbolRules) Normalize(price, qty float64) (float64, float64) {
	return RoundStep(price, r.TickSize), RoundStep(qty, r.StepSize)
}

// RoundStep rounds v to the nearest multiple of step.
func RoundStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Round(0).Mul(s).Float64()
	return out
}
