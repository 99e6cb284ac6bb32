package intake

import (
	"math"

	"github.com/cinar/indicator"
	"github.com/samber/lo"
)

// Moving average windows and RSI period used by the trade bot.
const (
	RSIPeriod      = 6
	MAWindowSmall  = 7
	MAWindowMedium = 25
	MAWindowLarge  = 99
)

// Indicators is the per-tick view of the market the engine decides on.
type Indicators struct {
	RSI             float64
	BollingerUpper  float64
	BollingerMiddle float64
	BollingerLower  float64
	MASmall         float64
	MAMedium        float64
	MALarge         float64
}

// IndicatorFunc derives indicators from a close series whose last element is
// the current price.
type IndicatorFunc func(closes []float64) Indicators

// ComputeIndicators is the default IndicatorFunc.
func ComputeIndicators(closes []float64) Indicators {
	if len(closes) == 0 {
		return Indicators{RSI: math.NaN()}
	}

	_, rsi := indicator.RsiPeriod(RSIPeriod, closes)
	middle, upper, lower := indicator.BollingerBands(closes)

	return Indicators{
		RSI:             lo.LastOrEmpty(rsi),
		BollingerUpper:  lo.LastOrEmpty(upper),
		BollingerMiddle: lo.LastOrEmpty(middle),
		BollingerLower:  lo.LastOrEmpty(lower),
		MASmall:         lo.LastOrEmpty(indicator.Sma(MAWindowSmall, closes)),
		MAMedium:        lo.LastOrEmpty(indicator.Sma(MAWindowMedium, closes)),
		MALarge:         lo.LastOrEmpty(indicator.Sma(MAWindowLarge, closes)),
	}
}
