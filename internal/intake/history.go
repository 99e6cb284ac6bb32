// Package intake maintains the rolling candle history of an agent and derives
// the per-tick indicator snapshot the decision engine reads.
package intake

import (
	"github.com/samber/lo"
	"go.uber.org/zap"

	"stonkminer/internal/domain"
)

// snapshotWindow bounds the close series fed to indicators on each tick.
const snapshotWindow = 1000

// HistoryOptions configures a History.
type HistoryOptions struct {
	// MaxLen trims the oldest candles once exceeded. Zero keeps everything.
	MaxLen int
	Logger *zap.Logger
}

// History is an append-only window of closed candles.
type History struct {
	candles []domain.Candle
	maxLen  int
	logger  *zap.Logger
}

// NewHistory creates an empty history.
func NewHistory(opts HistoryOptions) *History {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{maxLen: opts.MaxLen, logger: logger}
}

// Ingest appends c. A candle with the same close time as the last row is
// logged and dropped. Returns whether the candle was appended.
func (h *History) Ingest(c domain.Candle) bool {
	if last, ok := h.Last(); ok && last.CloseTime == c.CloseTime {
		h.logger.Warn("duplicate candle skipped",
			zap.Int64("close_time", c.CloseTime),
			zap.Float64("close", c.Close))
		return false
	}

	h.candles = append(h.candles, c)
	if h.maxLen > 0 && len(h.candles) > h.maxLen {
		h.candles = append([]domain.Candle(nil), h.candles[len(h.candles)-h.maxLen:]...)
	}
	return true
}

// Last returns the most recent candle.
func (h *History) Last() (domain.Candle, bool) {
	if len(h.candles) == 0 {
		return domain.Candle{}, false
	}
	return h.candles[len(h.candles)-1], true
}

// Len returns the number of candles held.
func (h *History) Len() int { return len(h.candles) }

// Candles returns a copy of the window.
func (h *History) Candles() []domain.Candle {
	out := make([]domain.Candle, len(h.candles))
	copy(out, h.candles)
	return out
}

// Closes returns the close price series.
func (h *History) Closes() []float64 {
	return lo.Map(h.candles, func(c domain.Candle, _ int) float64 { return c.Close })
}

// Snapshot computes indicators over the last closes with price appended as
// the in-progress close. Committed history is not touched.
func (h *History) Snapshot(price float64, fn IndicatorFunc) Indicators {
	if fn == nil {
		fn = ComputeIndicators
	}
	series := append(h.Closes(), price)
	series = lo.Subset(series, -snapshotWindow, snapshotWindow)
	return fn(series)
}
