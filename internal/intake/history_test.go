package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonkminer/internal/domain"
)

func candle(closeTime int64, closePrice float64) domain.Candle {
	return domain.Candle{OpenTime: closeTime - 59_999, CloseTime: closeTime, Close: closePrice}
}

func TestHistory_IngestSkipsDuplicates(t *testing.T) {
	h := NewHistory(HistoryOptions{})

	assert.True(t, h.Ingest(candle(60_000, 1)))
	assert.True(t, h.Ingest(candle(120_000, 2)))
	assert.False(t, h.Ingest(candle(120_000, 3)))

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []float64{1, 2}, h.Closes())
}

func TestHistory_MaxLen(t *testing.T) {
	h := NewHistory(HistoryOptions{MaxLen: 3})
	for i := int64(1); i <= 5; i++ {
		h.Ingest(candle(i*60_000, float64(i)))
	}

	assert.Equal(t, []float64{3, 4, 5}, h.Closes())
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 5.0, last.Close)
}

func TestHistory_SnapshotDoesNotMutate(t *testing.T) {
	h := NewHistory(HistoryOptions{})
	h.Ingest(candle(60_000, 10))
	h.Ingest(candle(120_000, 11))

	var seen []float64
	h.Snapshot(12, func(closes []float64) Indicators {
		seen = closes
		return Indicators{RSI: 42}
	})

	assert.Equal(t, []float64{10, 11, 12}, seen)
	assert.Equal(t, []float64{10, 11}, h.Closes())
}

func TestHistory_SnapshotWindow(t *testing.T) {
	h := NewHistory(HistoryOptions{})
	for i := int64(1); i <= 1500; i++ {
		h.Ingest(candle(i*60_000, float64(i)))
	}

	var seen []float64
	h.Snapshot(-1, func(closes []float64) Indicators {
		seen = closes
		return Indicators{}
	})

	require.Len(t, seen, 1000)
	assert.Equal(t, -1.0, seen[len(seen)-1])
	assert.Equal(t, 502.0, seen[0])
}

func TestComputeIndicators_Direction(t *testing.T) {
	rising := make([]float64, 50)
	falling := make([]float64, 50)
	for i := range rising {
		rising[i] = float64(100 + i)
		falling[i] = float64(200 - i)
	}

	up := ComputeIndicators(rising)
	down := ComputeIndicators(falling)

	assert.Greater(t, up.RSI, 90.0)
	assert.Less(t, down.RSI, 10.0)
	assert.Greater(t, up.BollingerUpper, up.BollingerLower)
	assert.InDelta(t, 146.0, up.MASmall, 1e-9)
}
