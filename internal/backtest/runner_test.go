package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonkminer/internal/agent"
	"stonkminer/internal/capture"
	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
	"stonkminer/internal/intake"
	"stonkminer/internal/storage/memory"
)

const minute = int64(60_000)

// rsiByPrice drives buys below 100 and sells above 110.
func rsiByPrice(closes []float64) intake.Indicators {
	ind := intake.Indicators{RSI: 50, BollingerUpper: 110, BollingerLower: 90}
	switch p := closes[len(closes)-1]; {
	case p < 100:
		ind.RSI = 10
	case p > 110:
		ind.RSI = 90
	}
	return ind
}

func writeScenario(t *testing.T, dir string, history []float64, ticks []float64) {
	t.Helper()
	rec, err := capture.NewRecorder(capture.RecorderOptions{Dir: dir, Symbol: "BTC_USDT", Name: "run"})
	require.NoError(t, err)

	for i, p := range history {
		open := int64(i) * minute
		require.NoError(t, rec.RecordCandle(domain.Candle{OpenTime: open, CloseTime: open + minute - 1, Close: p}))
	}
	start := int64(len(history)) * minute
	for i, p := range ticks {
		rec.CaptureTick(domain.Tick{Symbol: "BTCUSDT", EventTime: start + int64(i)*minute + 1_000, Price: p})
	}
	require.NoError(t, rec.Flush())
}

func TestRunner_ReplaysScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, []float64{100, 101, 102}, []float64{95, 105, 120, 105, 96, 121, 104})

	states := memory.NewAgentStateStore()
	trades := memory.NewTradeStore()
	runner := NewRunner(Options{
		DataDir:      dir,
		Name:         "bt",
		Symbol:       "BTC_USDT",
		Budget:       1000,
		Rules:        exchange.SymbolRules{TickSize: 0.01, StepSize: 0.001},
		States:       states,
		TradeArchive: trades,
		Indicators:   rsiByPrice,
	})

	res, err := runner.Run(context.Background(), "BTC_USDT-run")
	require.NoError(t, err)

	assert.Equal(t, "BTC_USDT-run", res.Scenario)
	assert.Equal(t, 7, res.Ticks)
	require.Len(t, res.Trades, 4)
	assert.Equal(t, 2, res.RoundTrips)
	assert.Equal(t, domain.PhaseWaitingForBuyOpportunity, res.FinalPhase)
	assert.Greater(t, res.TotalProfit, 0.0)
	for i, tr := range res.Trades {
		if i%2 == 0 {
			assert.Equal(t, domain.SideBuy, tr.Side)
		} else {
			assert.Equal(t, domain.SideSell, tr.Side)
		}
		assert.Equal(t, "paper", tr.Exchange)
	}

	saved, err := states.Load(context.Background(), agent.StateKey("BTC_USDT", "bt"))
	require.NoError(t, err)
	assert.Equal(t, res.FinalPhase, saved.Phase)
	assert.InDelta(t, res.TotalProfit, saved.TotalProfit, 1e-9)
	assert.Len(t, saved.Trades, 4)

	archived, err := trades.GetByAgent(context.Background(), agent.StateKey("BTC_USDT", "bt"))
	require.NoError(t, err)
	assert.Len(t, archived, 4)
}

func TestRunner_MissingDataLeavesStateUntouched(t *testing.T) {
	states := memory.NewAgentStateStore()
	runner := NewRunner(Options{DataDir: t.TempDir(), Name: "bt", Symbol: "BTC_USDT", States: states})

	_, err := runner.Run(context.Background(), "absent")

	assert.ErrorIs(t, err, capture.ErrMissingBacktestData)
	assert.Empty(t, states.Snapshots(agent.StateKey("BTC_USDT", "bt")))
}

func TestRunner_InvalidGenetics(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, []float64{100}, []float64{100})
	states := memory.NewAgentStateStore()
	runner := NewRunner(Options{DataDir: dir, Symbol: "BTC_USDT", Genetics: "ZZZ=1", States: states})

	_, err := runner.Run(context.Background(), "BTC_USDT-run")

	assert.Error(t, err)
	assert.Empty(t, states.Snapshots(agent.StateKey("BTC_USDT", agent.DefaultName)))
}

func TestRunner_HistoryServedUpToTickTime(t *testing.T) {
	dir := t.TempDir()
	// ten candles, ticks begin after the fifth: only five are run-in
	rec, err := capture.NewRecorder(capture.RecorderOptions{Dir: dir, Symbol: "BTC_USDT", Name: "run"})
	require.NoError(t, err)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, rec.RecordCandle(domain.Candle{OpenTime: i * minute, CloseTime: (i+1)*minute - 1, Close: 100}))
	}
	rec.CaptureTick(domain.Tick{EventTime: 5*minute + 1_000, Price: 100})
	rec.CaptureTick(domain.Tick{EventTime: 7*minute + 1_000, Price: 100})
	rec.CaptureTick(domain.Tick{EventTime: 8*minute + 1_000, Price: 100})
	require.NoError(t, rec.Flush())

	var seen []int
	runner := NewRunner(Options{
		DataDir: dir,
		Symbol:  "BTC_USDT",
		States:  memory.NewAgentStateStore(),
		Indicators: func(closes []float64) intake.Indicators {
			seen = append(seen, len(closes))
			return intake.Indicators{RSI: 50}
		},
	})

	res, err := runner.Run(context.Background(), "BTC_USDT-run")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Ticks)
	// history plus the live price; intervals closed since the previous tick
	// are ingested on rollover, after the decision
	assert.Equal(t, []int{6, 6, 8}, seen)
}
