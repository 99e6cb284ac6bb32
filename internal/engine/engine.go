// Package engine runs the trading state machine of one agent. An Engine is
// driven by a single task: live ticks and replayed ticks go through the same
// HandleTick path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stonkminer/internal/agent"
	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
	"stonkminer/internal/intake"
	"stonkminer/internal/observability"
	"stonkminer/internal/storage"
)

// Genes read by the decision logic.
const (
	geneRSILow            = "RSIL"
	geneRSIHigh           = "RSIH"
	geneBuyBreakoutsOnly  = "BBBBO"
	geneSellBreakoutsOnly = "BBSBO"
)

// Recorder captures raw market data for later playback.
type Recorder interface {
	CaptureTick(t domain.Tick)
	RecordCandle(c domain.Candle) error
	Flush() error
}

// Options configures an Engine.
type Options struct {
	State    *agent.State
	Exchange exchange.Exchange
	States   storage.AgentStateStore

	// Candles feeds closed intervals on rollover. Nil disables ingestion.
	Candles CandleSource
	Rules   exchange.SymbolRules
	Mode    intake.Mode
	// LiveTrading submits real orders. Otherwise the exchange's test variant is used.
	LiveTrading bool
	// Venue is stored on every trade. Defaults to "binance".
	Venue string

	Indicators    intake.IndicatorFunc
	HistoryMaxLen int

	Recorder      Recorder
	TradeArchive  storage.TradeStore
	CandleArchive storage.CandleStore

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Engine is the decision and order-reconciliation loop of one agent.
// It is not safe for concurrent use.
type Engine struct {
	state    *agent.State
	exchange exchange.Exchange
	states   storage.AgentStateStore
	candles  CandleSource
	rules    exchange.SymbolRules
	mode     intake.Mode
	live     bool
	venue    string

	history    *intake.History
	closer     *intake.IntervalCloser
	indicators intake.IndicatorFunc

	recorder      Recorder
	tradeArchive  storage.TradeStore
	candleArchive storage.CandleStore

	metrics *observability.Metrics
	logger  *zap.Logger

	prevPrice     float64
	lastSampleMin int
	initialized   bool
}

// New creates an engine for opts.State.
func New(opts Options) (*Engine, error) {
	if opts.State == nil || opts.State.Genome == nil {
		return nil, fmt.Errorf("%w: state with genome is required", ErrInvalidOptions)
	}
	if opts.Exchange == nil {
		return nil, fmt.Errorf("%w: exchange is required", ErrInvalidOptions)
	}
	if opts.States == nil {
		return nil, fmt.Errorf("%w: state store is required", ErrInvalidOptions)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("agent", opts.State.Key()))

	indicators := opts.Indicators
	if indicators == nil {
		indicators = intake.ComputeIndicators
	}
	venue := opts.Venue
	if venue == "" {
		venue = "binance"
	}

	return &Engine{
		state:         opts.State,
		exchange:      opts.Exchange,
		states:        opts.States,
		candles:       opts.Candles,
		rules:         opts.Rules,
		mode:          opts.Mode,
		live:          opts.LiveTrading,
		venue:         venue,
		history:       intake.NewHistory(intake.HistoryOptions{MaxLen: opts.HistoryMaxLen, Logger: logger}),
		closer:        intake.NewIntervalCloser(opts.Mode),
		indicators:    indicators,
		recorder:      opts.Recorder,
		tradeArchive:  opts.TradeArchive,
		candleArchive: opts.CandleArchive,
		metrics:       opts.Metrics,
		logger:        logger,
		lastSampleMin: -1,
	}, nil
}

// NewForKind builds the engine implementing kind.
func NewForKind(kind agent.Kind, opts Options) (*Engine, error) {
	switch kind {
	case agent.KindTradeBot:
		return New(opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Initialize ingests the run-in candles (those closing at or before runInEnd
// when it is non-zero) and brings the agent to a trading phase. A fresh agent
// walks New, Init, RunIn, Ready; a restored agent re-enters its saved phase.
func (e *Engine) Initialize(ctx context.Context, candles []domain.Candle, runInEnd int64) error {
	for _, c := range candles {
		if runInEnd > 0 && c.CloseTime > runInEnd {
			break
		}
		e.ingest(ctx, c, false)
	}
	if last, ok := e.history.Last(); ok {
		e.prevPrice = last.Close
	}

	e.logger.Info("initializing",
		zap.Int("candles", e.history.Len()),
		zap.String("mode", e.mode.String()),
		zap.String("genetics", e.state.Genome.Serialize(true)),
		zap.Stringer("saved_phase", e.state.Phase))

	if e.state.Phase.Bootstrapping() {
		for _, p := range []domain.Phase{domain.PhaseInit, domain.PhaseRunIn, domain.PhaseReady} {
			if p <= e.state.Phase {
				continue
			}
			if err := e.changeState(ctx, p); err != nil {
				return err
			}
		}
	} else if err := e.changeState(ctx, e.state.Phase); err != nil {
		return err
	}

	e.initialized = true
	return nil
}

// HandleTick runs one decision step. Exchange failures are logged and retried
// on later ticks; the returned error is reserved for failures to persist state.
func (e *Engine) HandleTick(ctx context.Context, tick domain.Tick) error {
	if !e.initialized {
		return fmt.Errorf("%w: engine not initialized", ErrInvalidOptions)
	}

	now := tick.Time()
	price := tick.Price
	st := e.state

	if e.recorder != nil {
		e.recorder.CaptureTick(tick)
	}
	e.metrics.RecordTick(st.Key())

	ind := e.history.Snapshot(price, e.indicators)
	e.logger.Debug("tick",
		zap.Float64("price", price),
		zap.Float64("rsi", ind.RSI),
		zap.Float64("bb_upper", ind.BollingerUpper),
		zap.Float64("bb_lower", ind.BollingerLower),
		zap.Float64("ma_small", ind.MASmall))

	if e.closer.Observe(now) {
		e.logger.Info("approaching interval close", zap.Time("at", now))
		e.metrics.RecordIntervalClosing(st.Key())
	}

	err := e.decide(ctx, price, ind, now)
	if errors.Is(err, ErrOrderSubmission) || errors.Is(err, ErrOrderQuery) {
		e.logger.Warn("exchange call failed, retrying on next tick", zap.Error(err))
		err = nil
	}

	// The first tick only samples its minute.
	if e.lastSampleMin < 0 {
		e.lastSampleMin = now.Minute()
	}
	if now.Minute() != e.lastSampleMin {
		e.rollover(ctx, tick)
	}

	e.closer.Advance()
	return err
}

func (e *Engine) decide(ctx context.Context, price float64, ind intake.Indicators, now time.Time) error {
	st := e.state
	g := st.Genome

	switch {
	case st.Phase.AwaitingConfirmation():
		return e.PollOrder(ctx)

	case ind.RSI < g.Float(geneRSILow):
		if st.Phase != domain.PhaseReady && st.Phase != domain.PhaseWaitingForBuyOpportunity {
			return nil
		}
		if g.Bool(geneBuyBreakoutsOnly) && !(price < ind.BollingerLower) {
			e.logger.Debug("skip buy inside bollinger band", zap.Float64("price", price))
			return nil
		}
		qty := st.Budget * st.TradeFraction / price
		_, err := e.PlaceBuy(ctx, price, qty, now)
		return err

	case ind.RSI >= g.Float(geneRSIHigh):
		prev := st.PrevTrade()
		floor := e.prevPrice * (1 + st.TargetYield)
		if prev != nil {
			floor = prev.Price * (1 + st.TargetYield)
		}

		switch {
		case prev != nil && price <= floor:
			e.logger.Debug("not selling below target", zap.Float64("price", price), zap.Float64("floor", floor))
		case prev != nil && st.Phase == domain.PhaseWaitingForSellOpportunity:
			if g.Bool(geneSellBreakoutsOnly) && !(price > ind.BollingerUpper) {
				e.logger.Debug("skip sell inside bollinger band", zap.Float64("price", price))
				return nil
			}
			_, err := e.PlaceSell(ctx, prev, price, now)
			return err
		}
	}

	return nil
}

// rollover starts the next interval: the closing guard is reset, the
// reference price moves to the current price and closed candles are ingested.
func (e *Engine) rollover(ctx context.Context, tick domain.Tick) {
	e.logger.Debug("rolling over to next interval", zap.Time("at", tick.Time()))
	e.closer.Rollover()
	e.prevPrice = tick.Price

	if e.candles != nil {
		var after int64
		if last, ok := e.history.Last(); ok {
			after = last.CloseTime
		}
		candles, err := e.candles.ClosedCandles(ctx, after, tick.EventTime)
		if err != nil {
			e.logger.Warn("history update failed", zap.Error(err))
		}
		for _, c := range candles {
			e.ingest(ctx, c, true)
		}
	}

	if e.recorder != nil {
		if err := e.recorder.Flush(); err != nil {
			e.logger.Warn("flush captured ticks failed", zap.Error(err))
		}
	}

	e.lastSampleMin = tick.Time().Minute()
	e.metrics.RecordRollover(e.state.Key())
}

func (e *Engine) ingest(ctx context.Context, c domain.Candle, archive bool) {
	if !e.history.Ingest(c) {
		return
	}
	if e.recorder != nil {
		if err := e.recorder.RecordCandle(c); err != nil {
			e.logger.Warn("record candle failed", zap.Error(err))
		}
	}
	if archive && e.candleArchive != nil {
		if err := e.candleArchive.InsertBulk(ctx, e.state.Symbol, []domain.Candle{c}); err != nil {
			e.logger.Warn("archive candle failed", zap.Int64("open_time", c.OpenTime), zap.Error(err))
		}
	}
}

// Disconnect flushes captured ticks and persists state. It is called when the
// tick stream ends.
func (e *Engine) Disconnect(ctx context.Context) error {
	if e.recorder != nil {
		if err := e.recorder.Flush(); err != nil {
			e.logger.Warn("flush captured ticks failed", zap.Error(err))
		}
	}
	return e.persist(ctx)
}

// State returns the agent state owned by the engine.
func (e *Engine) State() *agent.State { return e.state }

// Phase returns the current phase.
func (e *Engine) Phase() domain.Phase { return e.state.Phase }

// History returns the rolling candle window.
func (e *Engine) History() *intake.History { return e.history }

// PrevPrice returns the reference price of the previous interval.
func (e *Engine) PrevPrice() float64 { return e.prevPrice }

// Mode returns the interval-closing mode.
func (e *Engine) Mode() intake.Mode { return e.mode }
