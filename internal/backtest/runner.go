// Package backtest replays a captured scenario through the trading engine.
package backtest

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"stonkminer/internal/agent"
	"stonkminer/internal/capture"
	"stonkminer/internal/domain"
	"stonkminer/internal/engine"
	"stonkminer/internal/exchange"
	"stonkminer/internal/exchange/paper"
	"stonkminer/internal/genome"
	"stonkminer/internal/intake"
	"stonkminer/internal/observability"
	"stonkminer/internal/storage"
)

// Options configures a Runner.
type Options struct {
	DataDir  string // default "data"
	Catalog  *genome.Catalog
	Kind     agent.Kind
	Name     string
	Symbol   string
	Genetics string
	Budget   float64
	Rules    exchange.SymbolRules

	// States receives the final agent state.
	States storage.AgentStateStore

	TradeArchive  storage.TradeStore
	CandleArchive storage.CandleStore
	Indicators    intake.IndicatorFunc
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// Result summarizes one backtest run.
type Result struct {
	Scenario    string
	Ticks       int
	Trades      []*domain.Trade
	RoundTrips  int
	TotalProfit float64
	FinalPhase  domain.Phase
}

// Runner executes backtests against a paper exchange that fills every order.
type Runner struct {
	opts   Options
	logger *zap.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(opts Options) *Runner {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Catalog == nil {
		opts.Catalog = genome.DefaultCatalog()
	}
	if opts.Kind == "" {
		opts.Kind = agent.KindTradeBot
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{opts: opts, logger: logger}
}

// Run replays scenario. The scenario files are loaded before any agent state
// is created, so missing data leaves the state store untouched.
func (r *Runner) Run(ctx context.Context, scenario string) (*Result, error) {
	if r.opts.States == nil {
		return nil, fmt.Errorf("backtest %s: state store is required", scenario)
	}

	sc, err := capture.LoadScenario(ctx, r.opts.DataDir, scenario)
	if err != nil {
		return nil, err
	}

	st, err := agent.NewState(r.opts.Catalog, r.opts.Name, r.opts.Symbol, r.opts.Genetics)
	if err != nil {
		return nil, err
	}
	st.Budget = r.opts.Budget

	logger := r.logger.With(zap.String("scenario", scenario))
	eng, err := engine.NewForKind(r.opts.Kind, engine.Options{
		State:         st,
		Exchange:      paper.New(paper.Options{Rules: r.opts.Rules, Fill: paper.FillImmediately}),
		States:        r.opts.States,
		Candles:       engine.StaticCandles(sc.History),
		Rules:         r.opts.Rules,
		Mode:          intake.ModePlayback,
		Venue:         "paper",
		Indicators:    r.opts.Indicators,
		TradeArchive:  r.opts.TradeArchive,
		CandleArchive: r.opts.CandleArchive,
		Metrics:       r.opts.Metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	var runInEnd int64
	if len(sc.Ticks) > 0 {
		runInEnd = sc.Ticks[0].EventTime
	}
	if err := eng.Initialize(ctx, sc.History, runInEnd); err != nil {
		return nil, err
	}

	logger.Info("backtest started",
		zap.Int("history", len(sc.History)),
		zap.Int("ticks", len(sc.Ticks)),
		zap.String("genetics", st.Genome.Serialize(false)))

	for i, tick := range sc.Ticks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := eng.HandleTick(ctx, tick); err != nil {
			return nil, fmt.Errorf("tick %d: %w", i, err)
		}
	}

	if err := eng.Disconnect(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		Scenario:    scenario,
		Ticks:       len(sc.Ticks),
		Trades:      lo.Map(st.Trades, func(t *domain.Trade, _ int) *domain.Trade { return t.Clone() }),
		RoundTrips:  roundTrips(st.Trades),
		TotalProfit: st.TotalProfit,
		FinalPhase:  st.Phase,
	}

	logger.Info("backtest finished",
		zap.Int("trades", len(res.Trades)),
		zap.Int("round_trips", res.RoundTrips),
		zap.Float64("total_profit", res.TotalProfit),
		zap.Stringer("final_phase", res.FinalPhase))

	return res, nil
}

// roundTrips counts filled sells.
func roundTrips(trades []*domain.Trade) int {
	return lo.CountBy(trades, func(t *domain.Trade) bool {
		return t.Side == domain.SideSell && t.State == domain.TradeClosed
	})
}
