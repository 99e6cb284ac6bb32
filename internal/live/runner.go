package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stonkminer/internal/agent"
	"stonkminer/internal/domain"
	"stonkminer/internal/engine"
	"stonkminer/internal/exchange"
)

// Default configuration values.
const (
	DefaultBackoff      = 10 * time.Second
	DefaultRunInCandles = 1000
)

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Kind     agent.Kind
	Exchange exchange.Exchange

	// Engine is the template for the agent engine. State, Exchange and
	// States are required; Rules, Candles and Mode are set by the runner.
	Engine engine.Options

	RunInCandles int           // Default: 1000
	Backoff      time.Duration // Default: 10s - wait before resubscribing
	Logger       *zap.Logger
}

// Runner subscribes to the tick stream of one agent and reconnects forever.
type Runner struct {
	kind         agent.Kind
	exchange     exchange.Exchange
	engineOpts   engine.Options
	runInCandles int
	backoff      time.Duration
	logger       *zap.Logger
}

// NewRunner creates a new live runner.
func NewRunner(opts RunnerOptions) *Runner {
	kind := opts.Kind
	if kind == "" {
		kind = agent.KindTradeBot
	}
	runIn := opts.RunInCandles
	if runIn == 0 {
		runIn = DefaultRunInCandles
	}
	backoff := opts.Backoff
	if backoff == 0 {
		backoff = DefaultBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engineOpts := opts.Engine
	if engineOpts.Exchange == nil {
		engineOpts.Exchange = opts.Exchange
	}

	return &Runner{
		kind:         kind,
		exchange:     opts.Exchange,
		engineOpts:   engineOpts,
		runInCandles: runIn,
		backoff:      backoff,
		logger:       logger,
	}
}

// Run initializes the agent and processes ticks until ctx is cancelled.
// Stream failures are retried after the backoff without limit; only state
// persistence failures end the run early.
func (r *Runner) Run(ctx context.Context) error {
	st := r.engineOpts.State
	if st == nil || r.exchange == nil {
		return fmt.Errorf("%w: state and exchange are required", engine.ErrInvalidOptions)
	}
	pair := agent.APISymbol(st.Symbol)
	interval := string(st.Genome.Timescale())
	logger := r.logger.With(zap.String("agent", st.Key()), zap.String("pair", pair))

	var (
		runIn []domain.Candle
		rules exchange.SymbolRules
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		runIn, err = r.exchange.FetchCandles(gctx, pair, interval, r.runInCandles)
		if err != nil {
			return fmt.Errorf("fetch run-in candles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rules, err = r.exchange.SymbolRules(gctx, pair)
		if err != nil {
			return fmt.Errorf("fetch symbol rules: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	opts := r.engineOpts
	opts.Rules = rules
	opts.Candles = engine.ExchangeCandles{Exchange: r.exchange, Pair: pair, Interval: interval}
	if opts.Logger == nil {
		opts.Logger = r.logger
	}

	eng, err := engine.NewForKind(r.kind, opts)
	if err != nil {
		return err
	}

	// The last kline is still open; only closed intervals seed the history.
	var runInEnd int64
	if n := len(runIn); n > 0 {
		runInEnd = runIn[n-1].OpenTime - 1
	}
	if err := eng.Initialize(ctx, runIn, runInEnd); err != nil {
		return err
	}

	logger.Info("agent running",
		zap.String("interval", interval),
		zap.Float64("tick_size", rules.TickSize),
		zap.Float64("step_size", rules.StepSize),
		zap.Bool("live_trading", opts.LiveTrading))

	for {
		err := r.session(ctx, eng, pair, interval)

		// flush capture and persist state before reconnecting or exiting
		if derr := eng.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			logger.Error("persist state on disconnect failed", zap.Error(derr))
			if err == nil || errors.Is(err, exchange.ErrTransportDisconnect) {
				err = derr
			}
		}

		if ctx.Err() != nil {
			logger.Info("agent stopped", zap.Stringer("phase", eng.Phase()))
			return ctx.Err()
		}
		if !errors.Is(err, exchange.ErrTransportDisconnect) {
			return err
		}

		opts.Metrics.RecordReconnect(st.Key())
		logger.Warn("stream disconnected, reconnecting", zap.Error(err), zap.Duration("backoff", r.backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff):
		}
	}
}

// session consumes one subscription. It returns an error wrapping
// exchange.ErrTransportDisconnect when the stream ends.
func (r *Runner) session(ctx context.Context, eng *engine.Engine, pair, interval string) error {
	ticks, errs, err := r.exchange.SubscribeTicks(ctx, pair, interval)
	if err != nil {
		return fmt.Errorf("%w: subscribe: %v", exchange.ErrTransportDisconnect, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case tick, ok := <-ticks:
			if !ok {
				select {
				case err := <-errs:
					if errors.Is(err, exchange.ErrTransportDisconnect) {
						return err
					}
					return fmt.Errorf("%w: %v", exchange.ErrTransportDisconnect, err)
				default:
					return fmt.Errorf("%w: stream closed", exchange.ErrTransportDisconnect)
				}
			}
			if err := eng.HandleTick(ctx, tick); err != nil {
				return err
			}
		}
	}
}
