// Package main runs one trading agent against Binance. Orders are sent as
// exchange test orders unless --live is given in a production environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stonkminer/internal/agent"
	"stonkminer/internal/capture"
	"stonkminer/internal/engine"
	"stonkminer/internal/exchange/binance"
	"stonkminer/internal/genome"
	"stonkminer/internal/live"
	"stonkminer/internal/observability"
	"stonkminer/internal/storage"
	chstore "stonkminer/internal/storage/clickhouse"
	"stonkminer/internal/storage/file"
	"stonkminer/internal/storage/memory"
	"stonkminer/internal/storage/migrations"
	pgstore "stonkminer/internal/storage/postgres"
)

type config struct {
	symbol        string
	name          string
	kind          agent.Kind
	genetics      string
	budget        float64
	liveTrading   bool
	captureTicks  bool
	outputDir     string
	useMemory     bool
	postgresDSN   string
	clickhouseDSN string
	backoff       time.Duration
	metricsAddr   string

	openArchives func(ctx context.Context, postgresDSN, clickhouseDSN string, logger *zap.Logger) (archives, func(), error)
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	symbol := flag.String("symbol", "", "Trading pair, e.g. BTC_USDT (required)")
	name := flag.String("name", agent.DefaultName, "Agent name; state is kept per symbol and name")
	kind := flag.String("kind", string(agent.KindTradeBot), "Agent kind")
	genetics := flag.String("genetics", "", "Genome string, e.g. RSIL=20|RSIH=80")
	budget := flag.Float64("budget", 0, "Quote budget of a fresh agent")
	liveTrading := flag.Bool("live", false, "Place real orders (requires SM_ENV=production)")
	captureTicks := flag.Bool("capture", false, "Record ticks and candles for later backtests")
	outputDir := flag.String("output-dir", "output", "Directory for state and capture files")
	useMemory := flag.Bool("use-memory", false, "Keep agent state in memory only")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for the trade archive (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the candle archive (optional)")
	backoff := flag.Duration("reconnect-backoff", live.DefaultBackoff, "Wait before resubscribing after a disconnect")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (disabled when empty)")
	dev := flag.Bool("dev", false, "Human-readable development logging")

	flag.Parse()

	env := os.Getenv("SM_ENV")
	logger, err := newLogger(*dev || env == "dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	agentKind, err := agent.ParseKind(*kind)
	if err != nil {
		logger.Fatal("invalid --kind", zap.Error(err))
	}
	if *liveTrading && env != "production" {
		logger.Fatal("--live requires SM_ENV=production", zap.String("SM_ENV", env))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case <-sigCh:
			logger.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	err = run(ctx, config{
		symbol:        *symbol,
		name:          *name,
		kind:          agentKind,
		genetics:      *genetics,
		budget:        *budget,
		liveTrading:   *liveTrading,
		captureTicks:  *captureTicks,
		outputDir:     *outputDir,
		useMemory:     *useMemory,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		backoff:       *backoff,
		metricsAddr:   *metricsAddr,
		openArchives:  openArchives,
	}, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		// run has released its connections by now
		logger.Error("agent stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run wires the agent and blocks until it stops. Every resource it opens is
// closed before it returns.
func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	catalog := genome.DefaultCatalog()
	var states storage.AgentStateStore = file.NewAgentStateStore(file.AgentStateStoreOptions{
		Dir:     cfg.outputDir,
		Catalog: catalog,
		Logger:  logger,
	})
	if cfg.useMemory {
		states = memory.NewAgentStateStore()
	}

	open := cfg.openArchives
	if open == nil {
		open = openArchives
	}
	arch, cleanup, err := open(ctx, cfg.postgresDSN, cfg.clickhouseDSN, logger)
	if err != nil {
		return fmt.Errorf("open archives: %w", err)
	}
	defer cleanup()

	st, err := live.LoadAgent(ctx, states, catalog, cfg.name, cfg.symbol, cfg.genetics, logger)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	if len(st.Trades) == 0 && cfg.budget > 0 {
		st.Budget = cfg.budget
	}

	var metrics *observability.Metrics
	if cfg.metricsAddr != "" {
		metrics = observability.NewMetrics("stonkminer")
		go func() {
			if err := metrics.Serve(ctx, cfg.metricsAddr); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.metricsAddr))
	}

	engineOpts := engine.Options{
		State:         st,
		States:        states,
		LiveTrading:   cfg.liveTrading,
		TradeArchive:  arch.trades,
		CandleArchive: arch.candles,
		Metrics:       metrics,
		Logger:        logger,
	}
	if cfg.captureTicks {
		rec, err := capture.NewRecorder(capture.RecorderOptions{
			Dir:    cfg.outputDir,
			Symbol: st.Symbol,
			Name:   st.Name,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("create recorder: %w", err)
		}
		engineOpts.Recorder = rec
	}

	client := binance.NewClient(os.Getenv("SM_BINANCE_API"), os.Getenv("SM_BINANCE_SECRET"), binance.WithLogger(logger))
	runner := live.NewRunner(live.RunnerOptions{
		Kind:     cfg.kind,
		Exchange: client,
		Engine:   engineOpts,
		Backoff:  cfg.backoff,
		Logger:   logger,
	})

	logger.Info("starting agent",
		zap.String("agent", st.Key()),
		zap.String("kind", string(cfg.kind)),
		zap.Bool("live_trading", cfg.liveTrading),
		zap.Bool("capture", cfg.captureTicks))

	return runner.Run(ctx)
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type archives struct {
	trades  storage.TradeStore
	candles storage.CandleStore
}

// openArchives connects the optional trade and candle archives and applies
// their migrations.
func openArchives(ctx context.Context, postgresDSN, clickhouseDSN string, logger *zap.Logger) (archives, func(), error) {
	var (
		out     archives
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return out, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgres(ctx, pool, logger); err != nil {
			cleanup()
			return out, nil, err
		}
		out.trades = pgstore.NewTradeStore(pool)
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouse(ctx, clickhouseDSN, logger)
		if err != nil {
			cleanup()
			return out, nil, err
		}
		closers = append(closers, func() { conn.Close() })
		out.candles = chstore.NewCandleStore(conn)
	}

	return out, cleanup, nil
}

func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, strings.TrimSpace(value))
		}
	}
}
