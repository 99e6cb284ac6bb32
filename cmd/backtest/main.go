// Package main replays a captured scenario through a trading agent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"stonkminer/internal/agent"
	"stonkminer/internal/backtest"
	"stonkminer/internal/capture"
	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
	"stonkminer/internal/genome"
	"stonkminer/internal/storage"
	"stonkminer/internal/storage/file"
	"stonkminer/internal/storage/memory"
	"stonkminer/internal/storage/migrations"
	pgstore "stonkminer/internal/storage/postgres"
)

func main() {
	scenario := flag.String("scenario", "", "Scenario name; reads <data-dir>/<scenario>-history.jsonl and -ticks.jsonl (required)")
	dataDir := flag.String("data-dir", "data", "Directory holding scenario files")
	symbol := flag.String("symbol", "", "Trading pair, e.g. BTC_USDT (required)")
	name := flag.String("name", "", "Agent name (default: bt-<random>)")
	kind := flag.String("kind", string(agent.KindTradeBot), "Agent kind")
	genetics := flag.String("genetics", "", "Genome string, e.g. RSIL=20|RSIH=80")
	budget := flag.Float64("budget", 1000, "Quote budget")
	tickSize := flag.Float64("tick-size", 0, "Price increment (0 disables rounding)")
	stepSize := flag.Float64("step-size", 0, "Quantity increment (0 disables rounding)")
	outputDir := flag.String("output-dir", "", "Write the final agent state file here (memory only when empty)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN to archive the trades (optional)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	dev := flag.Bool("dev", false, "Human-readable development logging")

	flag.Parse()

	logger, err := newLogger(*dev || os.Getenv("SM_ENV") == "dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *scenario == "" {
		logger.Fatal("--scenario is required")
	}
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	agentKind, err := agent.ParseKind(*kind)
	if err != nil {
		logger.Fatal("invalid --kind", zap.Error(err))
	}
	if *name == "" {
		*name = "bt-" + uuid.NewString()[:8]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		cancel()
	}()

	catalog := genome.DefaultCatalog()
	var states storage.AgentStateStore = memory.NewAgentStateStore()
	if *outputDir != "" {
		states = file.NewAgentStateStore(file.AgentStateStoreOptions{Dir: *outputDir, Catalog: catalog, Logger: logger})
	}

	var trades storage.TradeStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := migrations.RunPostgres(ctx, pool, logger); err != nil {
			logger.Fatal("migrate postgres", zap.Error(err))
		}
		trades = pgstore.NewTradeStore(pool)
	}

	runner := backtest.NewRunner(backtest.Options{
		DataDir:      *dataDir,
		Catalog:      catalog,
		Kind:         agentKind,
		Name:         *name,
		Symbol:       *symbol,
		Genetics:     *genetics,
		Budget:       *budget,
		Rules:        exchange.SymbolRules{TickSize: *tickSize, StepSize: *stepSize},
		States:       states,
		TradeArchive: trades,
		Logger:       logger,
	})

	started := time.Now()
	res, err := runner.Run(ctx, *scenario)
	if err != nil {
		if errors.Is(err, capture.ErrMissingBacktestData) {
			logger.Fatal("scenario data not found", zap.String("data_dir", *dataDir), zap.Error(err))
		}
		logger.Fatal("backtest failed", zap.Error(err))
	}

	if *outputJSON {
		out, err := sonic.ConfigStd.MarshalIndent(toReport(res, *name), "", "  ")
		if err != nil {
			logger.Fatal("encode result", zap.Error(err))
		}
		fmt.Println(string(out))
		return
	}
	printResult(res, *name, time.Since(started))
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type tradeReport struct {
	Side     string  `json:"side"`
	Time     string  `json:"time"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Gross    float64 `json:"gross"`
	Fees     float64 `json:"fees"`
	State    string  `json:"state"`
}

type report struct {
	Scenario    string        `json:"scenario"`
	Agent       string        `json:"agent"`
	Ticks       int           `json:"ticks"`
	RoundTrips  int           `json:"round_trips"`
	TotalProfit float64       `json:"total_profit"`
	FinalPhase  string        `json:"final_phase"`
	Trades      []tradeReport `json:"trades"`
}

func toReport(res *backtest.Result, name string) report {
	r := report{
		Scenario:    res.Scenario,
		Agent:       name,
		Ticks:       res.Ticks,
		RoundTrips:  res.RoundTrips,
		TotalProfit: res.TotalProfit,
		FinalPhase:  res.FinalPhase.String(),
		Trades:      make([]tradeReport, 0, len(res.Trades)),
	}
	for _, t := range res.Trades {
		r.Trades = append(r.Trades, tradeReport{
			Side:     t.Side.String(),
			Time:     t.CreatedAt.Format(time.RFC3339),
			Price:    t.Price,
			Quantity: t.Quantity,
			Gross:    t.Gross,
			Fees:     t.Fees,
			State:    t.State.String(),
		})
	}
	return r
}

func printResult(res *backtest.Result, name string, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Scenario:           %s\n", res.Scenario)
	fmt.Printf("Agent:              %s\n", name)
	fmt.Printf("Ticks:              %d\n", res.Ticks)
	fmt.Printf("Trades:             %d\n", len(res.Trades))
	fmt.Printf("Round trips:        %d\n", res.RoundTrips)
	fmt.Printf("Total profit:       %.8f\n", res.TotalProfit)
	fmt.Printf("Final phase:        %s\n", res.FinalPhase)
	fmt.Printf("Elapsed:            %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	if len(res.Trades) == 0 {
		return
	}
	fmt.Println("Trades:")
	for _, t := range res.Trades {
		marker := " "
		if t.Side == domain.SideSell {
			marker = "+"
		}
		fmt.Printf(" %s %-4s %s  price=%.8f qty=%.8f gross=%.8f fees=%.8f %s\n",
			marker, t.Side, t.CreatedAt.Format(time.RFC3339), t.Price, t.Quantity, t.Gross, t.Fees, t.State)
	}
}
