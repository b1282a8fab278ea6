package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futures-trader/internal/backtest"
	"futures-trader/internal/config"
	"futures-trader/internal/domain"
	"futures-trader/internal/logger"
	"futures-trader/internal/storage"
	chstore "futures-trader/internal/storage/clickhouse"
	"futures-trader/internal/storage/memory"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// Parse flags
	configPath := flag.String("config", config.Env("TRADER_CONFIG", "config.yaml"), "YAML trade and instrument config")
	calendarPath := flag.String("calendar", "calendar.yaml", "YAML main contract calendar (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for bars and audit")
	barsCSV := flag.String("bars-csv", "", "Load bars from a CSV file into memory instead of ClickHouse")
	startDate := flag.String("start", "", "Override backtest start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Override backtest end date (YYYY-MM-DD)")
	runID := flag.String("run-id", "", "Run id tagging audit rows (default: generated)")
	step := flag.Duration("step", backtest.DefaultStep, "Replay clock step")
	persistAudit := flag.Bool("persist", false, "Write orders and matches to the ClickHouse audit tables")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	logLevel := flag.String("log-level", config.Env("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	log := logger.New(*logLevel, "pretty").With("component", "backtest")

	// Validate required flags
	if *barsCSV == "" && *clickhouseDSN == "" {
		log.Fatal("invalid flags", fmt.Errorf("--clickhouse-dsn or --bars-csv is required"))
	}
	if *persistAudit && *clickhouseDSN == "" {
		log.Fatal("invalid flags", fmt.Errorf("--persist needs --clickhouse-dsn"))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", err)
	}
	if err := overrideWindow(&cfg.Trade, *startDate, *endDate); err != nil {
		log.Fatal("invalid window", err)
	}

	calFile, err := os.Open(*calendarPath)
	if err != nil {
		log.Fatal("open calendar", err)
	}
	cal, err := backtest.LoadCalendar(calFile)
	calFile.Close()
	if err != nil {
		log.Fatal("load calendar", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	var (
		bars  storage.BarStore
		audit storage.AuditStore
	)
	if *barsCSV != "" {
		mem := memory.NewBarStore()
		f, err := os.Open(*barsCSV)
		if err != nil {
			log.Fatal("open bars csv", err)
		}
		n, err := backtest.ImportCSV(ctx, f, mem)
		f.Close()
		if err != nil {
			log.Fatal("import bars", err)
		}
		log.Infof("loaded %d bars from %s", n, *barsCSV)
		bars = mem
	}
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			log.Fatal("connect to clickhouse", err)
		}
		defer conn.Close()
		if bars == nil {
			bars = chstore.NewBarStore(conn)
		}
		if *persistAudit {
			audit = chstore.NewAuditStore(conn)
		}
	}

	res, err := backtest.NewRunner(bars, nil, log).Run(ctx, backtest.Config{
		Trade:    cfg.Trade,
		Futures:  config.Active(cfg.Futures),
		Calendar: cal,
		Step:     *step,
		Audit:    audit,
		RunID:    *runID,
	})
	if err != nil {
		log.Fatal("backtest failed", err)
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(output))
	} else {
		printResults(res)
	}
}

func overrideWindow(trade *domain.TradeConfig, start, end string) error {
	parse := func(s string) (time.Time, error) {
		return time.ParseInLocation("2006-01-02", s, domain.ExchangeTZ)
	}
	if start != "" {
		t, err := parse(start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		trade.BacktestStart = t
	}
	if end != "" {
		t, err := parse(end)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		trade.BacktestEnd = t
	}
	return nil
}

// printResults outputs a human-readable summary.
func printResults(r *backtest.Results) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", r.RunID)
	fmt.Printf("Window:             %s .. %s\n", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	fmt.Printf("Open orders:        %d\n", r.Opens)
	fmt.Printf("Close orders:       %d\n", r.Closes)
	fmt.Println()

	if len(r.Orders) > 0 {
		fmt.Println("Orders:")
		for _, o := range r.Orders {
			fmt.Printf("  %s  %-14s %-5v %-6v %3d @ %.2f\n",
				o.InsertTime.Format("2006-01-02 15:04"), o.Symbol, o.Side, o.Offset, o.VolumeOrigin, o.TradePrice)
		}
		fmt.Println()
	}

	fmt.Println("Rollover state:")
	for _, st := range r.States {
		fmt.Printf("  %-24s current=%s next=%s\n", st.CustomSymbol, st.CurrentSymbol, st.NextSymbol)
	}
	fmt.Println()

	fmt.Println("Trade statuses:")
	for _, ts := range r.Statuses {
		fmt.Printf("  %-24s %-14s %-7v lots=%d\n", ts.CustomSymbol, ts.Symbol, ts.State, ts.CarryingVolume)
	}
}
