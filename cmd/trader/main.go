// Package main runs the live trading engine in sim or broker mode:
// - Market data from the websocket bridge
// - Orders filled by the simulator (sim) or sent through the bridge (broker)
// - Trade state in PostgreSQL, order and match audit in ClickHouse
// - Prometheus metrics, health and status over HTTP
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"futures-trader/internal/config"
	"futures-trader/internal/domain"
	"futures-trader/internal/engine"
	"futures-trader/internal/lock"
	"futures-trader/internal/logger"
	"futures-trader/internal/market"
	"futures-trader/internal/notify"
	"futures-trader/internal/observability"
	"futures-trader/internal/storage"
	chstore "futures-trader/internal/storage/clickhouse"
	"futures-trader/internal/storage/memory"
	"futures-trader/internal/storage/migrations"
	pgstore "futures-trader/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	trades    storage.TradeStatusStore
	positions storage.PositionStore
	rollovers storage.RolloverStore
	tips      storage.TipStore
	orders    storage.OrderStore
	configs   storage.ConfigStore
	audit     storage.AuditStore // nil with in-memory storage
}

func main() {
	// .env never overrides variables already set
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", config.Env("TRADER_CONFIG", "config.yaml"), "YAML trade and instrument config")
	mode := flag.String("mode", config.Env("TRADER_MODE", ""), "Override trade mode: sim or broker")
	bridgeURL := flag.String("bridge-url", os.Getenv("BRIDGE_WS_URL"), "Market bridge websocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for symbol leases (empty: in-process)")
	redisDB := flag.Int("redis-db", envInt("REDIS_DB", 0), "Redis database")
	fcmCredentials := flag.String("fcm-credentials", os.Getenv("FCM_CREDENTIALS_FILE"), "Firebase service account file")
	fcmTokens := flag.String("fcm-tokens", os.Getenv("FCM_DEVICE_TOKENS"), "Comma-separated device tokens")
	env := flag.String("env", config.Env("TRADER_ENV", "dev"), "Environment name shown in notifications")
	waitTimeout := flag.Duration("wait-timeout", 5*time.Minute, "Warn when no market update arrives within this time")
	workers := flag.Int("workers", 0, "Instruments processed concurrently (0: all)")
	metricsAddr := flag.String("metrics-addr", config.Env("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	logLevel := flag.String("log-level", config.Env("LOG_LEVEL", "info"), "Log level")
	logFormat := flag.String("log-format", config.Env("LOG_FORMAT", "json"), "Log format: json or pretty")

	flag.Parse()

	log := logger.New(*logLevel, *logFormat).With("component", "trader")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", err)
	}
	if *mode != "" {
		cfg.Trade.Mode = domain.Mode(*mode)
	}
	if cfg.Trade.Mode != domain.ModeSim && cfg.Trade.Mode != domain.ModeBroker {
		log.Fatal("invalid mode", fmt.Errorf("%q: use cmd/backtest for backtests", cfg.Trade.Mode))
	}

	// Validate required flags
	if *bridgeURL == "" {
		log.Fatal("invalid flags", errors.New("--bridge-url is required"))
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		log.Fatal("invalid flags", errors.New("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)"))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	metrics := observability.NewMetrics("futures_trader", prometheus.DefaultRegisterer)

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, metrics)
	if err != nil {
		log.Fatal("create stores", err)
	}
	defer cleanup()

	futures, err := config.Seed(ctx, stores.configs, cfg.Futures, log)
	if err != nil {
		log.Fatal("seed instrument configs", err)
	}
	futures = config.Active(futures)

	feed, err := market.NewWSFeed(ctx, *bridgeURL, nil, log)
	if err != nil {
		log.Fatal("connect market bridge", err)
	}
	defer feed.Close()

	var gateway market.Gateway = market.NewSimGateway(feed)
	if cfg.Trade.Mode == domain.ModeBroker {
		gateway = market.NewWSGateway(feed)
	}

	locker, closeLocker, err := createLocker(ctx, *redisAddr, *redisDB, log)
	if err != nil {
		log.Fatal("create locker", err)
	}
	defer closeLocker()

	sink := createNotifier(ctx, *env, *fcmCredentials, *fcmTokens, log, metrics)

	eng, err := engine.New(engine.Options{
		Feed:        feed,
		Gateway:     gateway,
		Statuses:    stores.trades,
		Positions:   stores.positions,
		Rollovers:   stores.rollovers,
		Tips:        stores.tips,
		Orders:      stores.orders,
		Trade:       cfg.Trade,
		Futures:     futures,
		Audit:       stores.audit,
		Locker:      locker,
		Notifier:    sink,
		Metrics:     metrics,
		Log:         log,
		RunID:       string(cfg.Trade.Mode),
		WaitTimeout: *waitTimeout,
		Workers:     *workers,
	})
	if err != nil {
		log.Fatal("create engine", err)
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, initiating graceful shutdown", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Warnf("received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warnf("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	started := time.Now()
	go startHTTPServer(*metricsAddr, log, func() any {
		return map[string]any{
			"mode":        cfg.Trade.Mode,
			"direction":   cfg.Trade.Direction.String(),
			"strategies":  cfg.Trade.Strategies,
			"instruments": len(futures),
			"feed_clock":  feed.Now().Format(time.RFC3339),
			"uptime":      time.Since(started).Round(time.Second).String(),
		}
	})

	err = eng.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("engine stopped", err)
	}
	log.Infof("shutdown complete")
}

// createStores connects PostgreSQL and ClickHouse, applying migrations, or
// builds in-memory stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, metrics *observability.Metrics) (*allStores, func(), error) {
	if useMemory {
		trades := memory.NewTradeStore()
		stores := &allStores{
			trades:    trades,
			positions: trades,
			rollovers: memory.NewRolloverStore(),
			tips:      memory.NewTipStore(),
			orders:    memory.NewOrderStore(),
			configs:   memory.NewConfigStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN, pgstore.WithMetrics(metrics))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	trades := pgstore.NewTradeStatusStore(pool)
	stores := &allStores{
		// PostgreSQL stores (trade state)
		trades:    trades,
		positions: trades,
		rollovers: pgstore.NewRolloverStore(pool),
		tips:      pgstore.NewTipStore(pool),
		orders:    pgstore.NewOrderStore(pool),
		configs:   pgstore.NewConfigStore(pool),

		// ClickHouse stores (analytics)
		audit: chstore.NewAuditStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// createLocker returns a Redis locker when addr is set, an in-process one otherwise.
func createLocker(ctx context.Context, addr string, db int, log *logger.Logger) (lock.Locker, func(), error) {
	if addr == "" {
		log.Infof("no redis configured, symbol leases are process local")
		return lock.NewLocal(), func() {}, nil
	}
	r, err := lock.NewRedis(ctx, lock.RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { r.Close() }, nil
}

// createNotifier wires FCM when configured. Without it events are only logged.
func createNotifier(ctx context.Context, env, credentials, tokens string, log *logger.Logger, metrics *observability.Metrics) *notify.Sink {
	fcmCfg := notify.FCMConfig{
		CredentialsFile: credentials,
		CredentialsJSON: os.Getenv("FCM_CREDENTIALS_JSON"),
		Tokens:          splitList(tokens),
	}
	if !fcmCfg.Enabled() {
		return notify.NewSink(env, log, metrics)
	}
	fcm, err := notify.NewFCM(ctx, fcmCfg)
	if err != nil {
		log.Error("fcm disabled", err)
		return notify.NewSink(env, log, metrics)
	}
	return notify.NewSink(env, log, metrics, fcm)
}

func startHTTPServer(addr string, log *logger.Logger, status func() any) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status())
	})

	log.Infof("starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("HTTP server", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
