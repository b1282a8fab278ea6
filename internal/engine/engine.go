// Package engine runs the trading loop: one tick per market update, one
// worker per continuous symbol, each worker the only writer of its symbol's
// trade state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"futures-trader/internal/domain"
	"futures-trader/internal/lock"
	"futures-trader/internal/logger"
	"futures-trader/internal/market"
	"futures-trader/internal/notify"
	"futures-trader/internal/observability"
	"futures-trader/internal/orders"
	"futures-trader/internal/rollover"
	"futures-trader/internal/storage"
	"futures-trader/internal/strategy"
	"futures-trader/internal/symbol"
	"futures-trader/internal/tradestatus"
)

// ErrNoInstruments is returned when no active future config is given.
var ErrNoInstruments = errors.New("no active instruments")

// Options configures an Engine.
type Options struct {
	// Required
	Feed      market.Feed
	Gateway   market.Gateway
	Statuses  storage.TradeStatusStore
	Positions storage.PositionStore
	Rollovers storage.RolloverStore
	Tips      storage.TipStore
	Orders    storage.OrderStore
	Trade     domain.TradeConfig
	Futures   []*domain.FutureConfig

	// Optional
	Audit       storage.AuditStore
	Locker      lock.Locker  // nil uses an in-process locker
	Notifier    *notify.Sink // nil disables notifications
	Metrics     *observability.Metrics
	Log         *logger.Logger
	RunID       string
	WaitTimeout time.Duration // supervisory bound on each wait; zero waits for ctx
	Workers     int           // instruments processed concurrently; zero means all
}

// Engine drives the per-symbol lifecycle on every market update.
type Engine struct {
	feed        market.Feed
	statuses    storage.TradeStatusStore
	positions   storage.PositionStore
	tips        storage.TipStore
	machine     *tradestatus.Machine
	orders      *orders.Orchestrator
	rollover    *rollover.Protocol
	locker      lock.Locker
	notifier    *notify.Sink
	metrics     *observability.Metrics
	log         *logger.Logger
	trade       domain.TradeConfig
	waitTimeout time.Duration
	workers     int

	instruments []*instrument
}

// New creates an Engine with one instrument per active future config.
func New(opts Options) (*Engine, error) {
	if opts.Metrics == nil {
		opts.Metrics = observability.Discard()
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Trade.IsBacktest() {
		opts.Notifier = nil
	}

	machine := tradestatus.NewMachine(opts.Statuses, opts.Positions)
	orch := orders.New(orders.Options{
		Feed:        opts.Feed,
		Gateway:     opts.Gateway,
		Machine:     machine,
		Orders:      opts.Orders,
		Audit:       opts.Audit,
		Notifier:    opts.Notifier,
		Metrics:     opts.Metrics,
		Log:         opts.Log,
		RunID:       opts.RunID,
		WaitTimeout: opts.WaitTimeout,
	})

	e := &Engine{
		feed:      opts.Feed,
		statuses:  opts.Statuses,
		positions: opts.Positions,
		tips:      opts.Tips,
		machine:   machine,
		orders:    orch,
		rollover: rollover.New(rollover.Options{
			Statuses:  opts.Statuses,
			Positions: opts.Positions,
			Rollovers: opts.Rollovers,
			Closer:    orch,
			Metrics:   opts.Metrics,
			Log:       opts.Log,
		}),
		locker:      opts.Locker,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		log:         opts.Log.With("component", "engine"),
		trade:       opts.Trade,
		waitTimeout: opts.WaitTimeout,
		workers:     opts.Workers,
	}

	for _, cfg := range opts.Futures {
		if !cfg.IsActive {
			continue
		}
		inst, err := e.newInstrument(cfg)
		if err != nil {
			return nil, err
		}
		e.instruments = append(e.instruments, inst)
	}
	if len(e.instruments) == 0 {
		return nil, ErrNoInstruments
	}
	return e, nil
}

// newInstrument builds the targets of cfg for every configured strategy and direction.
func (e *Engine) newInstrument(cfg *domain.FutureConfig) (*instrument, error) {
	inst := newInstrumentState(cfg)
	for _, kind := range e.trade.Strategies {
		for _, dir := range e.trade.Direction.Directions() {
			custom, err := symbol.CustomSymbol(cfg.Symbol, dir, kind)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", cfg.Symbol, err)
			}
			strat, err := strategy.FromConfig(kind, dir, cfg)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", cfg.Symbol, err)
			}
			inst.targets = append(inst.targets, &target{
				Target: rollover.Target{
					CustomSymbol: custom,
					Kind:         kind,
					Direction:    dir,
					Config:       cfg,
				},
				strategy:   strat,
				evaluators: make(map[string]*strategy.Evaluator),
				tipChecked: make(map[string]time.Time),
			})
		}
	}
	return inst, nil
}

// Run ticks once, then once per market update until ctx is done or a replay
// feed is exhausted. Leases are released on return.
func (e *Engine) Run(ctx context.Context) error {
	defer e.release()

	e.log.Infof("trading %d instruments, mode %s, direction %s", len(e.instruments), e.trade.Mode, e.trade.Direction)
	e.notifier.Send(ctx, notify.StartupEvent(e.trade.Strategies, e.trade.Direction, e.feed.Now()))

	if err := e.Tick(ctx); err != nil {
		return err
	}
	for {
		err := e.feed.WaitUpdate(ctx, e.waitTimeout)
		switch {
		case errors.Is(err, market.ErrFeedExhausted):
			e.log.Infof("replay finished at %s", e.feed.Now().Format(time.RFC3339))
			return nil
		case errors.Is(err, market.ErrWaitTimeout):
			e.log.Warnf("no market update within %s", e.waitTimeout)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait update: %w", err)
		}
		if err := e.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Tick processes every instrument once. Instrument failures are logged and
// retried on the next tick; only cancellation is returned.
func (e *Engine) Tick(ctx context.Context) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for _, inst := range e.instruments {
		inst := inst
		g.Go(func() error {
			e.runInstrument(gctx, inst)
			return gctx.Err()
		})
	}
	err := g.Wait()
	e.metrics.RecordTick(start, time.Now())
	return err
}

// release gives up every held lease.
func (e *Engine) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, inst := range e.instruments {
		if inst.lease == nil {
			continue
		}
		if err := inst.lease.Release(ctx); err != nil && !errors.Is(err, lock.ErrLost) {
			e.log.Warnf("release lease %s: %v", inst.lease.Key(), err)
		}
		inst.lease = nil
	}
}
