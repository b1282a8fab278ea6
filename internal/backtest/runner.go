// Package backtest replays stored bars through the trading engine with
// simulated execution and fresh in-memory state.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"futures-trader/internal/domain"
	"futures-trader/internal/engine"
	"futures-trader/internal/logger"
	"futures-trader/internal/market"
	"futures-trader/internal/observability"
	"futures-trader/internal/storage"
	"futures-trader/internal/storage/memory"
	"futures-trader/internal/symbol"
)

// Errors returned by Run.
var (
	ErrInvalidWindow = errors.New("backtest window must have start before end")
	ErrNoContracts   = errors.New("calendar has no contracts for instrument")
)

// DefaultStep is the replay clock step, one 5-minute bar.
const DefaultStep = 5 * time.Minute

// warmup is how far before the window each timeframe is loaded, enough for
// engine.BarLength bars of exchange trading hours.
var warmup = map[domain.Timeframe]time.Duration{
	domain.TimeframeDaily:        400 * 24 * time.Hour,
	domain.TimeframeThreeHour:    100 * 24 * time.Hour,
	domain.TimeframeThirtyMinute: 20 * 24 * time.Hour,
	domain.TimeframeFiveMinute:   5 * 24 * time.Hour,
}

// Config describes one backtest run.
type Config struct {
	Trade    domain.TradeConfig // BacktestStart and BacktestEnd bound the replay
	Futures  []*domain.FutureConfig
	Calendar *Calendar
	Step     time.Duration      // zero uses DefaultStep
	Audit    storage.AuditStore // optional, rows are tagged with the run id
	RunID    string             // empty generates one
}

// Results holds backtest output.
type Results struct {
	RunID    string
	Start    time.Time
	End      time.Time
	Orders   []*domain.OrderRecord // by insert time
	Opens    int
	Closes   int
	Statuses []*domain.TradeStatus
	States   []*domain.JointSymbolRolloverState
}

// Runner executes backtests against a bar store.
type Runner struct {
	bars    storage.BarStore
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewRunner creates a new backtest runner.
func NewRunner(bars storage.BarStore, metrics *observability.Metrics, log *logger.Logger) *Runner {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{bars: bars, metrics: metrics, log: log.With("component", "backtest")}
}

// Run replays the configured window and returns what the engine traded.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Results, error) {
	start, end := cfg.Trade.BacktestStart, cfg.Trade.BacktestEnd
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}
	step := cfg.Step
	if step <= 0 {
		step = DefaultStep
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	trade := cfg.Trade
	trade.Mode = domain.ModeBacktest

	feed := market.NewReplayFeed(start, end, step)
	var contracts []string
	for _, fc := range cfg.Futures {
		if !fc.IsActive {
			continue
		}
		syms, err := r.prepare(ctx, feed, fc, cfg.Calendar, start, end)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, syms...)
	}

	trades := memory.NewTradeStore()
	rollovers := memory.NewRolloverStore()
	orders := memory.NewOrderStore()
	eng, err := engine.New(engine.Options{
		Feed:      feed,
		Gateway:   market.NewSimGateway(feed),
		Statuses:  trades,
		Positions: trades,
		Rollovers: rollovers,
		Tips:      memory.NewTipStore(),
		Orders:    orders,
		Trade:     trade,
		Futures:   cfg.Futures,
		Audit:     cfg.Audit,
		Metrics:   r.metrics,
		Log:       r.log,
		RunID:     runID,
	})
	if err != nil {
		return nil, err
	}

	r.log.WithFields(map[string]interface{}{
		"run_id": runID,
		"start":  start.Format(time.RFC3339),
		"end":    end.Format(time.RFC3339),
	}).Infof("backtest started, %d contracts", len(contracts))
	if err := eng.Run(ctx); err != nil {
		return nil, err
	}

	return r.collect(ctx, runID, start, end, trade, cfg.Futures, contracts, trades, rollovers, orders)
}

// prepare loads the bars and quotes of one instrument into feed and returns
// its contracts.
func (r *Runner) prepare(ctx context.Context, feed *market.SimFeed, fc *domain.FutureConfig, cal *Calendar, start, end time.Time) ([]string, error) {
	var listed []Contract
	if cal != nil {
		listed = cal.For(fc.Symbol)
	}
	if len(listed) == 0 {
		return nil, fmt.Errorf("%s: %w", fc.Symbol, ErrNoContracts)
	}

	for i, ct := range listed {
		q := domain.Quote{Symbol: fc.Symbol, UnderlyingSymbol: ct.Symbol}
		if i == 0 {
			feed.SetQuote(q)
		} else {
			feed.ScheduleQuote(ct.MainFrom, q)
		}
		feed.SetQuote(domain.Quote{Symbol: ct.Symbol})
		feed.SetExpiry(ct.Symbol, ct.Expire)
	}

	symbols := []string{fc.Symbol}
	contracts := make([]string, 0, len(listed))
	for _, ct := range listed {
		symbols = append(symbols, ct.Symbol)
		contracts = append(contracts, ct.Symbol)
	}
	for _, sym := range symbols {
		for _, tf := range domain.AllTimeframes {
			bars, err := r.bars.GetRange(ctx, sym, tf, start.Add(-warmup[tf]), end)
			if err != nil {
				return nil, fmt.Errorf("load %s %s bars: %w", sym, tf, err)
			}
			if len(bars) == 0 {
				r.log.Warnf("no %s bars for %s", tf, sym)
				continue
			}
			for i := range bars {
				bars[i].ID = int64(i + 1)
			}
			feed.AddBars(sym, tf, bars...)
		}
	}
	return contracts, nil
}

func (r *Runner) collect(
	ctx context.Context,
	runID string,
	start, end time.Time,
	trade domain.TradeConfig,
	futures []*domain.FutureConfig,
	contracts []string,
	trades *memory.TradeStore,
	rollovers *memory.RolloverStore,
	orders *memory.OrderStore,
) (*Results, error) {
	res := &Results{RunID: runID, Start: start, End: end}

	for _, sym := range contracts {
		recs, err := orders.ListBySymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		for _, o := range recs {
			if o.Offset == domain.OffsetOpen {
				res.Opens++
			} else {
				res.Closes++
			}
		}
		res.Orders = append(res.Orders, recs...)
	}
	sort.SliceStable(res.Orders, func(i, j int) bool {
		return res.Orders[i].InsertTime.Before(res.Orders[j].InsertTime)
	})

	for _, fc := range futures {
		if !fc.IsActive {
			continue
		}
		for _, kind := range trade.Strategies {
			for _, dir := range trade.Direction.Directions() {
				custom, err := symbol.CustomSymbol(fc.Symbol, dir, kind)
				if err != nil {
					return nil, err
				}
				statuses, err := trades.ListByCustomSymbol(ctx, custom)
				if err != nil {
					return nil, err
				}
				res.Statuses = append(res.Statuses, statuses...)
				if st, ok, err := rollovers.GetState(ctx, custom); err != nil {
					return nil, err
				} else if ok {
					res.States = append(res.States, st)
				}
			}
		}
	}

	r.log.WithFields(map[string]interface{}{
		"run_id": runID,
		"opens":  res.Opens,
		"closes": res.Closes,
	}).Infof("backtest finished")
	return res, nil
}
