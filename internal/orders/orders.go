// Package orders turns open/close decisions into gateway orders and applies
// the resulting fills to the trade status machine.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/escalation"
	"futures-trader/internal/logger"
	"futures-trader/internal/market"
	"futures-trader/internal/notify"
	"futures-trader/internal/observability"
	"futures-trader/internal/storage"
	"futures-trader/internal/tradestatus"
)

// ErrOrderFailed is returned when an order could not be placed or did not fill.
var ErrOrderFailed = errors.New("order failed")

// Options configures an Orchestrator.
type Options struct {
	// Required
	Feed    market.Feed
	Gateway market.Gateway
	Machine *tradestatus.Machine
	Orders  storage.OrderStore

	// Optional
	Audit       storage.AuditStore
	Notifier    *notify.Sink // nil disables notifications (backtest)
	Metrics     *observability.Metrics
	Log         *logger.Logger
	RunID       string        // tags audit rows
	WaitTimeout time.Duration // per wait; zero waits for ctx
}

// Orchestrator is the only writer of trade status transitions.
type Orchestrator struct {
	feed        market.Feed
	gateway     market.Gateway
	machine     *tradestatus.Machine
	orders      storage.OrderStore
	audit       storage.AuditStore
	notifier    *notify.Sink
	metrics     *observability.Metrics
	log         *logger.Logger
	runID       string
	waitTimeout time.Duration
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Metrics == nil {
		opts.Metrics = observability.Discard()
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Orchestrator{
		feed:        opts.Feed,
		gateway:     opts.Gateway,
		machine:     opts.Machine,
		orders:      opts.Orders,
		audit:       opts.Audit,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		log:         opts.Log.With("component", "orders"),
		runID:       opts.RunID,
		waitTimeout: opts.WaitTimeout,
	}
}

// OpenRequest describes an entry.
type OpenRequest struct {
	Status        *domain.TradeStatus
	Volume        int
	OpenCondition *domain.OpenCondition
	Policy        escalation.Policy
	TipID         string
}

// Open submits the entry order, waits for the fill and persists the Open
// transition with the initial close condition of the policy.
func (o *Orchestrator) Open(ctx context.Context, req OpenRequest) (*domain.TradeStatus, error) {
	ts := req.Status
	if ts.State == domain.StateOpen {
		return nil, fmt.Errorf("%s: %w", ts.Symbol, tradestatus.ErrNotIdle)
	}
	if req.Volume <= 0 {
		return nil, fmt.Errorf("%s: %w", ts.Symbol, tradestatus.ErrEmptyFill)
	}

	order, err := o.execute(ctx, ts.Symbol, ts.Direction.OpenSide(), domain.OffsetOpen, req.Volume)
	if err != nil {
		return nil, err
	}
	fill := o.fillOf(order)

	cc, err := req.Policy.Init(fill.Price, req.OpenCondition)
	if err != nil {
		return nil, fmt.Errorf("init close condition %s: %w", ts.Symbol, err)
	}
	next, pos, err := o.machine.Open(ctx, ts, fill, req.OpenCondition, cc, req.TipID)
	if err != nil {
		return nil, err
	}

	o.metrics.PositionsOpened.WithLabelValues(string(ts.Kind), ts.Direction.String()).Inc()
	o.metrics.OpenPositions.WithLabelValues(ts.CustomSymbol).Set(1)
	o.log.WithFields(map[string]interface{}{
		"custom_symbol": ts.CustomSymbol,
		"symbol":        ts.Symbol,
		"direction":     ts.Direction.String(),
		"price":         fill.Price,
		"volume":        fill.Volume,
		"stop_loss":     cc.StopLossPrice,
		"take_profit":   cc.TakeProfitTrigger,
	}).Infof("opened position %s", pos.PositionID)

	if o.audit != nil {
		if err := o.audit.RecordMatch(ctx, domain.MatchRecordsOf(o.runID, next, req.OpenCondition, fill.Time)); err != nil {
			o.log.Warnf("record match audit: %v", err)
		}
	}
	o.notifier.Send(ctx, notify.PositionEvent(ts.CustomSymbol, ts.Symbol, ts.Direction.OpenSide(), fill.Volume, fill.Price, fill.Time))
	return next, nil
}

// Close submits an exit order for volume lots and persists the close.
func (o *Orchestrator) Close(ctx context.Context, ts *domain.TradeStatus, volume int, reason domain.CloseReason, msg string) (tradestatus.Closed, error) {
	if ts.State != domain.StateOpen {
		return tradestatus.Closed{}, fmt.Errorf("%s: %w", ts.Symbol, tradestatus.ErrNotOpen)
	}
	if volume > ts.CarryingVolume {
		return tradestatus.Closed{}, fmt.Errorf("%s: %w (%d > %d)", ts.Symbol, tradestatus.ErrOverClose, volume, ts.CarryingVolume)
	}

	order, err := o.execute(ctx, ts.Symbol, ts.Direction.CloseSide(), domain.OffsetClose, volume)
	if err != nil {
		return tradestatus.Closed{}, err
	}
	fill := o.fillOf(order)

	res, err := o.machine.Close(ctx, ts, fill, reason, msg)
	if err != nil {
		return tradestatus.Closed{}, err
	}

	o.metrics.PositionsClosed.WithLabelValues(reason.String()).Inc()
	if res.Final() {
		o.metrics.OpenPositions.WithLabelValues(ts.CustomSymbol).Set(0)
	}
	o.log.WithFields(map[string]interface{}{
		"custom_symbol": ts.CustomSymbol,
		"symbol":        ts.Symbol,
		"direction":     ts.Direction.String(),
		"price":         fill.Price,
		"volume":        fill.Volume,
		"reason":        reason.String(),
		"remaining":     res.Status.CarryingVolume,
	}).Infof("closed: %s", msg)

	o.notifier.Send(ctx, notify.PositionEvent(ts.CustomSymbol, ts.Symbol, ts.Direction.CloseSide(), fill.Volume, fill.Price, fill.Time))
	return res, nil
}

// fillOf converts a filled order.
func (o *Orchestrator) fillOf(order *market.Order) domain.Fill {
	at := order.InsertTime
	if at.IsZero() {
		at = o.feed.Now()
	}
	return domain.Fill{OrderID: order.ID, Price: order.TradePrice, Volume: order.Filled(), Time: at}
}

// execute places a market order, falls back once to a limit order at the last
// price when the market order is rejected, and waits for a terminal state.
func (o *Orchestrator) execute(ctx context.Context, symbol string, side domain.OrderSide, offset domain.OrderOffset, volume int) (*market.Order, error) {
	req := market.OrderRequest{Symbol: symbol, Side: side, Offset: offset, Volume: volume}

	order, err := o.submitAndWait(ctx, req)
	if err != nil && errors.Is(err, errRejected) {
		o.log.Warnf("%s market order rejected, retrying at last price: %v", symbol, err)
		o.metrics.OrderFallbacks.Inc()

		q, qerr := o.feed.Quote(ctx, symbol)
		if qerr != nil {
			return nil, fmt.Errorf("%s quote for limit fallback: %w", symbol, qerr)
		}
		price := q.LastPrice
		req.LimitPrice = &price
		order, err = o.submitAndWait(ctx, req)
	}
	if err != nil {
		o.metrics.OrdersFailed.WithLabelValues(string(offset)).Inc()
		return nil, fmt.Errorf("%s %s %s %d: %w", symbol, side, offset, volume, err)
	}
	return order, nil
}

// errRejected marks submission failures that qualify for the limit fallback.
var errRejected = errors.New("order rejected")

func (o *Orchestrator) submitAndWait(ctx context.Context, req market.OrderRequest) (*market.Order, error) {
	o.metrics.OrdersSubmitted.WithLabelValues(string(req.Offset)).Inc()
	start := time.Now()

	order, err := o.gateway.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrOrderFailed, errRejected, err)
	}

	for !order.Finished() {
		if order, err = o.gateway.Order(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("%w: poll: %v", ErrOrderFailed, err)
		}
		if order.Finished() {
			break
		}
		if err := o.feed.WaitUpdate(ctx, o.waitTimeout); err != nil {
			return nil, fmt.Errorf("wait for order %s: %w", order.ID, err)
		}
	}
	o.metrics.OrderWait.Observe(time.Since(start).Seconds())
	o.record(ctx, order)

	if order.IsError && order.Filled() == 0 {
		return nil, fmt.Errorf("%w: %w: %s", ErrOrderFailed, errRejected, order.LastMessage)
	}
	if order.Filled() == 0 {
		return nil, fmt.Errorf("%w: %s finished unfilled: %s", ErrOrderFailed, order.ID, order.LastMessage)
	}
	return order, nil
}

// record stores the terminal order. Failures are logged; the fill stands.
func (o *Orchestrator) record(ctx context.Context, order *market.Order) {
	rec := order.Record()
	if err := o.orders.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		o.log.Warnf("record order %s: %v", order.ID, err)
	}
	if o.audit != nil {
		if err := o.audit.RecordOrder(ctx, o.runID, rec); err != nil {
			o.log.Warnf("record order audit %s: %v", order.ID, err)
		}
	}
}
