package market

import (
	"context"
	"fmt"
	"sync"

	"futures-trader/internal/domain"
)

// SimGateway fills orders against the last quoted price of a feed. An order
// is Alive when submitted and Finished on its first poll.
type SimGateway struct {
	feed Feed

	mu       sync.Mutex
	orders   map[string]*Order
	noMarket map[string]bool // symbols rejecting market orders
	failures []error         // injected submission errors, consumed in order
}

// NewSimGateway creates a gateway over feed.
func NewSimGateway(feed Feed) *SimGateway {
	return &SimGateway{
		feed:     feed,
		orders:   make(map[string]*Order),
		noMarket: make(map[string]bool),
	}
}

// RejectMarketOrders makes symbol reject market orders, as some exchanges do.
func (g *SimGateway) RejectMarketOrders(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.noMarket[symbol] = true
}

// FailNext makes the next submission fail with err.
func (g *SimGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, err)
}

// Submit accepts an order.
func (g *SimGateway) Submit(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Volume <= 0 {
		return nil, fmt.Errorf("order volume %d must be positive", req.Volume)
	}

	g.mu.Lock()
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		g.mu.Unlock()
		return nil, err
	}
	if req.LimitPrice == nil && g.noMarket[req.Symbol] {
		g.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", req.Symbol, ErrMarketOrderUnsupported)
	}
	g.mu.Unlock()

	q, err := g.feed.Quote(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:           newOrderID(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Offset:       req.Offset,
		VolumeOrigin: req.Volume,
		VolumeLeft:   req.Volume,
		LimitPrice:   req.LimitPrice,
		PriceType:    domain.PriceTypeAny,
		Status:       domain.OrderAlive,
		InsertTime:   q.Datetime,
	}
	o.ExchangeOrderID = o.ID
	o.TradePrice = q.LastPrice
	if req.LimitPrice != nil {
		o.PriceType = domain.PriceTypeLimit
		o.TradePrice = *req.LimitPrice
	}

	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()

	if sf, ok := g.feed.(*SimFeed); ok {
		sf.Publish()
	}
	return o.Clone(), nil
}

// Order returns the order state, filling an alive order.
func (g *SimGateway) Order(_ context.Context, orderID string) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	o, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", orderID, ErrUnknownOrder)
	}
	if o.Status == domain.OrderAlive {
		o.Status = domain.OrderFinished
		o.VolumeLeft = 0
		o.LastMessage = "filled"
	}
	return o.Clone(), nil
}

var _ Gateway = (*SimGateway)(nil)
