// Package market defines the market data feed and order gateway the engine
// trades through, plus a simulated implementation and a websocket bridge.
package market

import (
	"context"
	"errors"
	"time"

	"futures-trader/internal/domain"
)

// Errors returned by feeds and gateways.
var (
	ErrWaitTimeout            = errors.New("wait for market update timed out")
	ErrFeedExhausted          = errors.New("replay feed exhausted")
	ErrUnknownSymbol          = errors.New("unknown symbol")
	ErrMarketOrderUnsupported = errors.New("market orders unsupported for symbol")
	ErrClosed                 = errors.New("market connection closed")
	ErrUnknownOrder           = errors.New("unknown order")
)

// Feed is the market data source. Backtest and live feeds behave the same.
type Feed interface {
	// Bars returns up to length bars of symbol ending with the newest (possibly
	// still forming) bar, oldest first.
	Bars(ctx context.Context, symbol string, tf domain.Timeframe, length int) ([]domain.Bar, error)

	// Quote returns the latest quote of symbol.
	Quote(ctx context.Context, symbol string) (domain.Quote, error)

	// WaitUpdate blocks until new data arrives. A zero timeout waits until ctx is done.
	WaitUpdate(ctx context.Context, timeout time.Duration) error

	// BarChanged reports whether a new bar of symbol appeared since the previous call.
	BarChanged(symbol string, tf domain.Timeframe) bool

	// Now returns the feed clock.
	Now() time.Time
}

// Subscriber is implemented by feeds that must be told which symbols to stream.
type Subscriber interface {
	Subscribe(ctx context.Context, symbols []string) error
}

// OrderRequest is one order submission. A nil LimitPrice is a market order.
type OrderRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Offset     domain.OrderOffset
	Volume     int
	LimitPrice *float64
}

// Gateway submits orders and reports their state.
type Gateway interface {
	// Submit places an order. An error means the order was not accepted.
	Submit(ctx context.Context, req OrderRequest) (*Order, error)

	// Order returns the latest state of a submitted order.
	Order(ctx context.Context, orderID string) (*Order, error)
}

// Order is the gateway view of an order.
type Order struct {
	ID              string             `json:"order_id"`
	ExchangeOrderID string             `json:"exchange_order_id"`
	Symbol          string             `json:"symbol"`
	Side            domain.OrderSide   `json:"direction"`
	Offset          domain.OrderOffset `json:"offset"`
	VolumeOrigin    int                `json:"volume_orign"`
	VolumeLeft      int                `json:"volume_left"`
	LimitPrice      *float64           `json:"limit_price,omitempty"`
	PriceType       string             `json:"price_type"`
	Status          string             `json:"status"`
	IsError         bool               `json:"is_error"`
	LastMessage     string             `json:"last_msg"`
	TradePrice      float64            `json:"trade_price"`
	InsertTime      time.Time          `json:"insert_date_time"`
}

// Finished reports whether the order reached a terminal state.
func (o *Order) Finished() bool {
	return o.Status == domain.OrderFinished
}

// Filled returns the traded volume.
func (o *Order) Filled() int {
	return o.VolumeOrigin - o.VolumeLeft
}

// Clone returns a copy.
func (o *Order) Clone() *Order {
	c := *o
	if o.LimitPrice != nil {
		p := *o.LimitPrice
		c.LimitPrice = &p
	}
	return &c
}

// Record converts a terminal order into its audit record.
func (o *Order) Record() *domain.OrderRecord {
	c := o.Clone()
	return &domain.OrderRecord{
		OrderID:         c.ID,
		ExchangeOrderID: c.ExchangeOrderID,
		Symbol:          c.Symbol,
		Side:            c.Side,
		Offset:          c.Offset,
		VolumeOrigin:    c.VolumeOrigin,
		VolumeLeft:      c.VolumeLeft,
		LimitPrice:      c.LimitPrice,
		PriceType:       c.PriceType,
		Status:          c.Status,
		IsError:         c.IsError,
		LastMessage:     c.LastMessage,
		TradePrice:      c.TradePrice,
		InsertTime:      c.InsertTime,
	}
}
