package domain

import "time"

// OrderSide is the buy/sell side of a gateway order.
type OrderSide string

// Order sides.
const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderOffset is the open/close flag of a gateway order.
type OrderOffset string

// Order offsets.
const (
	OffsetOpen  OrderOffset = "OPEN"
	OffsetClose OrderOffset = "CLOSE"
)

// Order statuses reported by the gateway.
const (
	OrderAlive    = "ALIVE"
	OrderFinished = "FINISHED"
)

// Price types.
const (
	PriceTypeAny   = "ANY"   // market
	PriceTypeLimit = "LIMIT" // limit at the last quoted price
)

// OrderRecord is the audit record of a gateway order that reached a terminal state.
// Corresponds to orders table (postgres) and order_audit (clickhouse).
type OrderRecord struct {
	OrderID         string
	ExchangeOrderID string
	Symbol          string
	Side            OrderSide
	Offset          OrderOffset
	VolumeOrigin    int
	VolumeLeft      int
	LimitPrice      *float64 // nil for market orders
	PriceType       string
	Status          string
	IsError         bool
	LastMessage     string
	TradePrice      float64
	InsertTime      time.Time
}
