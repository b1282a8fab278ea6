package domain

import "time"

// ExchangeTZ is the exchange clock (UTC+8). Session rules are expressed in it.
var ExchangeTZ = time.FixedZone("CST", 8*60*60)

// Timeframe is a bar granularity.
type Timeframe int

// Timeframes, coarsest first.
const (
	TimeframeDaily Timeframe = iota
	TimeframeThreeHour
	TimeframeThirtyMinute
	TimeframeFiveMinute
)

// Duration returns the bar length.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case TimeframeDaily:
		return 24 * time.Hour
	case TimeframeThreeHour:
		return 3 * time.Hour
	case TimeframeThirtyMinute:
		return 30 * time.Minute
	default:
		return 5 * time.Minute
	}
}

func (t Timeframe) String() string {
	switch t {
	case TimeframeDaily:
		return "1d"
	case TimeframeThreeHour:
		return "3h"
	case TimeframeThirtyMinute:
		return "30m"
	case TimeframeFiveMinute:
		return "5m"
	default:
		return "unknown"
	}
}

// ParseTimeframe parses the String form.
func ParseTimeframe(s string) (Timeframe, bool) {
	for _, tf := range AllTimeframes {
		if tf.String() == s {
			return tf, true
		}
	}
	return 0, false
}

// AllTimeframes lists timeframes coarsest first.
var AllTimeframes = []Timeframe{TimeframeDaily, TimeframeThreeHour, TimeframeThirtyMinute, TimeframeFiveMinute}

// Bar is one OHLC bar. Time is the bar open time.
type Bar struct {
	ID     int64 // monotonically increasing within a series
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote trading statuses.
const (
	TradingStatusContinuous = "CONTINOUS"
	TradingStatusClosed     = "CLOSED"
)

// Quote is the latest market snapshot of a symbol.
type Quote struct {
	Symbol           string
	LastPrice        float64
	UnderlyingSymbol string // for continuous symbols: the contract currently mapped to
	TradingStatus    string
	Datetime         time.Time
	ExpireRestDays   int
}

// IsTrading reports whether the quote is in continuous trading.
func (q *Quote) IsTrading() bool {
	return q.TradingStatus == TradingStatusContinuous
}
