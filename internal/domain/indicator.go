package domain

import "time"

// IndicatorSnapshot is the immutable indicator record of one closed bar.
// EMA periods depend on the strategy: main uses 9/22/60, bottom uses 5/20/60.
type IndicatorSnapshot struct {
	Timeframe   Timeframe `json:"timeframe"`
	BarID       int64     `json:"bar_id"`
	KlineTime   time.Time `json:"kline_time"`
	Open        float64   `json:"open"`
	Close       float64   `json:"close"`
	EMAFast     float64   `json:"ema_fast"`
	EMAMid      float64   `json:"ema_mid"`
	EMASlow     float64   `json:"ema_slow"`
	MACD        float64   `json:"macd"`         // MACD histogram bar
	ConditionID int       `json:"condition_id"` // matched sub-condition, main strategy only
}

// Clone returns a copy.
func (s *IndicatorSnapshot) Clone() *IndicatorSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
