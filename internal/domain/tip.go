package domain

import "time"

// PreTradeTip is a deduplicated daily reversal signal.
// Keyed by a content hash of (custom_symbol, symbol, daily bar date).
type PreTradeTip struct {
	TipID         string
	CustomSymbol  string
	Symbol        string
	Direction     Direction
	DailyBarTime  time.Time // daily bar that produced the signal
	LastPrice     float64   // reference price: daily close
	Volume        int       // suggested lots, refreshed on every re-evaluation
	NeedTrade     bool      // operator approval; false on creation
	OpenCondition *OpenCondition
	CreatedAt     time.Time
	LastModified  time.Time
}
