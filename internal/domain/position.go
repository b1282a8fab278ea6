package domain

import "time"

// CloseReason classifies an exit order.
type CloseReason int

// Close reasons. Values match the persisted representation.
const (
	CloseStopLoss   CloseReason = 0
	CloseTakeProfit CloseReason = 1
	CloseRollover   CloseReason = 2
	CloseManual     CloseReason = 3
)

func (r CloseReason) String() string {
	switch r {
	case CloseStopLoss:
		return "STOP_LOSS"
	case CloseTakeProfit:
		return "TAKE_PROFIT"
	case CloseRollover:
		return "ROLLOVER"
	case CloseManual:
		return "MANUAL"
	default:
		return "UNKNOWN"
	}
}

// OpenPositionRecord is one executed entry order.
// Corresponds to open_positions table.
type OpenPositionRecord struct {
	PositionID   string // deterministic hash of (custom_symbol, symbol, order_id)
	CustomSymbol string
	Symbol       string
	Kind         StrategyKind
	Direction    Direction
	TradePrice   float64   // fill price
	Volume       int       // filled lots
	TradeTime    time.Time // fill time
	OrderID      string    // broker order id

	OpenCondition  *OpenCondition      // copy at entry time
	CloseCondition CloseConditionState // copy at entry time
	IsClosed       bool
	CloseIDs       []string // ordered CloseVolumeRecord ids
	TipID          string   // reversal strategy only
}

// Clone returns a deep copy.
func (p *OpenPositionRecord) Clone() *OpenPositionRecord {
	if p == nil {
		return nil
	}
	c := *p
	c.OpenCondition = p.OpenCondition.Clone()
	c.CloseIDs = append([]string(nil), p.CloseIDs...)
	return &c
}

// CloseVolumeRecord is one executed exit order, possibly partial.
// Corresponds to close_volumes table.
type CloseVolumeRecord struct {
	CloseID    string // deterministic hash of (position_id, order_id)
	PositionID string
	Symbol     string
	Direction  Direction
	TradePrice float64
	Volume     int
	TradeTime  time.Time
	OrderID    string
	Reason     CloseReason
	Message    string
}

// Fill is a terminal order outcome handed to the state machine.
type Fill struct {
	OrderID string
	Price   float64
	Volume  int
	Time    time.Time
}
