package domain

import "time"

// LifecycleState is the position lifecycle of a TradeStatus.
type LifecycleState int

// Lifecycle states. Closed is terminal for one instantiation.
const (
	StateIdle   LifecycleState = 0
	StateOpen   LifecycleState = 1
	StateClosed LifecycleState = 2
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// TradeStatus is the authoritative per-(strategy, symbol, direction) position lifecycle.
// Corresponds to trade_statuses table.
type TradeStatus struct {
	CustomSymbol   string         // e.g. SHFE_rb_main_long
	Symbol         string         // exchange contract, e.g. SHFE.rb2401
	Kind           StrategyKind   // main | bottom
	Direction      Direction      // long | short
	State          LifecycleState // idle | open | closed
	CarryingVolume int            // lots currently held
	StartTime      time.Time      // fill time of the opening order (zero when never opened)
	EndTime        time.Time      // fill time of the final close or closeout time
	LastModified   time.Time

	OpenCondition  *OpenCondition      // snapshots captured when entry conditions matched
	CloseCondition CloseConditionState // stop-loss / take-profit state
	OpenPositionID string              // current OpenPositionRecord (empty unless Open)
}

// Key returns the unique key of the status.
func (t *TradeStatus) Key() StatusKey {
	return StatusKey{Kind: t.Kind, Symbol: t.Symbol, Direction: t.Direction}
}

// IsOpen reports whether the status holds a position.
func (t *TradeStatus) IsOpen() bool {
	return t.State == StateOpen
}

// Clone returns a deep copy.
func (t *TradeStatus) Clone() *TradeStatus {
	if t == nil {
		return nil
	}
	c := *t
	c.OpenCondition = t.OpenCondition.Clone()
	return &c
}

// StatusKey is the uniqueness key of a TradeStatus: (symbol, direction) per strategy kind.
type StatusKey struct {
	Kind      StrategyKind
	Symbol    string
	Direction Direction
}

// OpenCondition holds the indicator snapshots captured per timeframe on a cascade match.
type OpenCondition struct {
	Daily    *IndicatorSnapshot `json:"daily,omitempty"`
	Hourly   *IndicatorSnapshot `json:"hourly,omitempty"` // 3-hour bars
	Minute30 *IndicatorSnapshot `json:"minute_30,omitempty"`
	Minute5  *IndicatorSnapshot `json:"minute_5,omitempty"` // main strategy only
}

// Clone returns a deep copy.
func (o *OpenCondition) Clone() *OpenCondition {
	if o == nil {
		return nil
	}
	return &OpenCondition{
		Daily:    o.Daily.Clone(),
		Hourly:   o.Hourly.Clone(),
		Minute30: o.Minute30.Clone(),
		Minute5:  o.Minute5.Clone(),
	}
}

// Set stores a snapshot into the slot of its timeframe.
func (o *OpenCondition) Set(s *IndicatorSnapshot) {
	switch s.Timeframe {
	case TimeframeDaily:
		o.Daily = s
	case TimeframeThreeHour:
		o.Hourly = s
	case TimeframeThirtyMinute:
		o.Minute30 = s
	case TimeframeFiveMinute:
		o.Minute5 = s
	}
}

// DefaultStopLossReason is the reason attached to a stop-loss close until tightening changes it.
const DefaultStopLossReason = "stop loss"

// TightenedStopLossReason is the reason after the one-time stop-loss tightening.
const TightenedStopLossReason = "trailing take-profit"

// CloseConditionState is the stop-loss / take-profit state of an open position.
type CloseConditionState struct {
	TakeProfitStage   int     `json:"take_profit_stage"`
	TakeProfitCond    int     `json:"take_profit_cond"` // sub-condition selecting the take-profit policy
	StopLossPrice     float64 `json:"stop_loss_price"`
	TakeProfitTrigger float64 `json:"take_profit_trigger"`
	HasTightened      bool    `json:"has_tightened"`
	Reason            string  `json:"reason"`
	HasEnteredTP      bool    `json:"has_entered_tp"`
	HasSuspendedTP    bool    `json:"has_suspended_tp"`
}

// DefaultCloseCondition returns the reset state.
func DefaultCloseCondition() CloseConditionState {
	return CloseConditionState{Reason: DefaultStopLossReason}
}
