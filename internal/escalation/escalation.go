// Package escalation implements the stop-loss / take-profit policies applied
// to an open position on every tick.
package escalation

import (
	"errors"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/indicator"
)

// Errors returned by policies.
var (
	ErrMissingOpenCondition = errors.New("open condition snapshot required")
	ErrMissingDailySeries   = errors.New("daily series required")
)

// Policy is the stop-loss / take-profit behaviour of one strategy variant.
// Policies are pure: they read the current state and return the next one.
type Policy interface {
	// Init computes the close condition of a freshly filled position.
	Init(fill float64, oc *domain.OpenCondition) (domain.CloseConditionState, error)

	// Evaluate runs one tick against an open position.
	Evaluate(in Input) (Outcome, error)
}

// Input is the per-tick view of an open position.
type Input struct {
	State     domain.CloseConditionState
	FillPrice float64
	Carry     int     // lots currently held
	Price     float64 // last quoted price
	Now       time.Time
	Daily     *indicator.Series
}

// Exit is an order the policy wants executed.
type Exit struct {
	Volume  int
	Reason  domain.CloseReason
	Message string
}

// Outcome is the result of one Evaluate call. State must be persisted when
// Changed is set, together with the exit fill when Exit is non-nil.
type Outcome struct {
	State   domain.CloseConditionState
	Changed bool
	Exit    *Exit
}

func keep(s domain.CloseConditionState) Outcome {
	return Outcome{State: s}
}

// dailyReference returns the last closed daily bar.
func dailyReference(daily *indicator.Series) (*domain.IndicatorSnapshot, error) {
	if daily == nil {
		return nil, ErrMissingDailySeries
	}
	return daily.Snapshot(-2)
}

// Stub never acts. The reversal strategy only opens from tips.
type Stub struct{}

// Init returns the reset close condition.
func (Stub) Init(float64, *domain.OpenCondition) (domain.CloseConditionState, error) {
	return domain.DefaultCloseCondition(), nil
}

// Evaluate returns the state unchanged.
func (Stub) Evaluate(in Input) (Outcome, error) {
	return keep(in.State), nil
}

var (
	_ Policy = Stub{}
	_ Policy = (*TrendLong)(nil)
	_ Policy = (*TrendShort)(nil)
)
