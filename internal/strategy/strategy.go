package strategy

import (
	"errors"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/escalation"
	"futures-trader/internal/indicator"
)

// Errors returned by strategies.
var (
	ErrMissingSeries        = errors.New("missing bar series")
	ErrMissingOpenCondition = errors.New("open condition snapshot required")
)

// Strategy is the capability set of one (kind, direction) variant. Each
// timeframe is evaluated independently on its reference bar; finer
// timeframes receive the coarser results they branch on.
//
// A miss is a Result with Matched=false, never an error. Errors signal
// missing or malformed data.
type Strategy interface {
	Kind() domain.StrategyKind
	Direction() domain.Direction
	Periods() indicator.Periods

	MatchDaily(in *Input) (Result, error)
	MatchThreeHour(in *Input, daily Result) (Result, error)
	MatchThirtyMinute(in *Input, daily Result) (Result, error)
	MatchFiveMinute(in *Input) (Result, error)

	// SizePosition returns the lots to open at price.
	SizePosition(balance, price float64) int

	// Escalation returns the stop-loss / take-profit policy of the variant.
	Escalation() escalation.Policy
}

// Result is the memoized outcome of one timeframe on one bar.
type Result struct {
	Matched      bool
	SubCondition int                       // matched rule id, 0 when not matched
	Snapshot     *domain.IndicatorSnapshot // nil when the timeframe captures nothing
	MACDCarry    bool                      // reversal daily only: MACD agreed with the direction
}

// Input is the market view of one symbol on one tick.
type Input struct {
	Symbol    string
	Series    map[domain.Timeframe]*indicator.Series
	InSession bool // a session is running, so the newest bar is still forming
	Now       time.Time

	memo *Memo
}

func (in *Input) series(tf domain.Timeframe) (*indicator.Series, error) {
	s, ok := in.Series[tf]
	if !ok || s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("%s %s: %w", in.Symbol, tf, ErrMissingSeries)
	}
	return s, nil
}

// resolve evaluates fn once per bar of tf, going through the memo when set.
func (in *Input) resolve(tf domain.Timeframe, barTime time.Time, fn func() (Result, error)) (Result, error) {
	if in.memo == nil {
		return fn()
	}
	return in.memo.Resolve(tf, barTime, fn)
}

// snapshotWith returns a copy of snap carrying the sub-condition id.
func snapshotWith(snap *domain.IndicatorSnapshot, cond int) *domain.IndicatorSnapshot {
	c := snap.Clone()
	c.ConditionID = cond
	return c
}
