package strategy

import (
	"futures-trader/internal/domain"
	"futures-trader/internal/logger"
)

// Signal is the outcome of a full cascade.
type Signal struct {
	Matched      bool
	Daily        Result
	ThreeHour    Result
	ThirtyMinute Result
	FiveMinute   Result
}

// OpenCondition collects the captured snapshots of a matched cascade.
func (s Signal) OpenCondition() *domain.OpenCondition {
	oc := &domain.OpenCondition{}
	for _, r := range []Result{s.Daily, s.ThreeHour, s.ThirtyMinute, s.FiveMinute} {
		if r.Snapshot != nil {
			oc.Set(r.Snapshot.Clone())
		}
	}
	return oc
}

// Evaluator runs the timeframe cascade of one strategy on one symbol and
// owns the per-bar memo of that pair.
type Evaluator struct {
	strategy Strategy
	memo     *Memo
	log      *logger.Logger
}

// NewEvaluator creates an evaluator with a fresh memo.
func NewEvaluator(s Strategy, log *logger.Logger) *Evaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &Evaluator{
		strategy: s,
		memo:     NewMemo(DefaultMemoDepth),
		log: log.WithFields(map[string]interface{}{
			"strategy":  string(s.Kind()),
			"direction": s.Direction().String(),
		}),
	}
}

// Strategy returns the evaluated strategy.
func (e *Evaluator) Strategy() Strategy {
	return e.strategy
}

// Evaluate runs daily -> 3h -> 30m -> 5m and stops at the first miss.
func (e *Evaluator) Evaluate(in *Input) (Signal, error) {
	in.memo = e.memo
	defer func() { in.memo = nil }()

	var sig Signal
	var err error
	log := e.log.With("symbol", in.Symbol)

	if sig.Daily, err = e.strategy.MatchDaily(in); err != nil {
		return Signal{}, err
	}
	if !sig.Daily.Matched {
		log.Debugf("daily miss")
		return sig, nil
	}
	if sig.ThreeHour, err = e.strategy.MatchThreeHour(in, sig.Daily); err != nil {
		return Signal{}, err
	}
	if !sig.ThreeHour.Matched {
		log.Debugf("3h miss after daily cond %d", sig.Daily.SubCondition)
		return sig, nil
	}
	if sig.ThirtyMinute, err = e.strategy.MatchThirtyMinute(in, sig.Daily); err != nil {
		return Signal{}, err
	}
	if !sig.ThirtyMinute.Matched {
		log.Debugf("30m miss after 3h cond %d", sig.ThreeHour.SubCondition)
		return sig, nil
	}
	if sig.FiveMinute, err = e.strategy.MatchFiveMinute(in); err != nil {
		return Signal{}, err
	}
	if !sig.FiveMinute.Matched {
		log.Debugf("5m miss")
		return sig, nil
	}

	sig.Matched = true
	log.WithFields(map[string]interface{}{
		"daily_condition": sig.Daily.SubCondition,
		"3h_condition":    sig.ThreeHour.SubCondition,
	}).Infof("entry conditions matched")
	return sig, nil
}
