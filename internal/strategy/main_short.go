package strategy

import (
	"futures-trader/internal/domain"
	"futures-trader/internal/escalation"
	"futures-trader/internal/indicator"
	"futures-trader/internal/pricing"
)

// Daily bar limits between the 30-minute crossing and the current daily bar.
const (
	crossingDays         = 2
	crossingDaysExtended = 3
)

// MainShort is the short trend strategy.
type MainShort struct {
	instrument
	policy *escalation.TrendShort
}

// NewMainShort creates the short trend strategy.
func NewMainShort(cfg *domain.FutureConfig) *MainShort {
	return &MainShort{instrument: instrument{cfg: cfg}, policy: escalation.NewTrendShort(cfg.Short)}
}

func (s *MainShort) Kind() domain.StrategyKind     { return domain.StrategyMain }
func (s *MainShort) Direction() domain.Direction   { return domain.Short }
func (s *MainShort) Periods() indicator.Periods    { return indicator.MainPeriods }
func (s *MainShort) Escalation() escalation.Policy { return s.policy }

// MatchDaily matches a falling close under a mid average that is still
// above the slow one, unless price has already recovered above the slow one.
func (s *MainShort) MatchDaily(in *Input) (Result, error) {
	_, ref, err := lastClosed(in, domain.TimeframeDaily)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeDaily, ref.KlineTime, func() (Result, error) {
		e22, e60 := ref.EMAMid, ref.EMASlow
		if !(e22 > e60 && ref.MACD < 0 && e22 > ref.Close) {
			return Result{}, nil
		}
		d := distancesOf(ref)
		if (d.fast < 2 || d.mid < 2) && e60 < ref.Close {
			return Result{}, nil
		}
		return withCondition(ref, 1), nil
	})
}

// MatchThreeHour matches averages bunched above the close with negative MACD.
func (s *MainShort) MatchThreeHour(in *Input, _ Result) (Result, error) {
	_, ref, err := lastClosed(in, domain.TimeframeThreeHour)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeThreeHour, ref.KlineTime, func() (Result, error) {
		e9, e22, e60 := ref.EMAFast, ref.EMAMid, ref.EMASlow
		d := distancesOf(ref)
		if e22 > e60 &&
			(e22 > e9 || (e22 < e9 && ref.Close < e60 && ref.Open > e60)) &&
			d.fast < 3 && d.mid < 3 && d.close < 3 && ref.MACD < 0 {
			return withCondition(ref, 1), nil
		}
		return Result{}, nil
	})
}

// MatchThirtyMinute matches a fresh breakdown below the slow average that
// happened within the last few daily bars.
func (s *MainShort) MatchThirtyMinute(in *Input, _ Result) (Result, error) {
	m30, ref, err := lastClosed(in, domain.TimeframeThirtyMinute)
	if err != nil {
		return Result{}, err
	}
	daily, err := in.series(domain.TimeframeDaily)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeThirtyMinute, ref.KlineTime, func() (Result, error) {
		e9, e22, e60 := ref.EMAFast, ref.EMAMid, ref.EMASlow
		d := distancesOf(ref)
		if !((e60 > e22 && e22 > e9) || (e22 > e60 && e60 > e9)) ||
			!(d.fast < 2 && d.mid < 1 && ref.MACD < 0 && e60 > ref.Close) {
			return Result{}, nil
		}
		within, err := crossedWithinDays(m30, daily)
		if err != nil || !within {
			return Result{}, err
		}
		return withCondition(ref, 1), nil
	})
}

// crossedWithinDays finds the newest 30-minute bar closing at or above the
// slow average whose successor has the mid average above the slow one, maps
// the successor to its trading day and checks the daily bar distance.
func crossedWithinDays(m30, daily *indicator.Series) (bool, error) {
	current, err := daily.Snapshot(-1)
	if err != nil {
		return false, err
	}
	ref, err := daily.Snapshot(-2)
	if err != nil {
		return false, err
	}

	crossing := -1
	for i := m30.Len() - 1; i >= 0; i-- {
		if m30.Bars[i].Close < m30.Slow[i] {
			continue
		}
		if i == m30.Len()-1 {
			break
		}
		if m30.Mid[i+1] > m30.Slow[i+1] {
			crossing = i + 1
			break
		}
	}
	if crossing < 0 {
		return false, nil
	}

	day := pricing.SessionDay(m30.Bars[crossing].Time)
	idx, ok := daily.IndexAtOrBefore(day)
	if !ok {
		return false, nil
	}

	limit := int64(crossingDays)
	dMid := pricing.DiffPct(ref.EMAMid, ref.EMASlow)
	if (dMid != 0 && ref.Close < ref.EMASlow) || dMid > 5 {
		limit = crossingDaysExtended
	}
	return current.BarID-daily.Bars[idx].ID <= limit, nil
}

// MatchFiveMinute always matches.
func (s *MainShort) MatchFiveMinute(*Input) (Result, error) {
	return Result{Matched: true}, nil
}

var _ Strategy = (*MainShort)(nil)
