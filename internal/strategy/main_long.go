package strategy

import (
	"futures-trader/internal/domain"
	"futures-trader/internal/escalation"
	"futures-trader/internal/indicator"
	"futures-trader/internal/pricing"
)

// crossingWindow is the largest bar gap between the mid and fast averages
// crossing above the slow one.
const crossingWindow = 5

// MainLong is the long trend strategy.
type MainLong struct {
	instrument
	policy *escalation.TrendLong
}

// NewMainLong creates the long trend strategy.
func NewMainLong(cfg *domain.FutureConfig) *MainLong {
	return &MainLong{instrument: instrument{cfg: cfg}, policy: escalation.NewTrendLong(cfg.Long)}
}

func (s *MainLong) Kind() domain.StrategyKind     { return domain.StrategyMain }
func (s *MainLong) Direction() domain.Direction   { return domain.Long }
func (s *MainLong) Periods() indicator.Periods    { return indicator.MainPeriods }
func (s *MainLong) Escalation() escalation.Policy { return s.policy }

// MatchDaily yields daily sub-conditions 1..5.
func (s *MainLong) MatchDaily(in *Input) (Result, error) {
	_, ref, err := lastClosed(in, domain.TimeframeDaily)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeDaily, ref.KlineTime, func() (Result, error) {
		return withCondition(ref, mainLongDaily(ref)), nil
	})
}

func mainLongDaily(k *domain.IndicatorSnapshot) int {
	e9, e22, e60 := k.EMAFast, k.EMAMid, k.EMASlow
	d := distancesOf(k)

	switch {
	case e22 < e60:
		if (d.fast < 1 || d.mid < 1) && k.Close > e60 && k.MACD > 0 {
			return 1
		}
	case e22 > e60:
		switch {
		case d.mid < 1 && k.Close > e60:
			return 2
		case between(1, d.fast, 3) && e9 > e22 && e22 > min(k.Open, k.Close) && min(k.Open, k.Close) > e60:
			return 3
		case between(1, d.mid, 3) && d.fast < 2 && e22 > k.Close && k.Close > e60 && e22 > e9 && e9 > e60:
			return 4
		case d.mid > 3 && d.close < 3 && e22 > k.Close && k.Close > e60 && e22 > k.Open && k.Open > e60:
			return 5
		}
	}
	return 0
}

// MatchThreeHour branches on the daily sub-condition and yields 1..6.
func (s *MainLong) MatchThreeHour(in *Input, daily Result) (Result, error) {
	series, ref, err := lastClosed(in, domain.TimeframeThreeHour)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeThreeHour, ref.KlineTime, func() (Result, error) {
		return withCondition(ref, mainLongThreeHour(ref, daily.SubCondition, series)), nil
	})
}

func mainLongThreeHour(k *domain.IndicatorSnapshot, daily int, series *indicator.Series) int {
	e9, e22, e60 := k.EMAFast, k.EMAMid, k.EMASlow
	d := distancesOf(k)
	if !(d.close < 3 || d.open < 3) {
		return 0
	}

	switch daily {
	case 1, 2:
		if e22 < e60 && e9 < e60 && (d.mid < 1 || (between(1, d.mid, 2) && (k.MACD > 0 || k.Close > e60))) {
			return 1
		}
		if k.Close > e9 && e9 > e22 && e22 > e60 {
			if crossingsWithin(series, crossingWindow) {
				return 2
			}
			if d.fast < 1 && d.mid < 1 && k.MACD > 0 {
				return 5
			}
		}
	case 3, 4:
		if k.Close > e60 && e60 > e22 && k.MACD > 0 && d.mid < 1 && e9 < e60 {
			return 3
		}
		if daily == 3 && d.fast < 1 && d.mid < 1 {
			return 6
		}
	case 5:
		if e60 > e22 && e22 > e9 {
			return 4
		}
	}
	return 0
}

// crossingsWithin walks the series newest first and reports whether the
// last bar with mid <= slow is at most window bars after the last bar with
// fast <= slow.
func crossingsWithin(s *indicator.Series, window int64) bool {
	var midID, fastID int64
	midFound := false
	for i := s.Len() - 1; i >= 0; i-- {
		if !midFound && s.Mid[i] <= s.Slow[i] {
			midID = s.Bars[i].ID
			midFound = true
		}
		if s.Fast[i] <= s.Slow[i] {
			fastID = s.Bars[i].ID
			break
		}
	}
	gap := midID - fastID
	return gap >= 0 && gap <= window
}

// MatchThirtyMinute requires the close just above a rising slow average.
func (s *MainLong) MatchThirtyMinute(in *Input, _ Result) (Result, error) {
	return matchNearSlowAverage(in, domain.TimeframeThirtyMinute)
}

// MatchFiveMinute applies the 30-minute rule to 5-minute bars.
func (s *MainLong) MatchFiveMinute(in *Input) (Result, error) {
	return matchNearSlowAverage(in, domain.TimeframeFiveMinute)
}

func matchNearSlowAverage(in *Input, tf domain.Timeframe) (Result, error) {
	_, ref, err := lastClosed(in, tf)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(tf, ref.KlineTime, func() (Result, error) {
		cond := 0
		if ref.Close > ref.EMASlow && ref.MACD > 0 && pricing.DiffPct(ref.Close, ref.EMASlow) < 1.2 {
			cond = 1
		}
		return withCondition(ref, cond), nil
	})
}

// withCondition builds a result from a sub-condition id, capturing the
// snapshot on a match.
func withCondition(ref *domain.IndicatorSnapshot, cond int) Result {
	if cond == 0 {
		return Result{}
	}
	return Result{Matched: true, SubCondition: cond, Snapshot: snapshotWith(ref, cond)}
}

var _ Strategy = (*MainLong)(nil)
