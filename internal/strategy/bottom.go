package strategy

import (
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/escalation"
	"futures-trader/internal/indicator"
	"futures-trader/internal/pricing"
)

// Reversal timing constants, exchange time.
const (
	bottomThreeHourCutoff    = 12 * time.Hour
	bottomThirtyMinuteCutoff = 14*time.Hour + 30*time.Minute
	nightSessionStart        = 21 * time.Hour
	bottomDistance           = 5
	// run start index when no older bar breaks the ordering
	bottomFallbackDepth = 9
)

// bottomRules are the direction-specific predicates of a reversal variant.
type bottomRules struct {
	daily     func(k *domain.IndicatorSnapshot) bool
	macdAgree func(macd float64) bool
	minute30  func(close, fast, slow float64) bool
}

// bottom implements the reversal cascade. Its escalation policy is a stub:
// positions open from approved tips only.
type bottom struct {
	instrument
	dir   domain.Direction
	rules bottomRules
}

func (s *bottom) Kind() domain.StrategyKind     { return domain.StrategyBottom }
func (s *bottom) Direction() domain.Direction   { return s.dir }
func (s *bottom) Periods() indicator.Periods    { return indicator.BottomPeriods }
func (s *bottom) Escalation() escalation.Policy { return escalation.Stub{} }

// reference returns the daily reference bar: the last closed bar during a
// session, the newest bar outside one.
func (s *bottom) reference(in *Input) (*domain.IndicatorSnapshot, error) {
	daily, err := in.series(domain.TimeframeDaily)
	if err != nil {
		return nil, err
	}
	idx, ok := daily.Reference(in.InSession)
	if !ok {
		return nil, indicator.ErrNotEnoughBars
	}
	return daily.Snapshot(idx)
}

// MatchDaily requires the three averages in order with price back across the
// fast one. MACDCarry records whether MACD already agrees.
func (s *bottom) MatchDaily(in *Input) (Result, error) {
	ref, err := s.reference(in)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeDaily, ref.KlineTime, func() (Result, error) {
		if !s.rules.daily(ref) {
			return Result{}, nil
		}
		return Result{
			Matched:      true,
			SubCondition: 1,
			Snapshot:     ref.Clone(),
			MACDCarry:    s.rules.macdAgree(ref.MACD),
		}, nil
	})
}

// MatchThreeHour checks MACD on the last 3-hour bar of the reference day morning.
func (s *bottom) MatchThreeHour(in *Input, _ Result) (Result, error) {
	ref, err := s.reference(in)
	if err != nil {
		return Result{}, err
	}
	cutoff := pricing.TradingDay(ref.KlineTime).Add(bottomThreeHourCutoff)
	_, _, k, err := atOrBefore(in, domain.TimeframeThreeHour, cutoff)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeThreeHour, k.KlineTime, func() (Result, error) {
		if !s.rules.macdAgree(k.MACD) {
			return Result{}, nil
		}
		return Result{Matched: true, SubCondition: 1, Snapshot: k.Clone()}, nil
	})
}

// MatchThirtyMinute checks the last 30-minute bar before the reference day
// close and how long price has held beyond the slow average.
func (s *bottom) MatchThirtyMinute(in *Input, daily Result) (Result, error) {
	ref, err := s.reference(in)
	if err != nil {
		return Result{}, err
	}
	cutoff := pricing.TradingDay(ref.KlineTime).Add(bottomThirtyMinuteCutoff)
	series, idx, k, err := atOrBefore(in, domain.TimeframeThirtyMinute, cutoff)
	if err != nil {
		return Result{}, err
	}
	return in.resolve(domain.TimeframeThirtyMinute, k.KlineTime, func() (Result, error) {
		if !s.rules.minute30(k.Close, k.EMAFast, k.EMASlow) {
			return Result{}, nil
		}
		if !s.withinDistance(series, idx, daily.MACDCarry) {
			return Result{}, nil
		}
		return Result{Matched: true, SubCondition: 1, Snapshot: k.Clone()}, nil
	})
}

// withinDistance walks the bars before matched newest first. The first bar
// breaking the ordering ends the walk and the bar after it starts the run.
// With MACD carry the run must start in the night session before the
// matched bar's day; otherwise it must be less than five bars old.
func (s *bottom) withinDistance(series *indicator.Series, matched int, macdCarry bool) bool {
	if matched == 0 {
		return false
	}

	start := bottomFallbackDepth
	if start >= matched {
		start = 0
	}
	for i := matched - 1; i >= 0; i-- {
		if !s.rules.minute30(series.Bars[i].Close, series.Fast[i], series.Slow[i]) {
			start = i + 1
			break
		}
	}

	matchedBar, startBar := series.Bars[matched], series.Bars[start]
	if macdCarry {
		since := pricing.TradingDay(matchedBar.Time).AddDate(0, 0, -1).Add(nightSessionStart)
		return !startBar.Time.Before(since)
	}
	return matchedBar.ID-startBar.ID < bottomDistance
}

// MatchFiveMinute is not part of the reversal cascade.
func (s *bottom) MatchFiveMinute(*Input) (Result, error) {
	return Result{Matched: true}, nil
}

// NewBottomLong creates the long reversal strategy.
func NewBottomLong(cfg *domain.FutureConfig) Strategy {
	return &bottom{
		instrument: instrument{cfg: cfg},
		dir:        domain.Long,
		rules: bottomRules{
			daily: func(k *domain.IndicatorSnapshot) bool {
				return k.EMAFast < k.EMAMid && k.EMAMid < k.EMASlow && k.Close > k.EMAFast
			},
			macdAgree: func(macd float64) bool { return macd > 0 },
			minute30: func(close, fast, slow float64) bool {
				return close > slow && fast > slow
			},
		},
	}
}

// NewBottomShort creates the short reversal strategy.
func NewBottomShort(cfg *domain.FutureConfig) Strategy {
	return &bottom{
		instrument: instrument{cfg: cfg},
		dir:        domain.Short,
		rules: bottomRules{
			daily: func(k *domain.IndicatorSnapshot) bool {
				return k.EMAFast > k.EMAMid && k.EMAMid > k.EMASlow && k.Close < k.EMAFast
			},
			macdAgree: func(macd float64) bool { return macd < 0 },
			minute30: func(close, fast, slow float64) bool {
				return close < slow && fast < slow
			},
		},
	}
}

var _ Strategy = (*bottom)(nil)
