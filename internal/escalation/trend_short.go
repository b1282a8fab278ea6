package escalation

import (
	"futures-trader/internal/domain"
	"futures-trader/internal/pricing"
)

// TrendShort is the escalation policy of the short trend strategy: a one-time
// stop tightening followed by a trend take-profit on the daily bars.
type TrendShort struct {
	scales domain.ShortScales
}

// NewTrendShort creates the policy.
func NewTrendShort(scales domain.ShortScales) *TrendShort {
	return &TrendShort{scales: scales}
}

func (p *TrendShort) adjust(fill, mult float64, up bool) float64 {
	return pricing.AdjustedPrice(fill, p.scales.BaseScale, mult, up)
}

// Init sets the stop-loss above the fill and the take-profit trigger below it.
func (p *TrendShort) Init(fill float64, _ *domain.OpenCondition) (domain.CloseConditionState, error) {
	s := domain.DefaultCloseCondition()
	s.StopLossPrice = p.adjust(fill, p.scales.StopLossScale, true)
	s.TakeProfitTrigger = p.adjust(fill, p.scales.ProfitStartScale, false)
	return s, nil
}

// Evaluate checks the stop-loss, tightens it once, then checks the trend exit.
func (p *TrendShort) Evaluate(in Input) (Outcome, error) {
	s := in.State

	if in.Price >= s.StopLossPrice {
		return Outcome{State: s, Exit: &Exit{Volume: in.Carry, Reason: domain.CloseStopLoss, Message: s.Reason}}, nil
	}

	changed := false
	if !s.HasTightened && s.TakeProfitStage == 0 &&
		in.Price <= p.adjust(in.FillPrice, p.scales.PromoteScale, false) {
		s.StopLossPrice = p.adjust(in.FillPrice, p.scales.PromoteTarget, false)
		s.TakeProfitStage = 1
		s.Reason = domain.TightenedStopLossReason
		s.HasTightened = true
		changed = true
	}

	ref, err := dailyReference(in.Daily)
	if err != nil {
		return Outcome{}, err
	}

	active := false
	switch {
	case !s.HasSuspendedTP && ref.EMASlow > ref.EMAMid && ref.EMAMid > ref.EMAFast:
		active = true
	case s.HasSuspendedTP && ref.Close < ref.EMAFast:
		s.HasSuspendedTP = false
		changed = true
	}
	if !active || !(ref.Close > ref.EMAFast && ref.MACD > 0) {
		return Outcome{State: s, Changed: changed}, nil
	}

	// The two daily bars before the reference bar confirm the reversal.
	for _, i := range []int{-3, -4} {
		prior, err := in.Daily.Snapshot(i)
		if err != nil {
			continue
		}
		if prior.Open <= prior.Close && prior.MACD > 0 {
			return Outcome{State: s, Changed: changed, Exit: &Exit{
				Volume:  in.Carry,
				Reason:  domain.CloseTakeProfit,
				Message: "trend take-profit",
			}}, nil
		}
	}

	s.HasSuspendedTP = true
	return Outcome{State: s, Changed: true}, nil
}
