package escalation

import (
	"fmt"

	"futures-trader/internal/domain"
	"futures-trader/internal/pricing"
)

// finalExitMultiple is the base-scale multiple at which the staged policy
// sells the remainder.
const finalExitMultiple = 3.0

// TrendLong is the escalation policy of the long trend strategy.
//
// Take-profit conditions, selected at entry from the matched sub-conditions:
//   - 1..3: one-time stop tightening, then a full exit in the last five
//     minutes of the session once the daily trend weakens.
//   - 4: staged exit, half on entering monitoring and the remainder at
//     three base-scale multiples above the fill.
type TrendLong struct {
	scales domain.LongScales
}

// NewTrendLong creates the policy.
func NewTrendLong(scales domain.LongScales) *TrendLong {
	return &TrendLong{scales: scales}
}

// TakeProfitCond maps the daily/3-hour sub-conditions to a take-profit
// condition. 0 means no take-profit policy applies.
func TakeProfitCond(daily, hourly int) int {
	switch {
	case daily == 1 || daily == 2:
		return 1
	case daily == 5:
		return 2
	case daily == 3 && hourly == 6:
		return 3
	case (daily == 3 || daily == 4) && hourly == 3:
		return 4
	default:
		return 0
	}
}

func (p *TrendLong) adjust(fill, mult float64, up bool) float64 {
	return pricing.AdjustedPrice(fill, p.scales.BaseScale, mult, up)
}

// Init sets the stop-loss below the fill and the take-profit trigger above it.
func (p *TrendLong) Init(fill float64, oc *domain.OpenCondition) (domain.CloseConditionState, error) {
	if oc == nil || oc.Daily == nil || oc.Hourly == nil {
		return domain.CloseConditionState{}, ErrMissingOpenCondition
	}

	s := domain.DefaultCloseCondition()
	s.TakeProfitCond = TakeProfitCond(oc.Daily.ConditionID, oc.Hourly.ConditionID)
	s.StopLossPrice = p.adjust(fill, p.scales.StopLossScale, false)
	switch s.TakeProfitCond {
	case 1, 2, 3:
		s.TakeProfitTrigger = p.adjust(fill, p.scales.ProfitStartScale1, true)
	case 4:
		s.TakeProfitTrigger = p.adjust(fill, p.scales.ProfitStartScale2, true)
	}
	return s, nil
}

// Evaluate checks the stop-loss, then advances take-profit monitoring.
func (p *TrendLong) Evaluate(in Input) (Outcome, error) {
	s := in.State

	if in.Price <= s.StopLossPrice {
		return Outcome{State: s, Exit: &Exit{Volume: in.Carry, Reason: domain.CloseStopLoss, Message: s.Reason}}, nil
	}
	if s.TakeProfitCond == 0 {
		return keep(s), nil
	}

	changed := false
	if !s.HasEnteredTP {
		if in.Price < s.TakeProfitTrigger {
			return keep(s), nil
		}
		s.HasEnteredTP = true
		if s.TakeProfitCond == 4 {
			s.StopLossPrice = in.FillPrice
			s.TakeProfitStage = 1
		}
		changed = true
	}

	switch s.TakeProfitCond {
	case 1, 2, 3:
		if !s.HasTightened && in.Price >= p.adjust(in.FillPrice, p.scales.PromoteScale1, true) {
			s.StopLossPrice = p.adjust(in.FillPrice, p.scales.PromoteTarget1, true)
			s.Reason = domain.TightenedStopLossReason
			s.HasTightened = true
			changed = true
		}
		closeout, err := p.lastFiveMinutesExit(in, s.TakeProfitCond)
		if err != nil {
			return Outcome{}, err
		}
		if closeout {
			return Outcome{State: s, Changed: changed, Exit: &Exit{
				Volume:  in.Carry,
				Reason:  domain.CloseTakeProfit,
				Message: fmt.Sprintf("take-profit cond %d: 100%%", s.TakeProfitCond),
			}}, nil
		}

	case 4:
		switch s.TakeProfitStage {
		case 1:
			s.TakeProfitStage = 2
			volume := in.Carry
			if in.Carry > 1 {
				volume = in.Carry / 2
			}
			return Outcome{State: s, Changed: true, Exit: &Exit{
				Volume:  volume,
				Reason:  domain.CloseTakeProfit,
				Message: "take-profit cond 4: 50%",
			}}, nil
		case 2:
			if in.Price >= p.adjust(in.FillPrice, finalExitMultiple, true) {
				return Outcome{State: s, Changed: changed, Exit: &Exit{
					Volume:  in.Carry,
					Reason:  domain.CloseTakeProfit,
					Message: "take-profit cond 4: remainder",
				}}, nil
			}
		}
	}

	return Outcome{State: s, Changed: changed}, nil
}

// lastFiveMinutesExit reports whether the daily trend has weakened enough to
// exit before the close.
func (p *TrendLong) lastFiveMinutesExit(in Input, cond int) (bool, error) {
	if !pricing.IsLastFiveMinutes(in.Now) {
		return false, nil
	}
	ref, err := dailyReference(in.Daily)
	if err != nil {
		return false, err
	}
	switch cond {
	case 1:
		return in.Price < ref.EMASlow && ref.EMAFast < ref.EMAMid, nil
	case 2, 3:
		return in.Price < ref.EMAMid && ref.EMAFast < ref.EMAMid, nil
	}
	return false, nil
}
