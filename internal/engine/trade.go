package engine

import (
	"context"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/escalation"
	"futures-trader/internal/indicator"
	"futures-trader/internal/orders"
	"futures-trader/internal/strategy"
)

// tradeContract runs one in-session tick of target t on contract sym: a
// pending switch leg first, then escalation of an open position or an entry.
func (e *Engine) tradeContract(ctx context.Context, inst *instrument, t *target, sym string, now time.Time) error {
	ts, err := e.statuses.GetOrCreate(ctx, t.CustomSymbol, domain.StatusKey{Kind: t.Kind, Symbol: sym, Direction: t.Direction}, now)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}

	resumed, err := e.rollover.Resume(ctx, t.Target, ts, now)
	if err != nil {
		return err
	}
	if resumed {
		return nil
	}

	quote, err := e.feed.Quote(ctx, sym)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	if !quote.IsTrading() {
		return nil
	}
	series, err := e.loadSeries(ctx, inst, sym, t.strategy.Periods(), false)
	if err != nil {
		return err
	}

	if ts.IsOpen() {
		return e.escalate(ctx, t, ts, quote, series[domain.TimeframeDaily], now)
	}
	if t.Kind == domain.StrategyBottom {
		return e.openFromTip(ctx, t, ts, quote, series, now)
	}
	return e.openOnSignal(ctx, t, ts, quote, series, now)
}

// escalate runs the stop-loss / take-profit policy on an open position.
func (e *Engine) escalate(ctx context.Context, t *target, ts *domain.TradeStatus, quote domain.Quote, daily *indicator.Series, now time.Time) error {
	pos, err := e.machine.Position(ctx, ts)
	if err != nil {
		return err
	}
	out, err := t.strategy.Escalation().Evaluate(escalation.Input{
		State:     ts.CloseCondition,
		FillPrice: pos.TradePrice,
		Carry:     ts.CarryingVolume,
		Price:     quote.LastPrice,
		Now:       now,
		Daily:     daily,
	})
	if err != nil {
		return fmt.Errorf("escalation: %w", err)
	}

	if out.Exit == nil {
		if !out.Changed {
			return nil
		}
		if _, err := e.machine.UpdateCloseCondition(ctx, ts, out.State, now); err != nil {
			return err
		}
		e.metrics.Tightenings.WithLabelValues(string(t.Kind)).Inc()
		e.log.WithFields(map[string]interface{}{
			"custom_symbol": t.CustomSymbol,
			"symbol":        ts.Symbol,
			"stop_loss":     out.State.StopLossPrice,
			"stage":         out.State.TakeProfitStage,
			"price":         quote.LastPrice,
		}).Infof("close condition updated: %s", out.State.Reason)
		return nil
	}

	// The new close condition travels with the close so both persist as one unit.
	closing := ts
	if out.Changed {
		closing = ts.Clone()
		closing.CloseCondition = out.State
	}
	_, err = e.orders.Close(ctx, closing, out.Exit.Volume, out.Exit.Reason, out.Exit.Message)
	return err
}

// openOnSignal opens when the full trend cascade matches.
func (e *Engine) openOnSignal(ctx context.Context, t *target, ts *domain.TradeStatus, quote domain.Quote, series seriesSet, now time.Time) error {
	sig, err := e.evaluator(t, ts.Symbol).Evaluate(&strategy.Input{
		Symbol:    ts.Symbol,
		Series:    series,
		InSession: true,
		Now:       now,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if !sig.Matched {
		return nil
	}
	e.countMatches(t, sig)
	return e.open(ctx, t, ts, quote, sig.OpenCondition(), "")
}

// open sizes and submits an entry, then marks a deferred successor leg done.
func (e *Engine) open(ctx context.Context, t *target, ts *domain.TradeStatus, quote domain.Quote, oc *domain.OpenCondition, tipID string) error {
	volume := t.strategy.SizePosition(e.trade.AccountBalance, quote.LastPrice)
	if volume <= 0 {
		e.log.WithFields(map[string]interface{}{
			"custom_symbol": t.CustomSymbol,
			"symbol":        ts.Symbol,
			"price":         quote.LastPrice,
		}).Warnf("entry matched but sized to zero lots")
		return nil
	}

	opened, err := e.orders.Open(ctx, orders.OpenRequest{
		Status:        ts,
		Volume:        volume,
		OpenCondition: oc,
		Policy:        t.strategy.Escalation(),
		TipID:         tipID,
	})
	if err != nil {
		return err
	}
	return e.rollover.MarkOpened(ctx, t.Target, ts.Symbol, opened.OpenPositionID)
}

// countMatches increments the match counter of every matched timeframe.
func (e *Engine) countMatches(t *target, sig strategy.Signal) {
	results := []struct {
		tf domain.Timeframe
		r  strategy.Result
	}{
		{domain.TimeframeDaily, sig.Daily},
		{domain.TimeframeThreeHour, sig.ThreeHour},
		{domain.TimeframeThirtyMinute, sig.ThirtyMinute},
		{domain.TimeframeFiveMinute, sig.FiveMinute},
	}
	for _, m := range results {
		if m.r.Matched {
			e.metrics.Matches.WithLabelValues(string(t.Kind), m.tf.String()).Inc()
		}
	}
}
