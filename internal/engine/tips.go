package engine

import (
	"context"
	"fmt"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/idhash"
	"futures-trader/internal/pricing"
	"futures-trader/internal/strategy"
)

// recordTips evaluates the reversal cascade on the current and next contract
// of every reversal target and upserts a tip for each full match. Tips are
// recorded whether or not a position is already open.
func (e *Engine) recordTips(ctx context.Context, inst *instrument, inSession bool, now time.Time) {
	for _, t := range inst.targets {
		if t.Kind != domain.StrategyBottom {
			continue
		}
		st, ok, err := e.rollover.Stored(ctx, t.CustomSymbol)
		if err != nil || !ok {
			if err != nil {
				e.log.With("custom_symbol", t.CustomSymbol).Error("rollover state", err)
			}
			continue
		}
		for _, sym := range []string{st.CurrentSymbol, st.NextSymbol} {
			if err := e.recordTip(ctx, inst, t, sym, inSession, now); err != nil {
				e.log.WithFields(map[string]interface{}{
					"custom_symbol": t.CustomSymbol,
					"symbol":        sym,
				}).Error("tip evaluation", err)
				e.metrics.TickErrors.WithLabelValues(t.CustomSymbol).Inc()
			}
		}
	}
}

func (e *Engine) recordTip(ctx context.Context, inst *instrument, t *target, sym string, inSession bool, now time.Time) error {
	series, err := e.loadSeries(ctx, inst, sym, t.strategy.Periods(), true)
	if err != nil {
		return err
	}
	sig, err := e.evaluator(t, sym).Evaluate(&strategy.Input{
		Symbol:    sym,
		Series:    series,
		InSession: inSession,
		Now:       now,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if !sig.Matched {
		return nil
	}
	e.countMatches(t, sig)

	ref := sig.Daily.Snapshot
	tip, err := e.tips.Upsert(ctx, &domain.PreTradeTip{
		TipID:         idhash.ComputeTipID(t.CustomSymbol, sym, ref.KlineTime),
		CustomSymbol:  t.CustomSymbol,
		Symbol:        sym,
		Direction:     t.Direction,
		DailyBarTime:  ref.KlineTime,
		LastPrice:     ref.Close,
		Volume:        t.strategy.SizePosition(e.trade.AccountBalance, ref.Close),
		OpenCondition: sig.OpenCondition(),
		CreatedAt:     now,
		LastModified:  now,
	})
	if err != nil {
		return fmt.Errorf("upsert tip: %w", err)
	}

	e.metrics.TipsUpdated.WithLabelValues(t.Direction.String()).Inc()
	e.log.WithFields(map[string]interface{}{
		"custom_symbol": t.CustomSymbol,
		"symbol":        sym,
		"direction":     t.Direction.String(),
		"price":         tip.LastPrice,
		"volume":        tip.Volume,
		"tip_id":        tip.TipID,
	}).Infof("reversal tip for bar %s, watch the open", ref.KlineTime.Format("2006-01-02"))
	return nil
}

// openFromTip opens a reversal position once per session when the newest
// tip of the contract is approved and was produced from the last closed
// daily bar. Unapproved tips and failed opens are checked again next tick.
func (e *Engine) openFromTip(ctx context.Context, t *target, ts *domain.TradeStatus, quote domain.Quote, series seriesSet, now time.Time) error {
	day := pricing.SessionDay(now)
	if checked, ok := t.tipChecked[ts.Symbol]; ok && checked.Equal(day) {
		return nil
	}

	tip, ok, err := e.tips.LatestFor(ctx, ts.Symbol, t.Direction)
	if err != nil {
		return fmt.Errorf("latest tip: %w", err)
	}
	if !ok || !tip.NeedTrade {
		return nil
	}
	daily := series[domain.TimeframeDaily]
	idx, ok := daily.Reference(true)
	if !ok || tip.DailyBarTime.Before(daily.Bars[idx].Time) {
		e.log.With("symbol", ts.Symbol).Debugf("approved tip %s is stale", tip.TipID)
		t.tipChecked[ts.Symbol] = day
		return nil
	}
	if !ts.StartTime.IsZero() && !ts.StartTime.Before(tip.CreatedAt) {
		// already traded on this tip
		t.tipChecked[ts.Symbol] = day
		return nil
	}

	e.log.WithFields(map[string]interface{}{
		"custom_symbol": t.CustomSymbol,
		"symbol":        ts.Symbol,
		"tip_id":        tip.TipID,
	}).Infof("approved reversal tip, opening")
	if err := e.open(ctx, t, ts, quote, tip.OpenCondition, tip.TipID); err != nil {
		return err
	}
	t.tipChecked[ts.Symbol] = day
	return nil
}
