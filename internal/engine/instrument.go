package engine

import (
	"context"
	"errors"
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/indicator"
	"futures-trader/internal/lock"
	"futures-trader/internal/market"
	"futures-trader/internal/pricing"
	"futures-trader/internal/rollover"
	"futures-trader/internal/strategy"
)

// Session phases, used as metric labels.
const (
	phaseBefore = "before_session"
	phaseIn     = "in_session"
	phaseAfter  = "after_session"
)

// instrument is the worker state of one continuous symbol. It is only
// touched by the goroutine processing the symbol in the current tick.
type instrument struct {
	cfg     *domain.FutureConfig
	targets []*target
	lease   lock.Lease

	day      time.Time // session day whose before-session work completed
	afterDay time.Time // session day whose after-session work ran

	series     map[seriesKey]*indicator.Series
	subscribed map[string]bool
}

// target is one (strategy kind, direction) on a continuous symbol.
type target struct {
	rollover.Target
	strategy   strategy.Strategy
	evaluators map[string]*strategy.Evaluator // per contract
	tipChecked map[string]time.Time           // contract -> session day its tip was settled
	switchDay  time.Time                      // session day whose switch check succeeded
}

func newInstrumentState(cfg *domain.FutureConfig) *instrument {
	return &instrument{
		cfg:        cfg,
		series:     make(map[seriesKey]*indicator.Series),
		subscribed: make(map[string]bool),
	}
}

// resetDays forgets which session work already ran, so the next tick redoes it.
func (inst *instrument) resetDays() {
	inst.day = time.Time{}
	inst.afterDay = time.Time{}
	for _, t := range inst.targets {
		t.switchDay = time.Time{}
		t.tipChecked = make(map[string]time.Time)
	}
}

// evaluator returns the evaluator of contract sym, creating it with a fresh memo.
func (e *Engine) evaluator(t *target, sym string) *strategy.Evaluator {
	ev, ok := t.evaluators[sym]
	if !ok {
		ev = strategy.NewEvaluator(t.strategy, e.log.With("custom_symbol", t.CustomSymbol))
		t.evaluators[sym] = ev
	}
	return ev
}

// forget drops the cached state of contracts that left the (current, next) pair.
func (inst *instrument) forget(t *target, st *domain.JointSymbolRolloverState) {
	keep := func(sym string) bool { return sym == st.CurrentSymbol || sym == st.NextSymbol }
	for sym := range t.evaluators {
		if !keep(sym) {
			delete(t.evaluators, sym)
			delete(t.tipChecked, sym)
		}
	}
	for k := range inst.series {
		if !keep(k.symbol) {
			delete(inst.series, k)
		}
	}
}

// subscribe asks a streaming feed for the symbols not requested yet.
func (e *Engine) subscribe(ctx context.Context, inst *instrument, symbols ...string) {
	sub, ok := e.feed.(market.Subscriber)
	if !ok {
		return
	}
	var fresh []string
	for _, s := range symbols {
		if !inst.subscribed[s] {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		return
	}
	if err := sub.Subscribe(ctx, fresh); err != nil {
		e.log.With("continuous", inst.cfg.Symbol).Error("subscribe", err)
		return
	}
	for _, s := range fresh {
		inst.subscribed[s] = true
	}
}

// runInstrument runs the lifecycle phase due at the current clock.
func (e *Engine) runInstrument(ctx context.Context, inst *instrument) {
	log := e.log.With("continuous", inst.cfg.Symbol)

	if inst.lease != nil && inst.lease.Err() != nil {
		// Another owner may have written since: drop the lease and cached
		// progress, then compete for the lease again.
		log.Error("lease lost", inst.lease.Err())
		e.metrics.TickErrors.WithLabelValues(inst.cfg.Symbol).Inc()
		_ = inst.lease.Release(ctx)
		inst.lease = nil
		inst.resetDays()
	}
	if inst.lease == nil {
		lease, err := e.locker.Acquire(ctx, lock.Key(inst.cfg.Symbol))
		if errors.Is(err, lock.ErrHeld) {
			log.Debugf("lease held elsewhere, skipping")
			return
		}
		if err != nil {
			log.Error("acquire lease", err)
			e.metrics.TickErrors.WithLabelValues(inst.cfg.Symbol).Inc()
			return
		}
		inst.lease = lease
	}

	e.subscribe(ctx, inst, inst.cfg.Symbol)
	quote, err := e.feed.Quote(ctx, inst.cfg.Symbol)
	if err != nil {
		log.Error("continuous quote", err)
		e.metrics.TickErrors.WithLabelValues(inst.cfg.Symbol).Inc()
		return
	}
	now := quote.Datetime
	if now.IsZero() {
		now = e.feed.Now()
	}
	day := pricing.SessionDay(now)

	if !day.Equal(inst.day) {
		if e.beforeSession(ctx, inst, quote, now) {
			inst.day = day
		}
		e.metrics.TicksProcessed.WithLabelValues(phaseBefore).Inc()
	}

	switch {
	case quote.IsTrading():
		e.inSession(ctx, inst, now)
		e.metrics.TicksProcessed.WithLabelValues(phaseIn).Inc()
	case pricing.IsAfterSession(now) && !day.Equal(inst.afterDay):
		e.afterSession(ctx, inst, now)
		inst.afterDay = day
		e.metrics.TicksProcessed.WithLabelValues(phaseAfter).Inc()
	}
}

// beforeSession switches contracts when due, then records reversal tips. It
// reports whether every target completed its switch check; targets that
// failed are retried on the next tick and tips wait for them.
func (e *Engine) beforeSession(ctx context.Context, inst *instrument, quote domain.Quote, now time.Time) bool {
	day := pricing.SessionDay(now)
	complete := true
	for _, t := range inst.targets {
		if t.switchDay.Equal(day) {
			continue
		}
		log := e.log.With("custom_symbol", t.CustomSymbol)

		st, err := e.rollover.State(ctx, t.Target, quote)
		if err != nil {
			log.Error("rollover state", err)
			e.metrics.TickErrors.WithLabelValues(t.CustomSymbol).Inc()
			complete = false
			continue
		}
		e.subscribe(ctx, inst, st.CurrentSymbol, st.NextSymbol)
		current, err := e.feed.Quote(ctx, st.CurrentSymbol)
		if err != nil {
			log.Error("current contract quote", err)
			e.metrics.TickErrors.WithLabelValues(t.CustomSymbol).Inc()
			complete = false
			continue
		}
		res, err := e.rollover.Switch(ctx, t.Target, quote, current.ExpireRestDays)
		if err != nil {
			log.Error("rollover", err)
			e.metrics.TickErrors.WithLabelValues(t.CustomSymbol).Inc()
			complete = false
			continue
		}
		t.switchDay = day
		if res.Switched {
			inst.forget(t, res.State)
			e.subscribe(ctx, inst, res.State.CurrentSymbol, res.State.NextSymbol)
		}
		log.Infof("session %s: current %s, next %s", day.Format("2006-01-02"),
			res.State.CurrentSymbol, res.State.NextSymbol)
	}
	if !complete {
		return false
	}

	e.recordTips(ctx, inst, quote.IsTrading(), now)
	return true
}

// inSession trades the current and next contract of every target.
func (e *Engine) inSession(ctx context.Context, inst *instrument, now time.Time) {
	for _, t := range inst.targets {
		st, ok, err := e.rollover.Stored(ctx, t.CustomSymbol)
		if err != nil {
			e.log.With("custom_symbol", t.CustomSymbol).Error("rollover state", err)
			e.metrics.TickErrors.WithLabelValues(t.CustomSymbol).Inc()
			continue
		}
		if !ok {
			continue
		}
		for _, sym := range []string{st.CurrentSymbol, st.NextSymbol} {
			if err := e.tradeContract(ctx, inst, t, sym, now); err != nil {
				e.log.WithFields(map[string]interface{}{
					"custom_symbol": t.CustomSymbol,
					"symbol":        sym,
				}).Error("tick aborted", err)
				e.metrics.TickErrors.WithLabelValues(t.CustomSymbol).Inc()
			}
		}
	}
}

// afterSession prepares the reversal tips of the next session.
func (e *Engine) afterSession(ctx context.Context, inst *instrument, now time.Time) {
	e.log.With("continuous", inst.cfg.Symbol).Infof("session closed, preparing tips")
	e.recordTips(ctx, inst, false, now)
}
