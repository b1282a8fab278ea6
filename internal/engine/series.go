package engine

import (
	"context"
	"fmt"

	"futures-trader/internal/domain"
	"futures-trader/internal/indicator"
)

// BarLength is the number of bars loaded per timeframe.
const BarLength = 200

// seriesSet holds the series of one contract per timeframe.
type seriesSet = map[domain.Timeframe]*indicator.Series

type seriesKey struct {
	symbol  string
	tf      domain.Timeframe
	periods indicator.Periods
}

// loadSeries returns the indicator series of sym for every timeframe,
// recomputing a timeframe only when the feed reports a new bar for it.
// fresh forces a reload, for callers reading the still forming newest bar.
func (e *Engine) loadSeries(ctx context.Context, inst *instrument, sym string, p indicator.Periods, fresh bool) (seriesSet, error) {
	out := make(seriesSet, len(domain.AllTimeframes))
	for _, tf := range domain.AllTimeframes {
		key := seriesKey{symbol: sym, tf: tf, periods: p}
		s, ok := inst.series[key]
		if !ok || fresh || e.feed.BarChanged(sym, tf) {
			bars, err := e.feed.Bars(ctx, sym, tf, BarLength)
			if err != nil {
				return nil, fmt.Errorf("load %s %s bars: %w", sym, tf, err)
			}
			s = indicator.Compute(tf, bars, p)
			inst.invalidate(sym, tf)
			inst.series[key] = s
		}
		out[tf] = s
	}
	return out, nil
}

// invalidate drops the cached series of (sym, tf) for every period set, so
// that a bar change consumed by one strategy family reaches the others.
func (inst *instrument) invalidate(sym string, tf domain.Timeframe) {
	for k := range inst.series {
		if k.symbol == sym && k.tf == tf {
			delete(inst.series, k)
		}
	}
}
