package strategy

import (
	"time"

	"futures-trader/internal/domain"
	"futures-trader/internal/indicator"
	"futures-trader/internal/pricing"
)

// instrument holds what every variant needs from its future config.
type instrument struct {
	cfg *domain.FutureConfig
}

func (i instrument) SizePosition(balance, price float64) int {
	return pricing.PositionSize(balance, i.cfg.OpenPosScale, i.cfg.Multiple, price)
}

// distances are the percent distances of the fast/mid average, close and open
// from the slow average.
type distances struct {
	fast, mid, close, open float64
}

func distancesOf(s *domain.IndicatorSnapshot) distances {
	return distances{
		fast:  pricing.DiffPct(s.EMAFast, s.EMASlow),
		mid:   pricing.DiffPct(s.EMAMid, s.EMASlow),
		close: pricing.DiffPct(s.Close, s.EMASlow),
		open:  pricing.DiffPct(s.Open, s.EMASlow),
	}
}

// between reports lo < v < hi.
func between(lo, v, hi float64) bool {
	return lo < v && v < hi
}

// lastClosed returns the snapshot of the newest closed bar of tf.
func lastClosed(in *Input, tf domain.Timeframe) (*indicator.Series, *domain.IndicatorSnapshot, error) {
	s, err := in.series(tf)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.Snapshot(-2)
	if err != nil {
		return nil, nil, err
	}
	return s, snap, nil
}

// atOrBefore returns the snapshot of the last bar of tf at or before t.
func atOrBefore(in *Input, tf domain.Timeframe, t time.Time) (*indicator.Series, int, *domain.IndicatorSnapshot, error) {
	s, err := in.series(tf)
	if err != nil {
		return nil, 0, nil, err
	}
	idx, ok := s.IndexAtOrBefore(t)
	if !ok {
		return nil, 0, nil, indicator.ErrNotEnoughBars
	}
	snap, err := s.Snapshot(idx)
	if err != nil {
		return nil, 0, nil, err
	}
	return s, idx, snap, nil
}
