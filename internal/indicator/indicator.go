// Package indicator computes the EMA and MACD series used by the strategies.
package indicator

import (
	"errors"
	"math"
	"time"

	"github.com/cinar/indicator"
	"github.com/samber/lo"

	"futures-trader/internal/domain"
	"futures-trader/internal/lookup"
)

// ErrNotEnoughBars is returned when a series has no bar at the requested position.
var ErrNotEnoughBars = errors.New("not enough bars")

// Periods are the fast/mid/slow EMA periods of a strategy family.
type Periods struct {
	Fast int
	Mid  int
	Slow int
}

// EMA periods per strategy family.
var (
	MainPeriods   = Periods{Fast: 9, Mid: 22, Slow: 60}
	BottomPeriods = Periods{Fast: 5, Mid: 20, Slow: 60}
)

// MACD parameters.
const (
	macdShort  = 12
	macdLong   = 24
	macdSignal = 4
)

// PeriodsFor returns the EMA periods of a strategy kind.
func PeriodsFor(kind domain.StrategyKind) Periods {
	if kind == domain.StrategyBottom {
		return BottomPeriods
	}
	return MainPeriods
}

// Series is a bar series with its indicator columns aligned by index.
type Series struct {
	Timeframe domain.Timeframe
	Bars      []domain.Bar
	Fast      []float64
	Mid       []float64
	Slow      []float64
	MACD      []float64 // histogram bar: 2*(diff-dea)
}

// Compute fills the indicator columns for bars. Bars must be ordered oldest first.
func Compute(tf domain.Timeframe, bars []domain.Bar, p Periods) *Series {
	closes := lo.Map(bars, func(b domain.Bar, _ int) float64 { return b.Close })

	return &Series{
		Timeframe: tf,
		Bars:      bars,
		Fast:      round3All(indicator.Ema(p.Fast, closes)),
		Mid:       round3All(indicator.Ema(p.Mid, closes)),
		Slow:      round3All(indicator.Ema(p.Slow, closes)),
		MACD:      macdBar(closes),
	}
}

// macdBar returns the MACD histogram rounded to 3 decimals.
func macdBar(closes []float64) []float64 {
	short := indicator.Ema(macdShort, closes)
	long := indicator.Ema(macdLong, closes)
	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = short[i] - long[i]
	}
	dea := indicator.Ema(macdSignal, diff)

	bar := make([]float64, len(closes))
	for i := range diff {
		bar[i] = Round(2*(diff[i]-dea[i]), 3)
	}
	return bar
}

func round3All(values []float64) []float64 {
	return lo.Map(values, func(v float64, _ int) float64 { return Round(v, 3) })
}

// Round rounds v to the given number of decimals, halves away from zero.
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// At resolves a Python-style index: negative values count from the end.
func (s *Series) At(i int) (int, error) {
	if i < 0 {
		i += len(s.Bars)
	}
	if i < 0 || i >= len(s.Bars) {
		return 0, ErrNotEnoughBars
	}
	return i, nil
}

// Snapshot returns the indicator record of bar i. Negative i counts from the end.
func (s *Series) Snapshot(i int) (*domain.IndicatorSnapshot, error) {
	idx, err := s.At(i)
	if err != nil {
		return nil, err
	}
	b := s.Bars[idx]
	return &domain.IndicatorSnapshot{
		Timeframe: s.Timeframe,
		BarID:     b.ID,
		KlineTime: b.Time,
		Open:      b.Open,
		Close:     b.Close,
		EMAFast:   s.Fast[idx],
		EMAMid:    s.Mid[idx],
		EMASlow:   s.Slow[idx],
		MACD:      s.MACD[idx],
	}, nil
}

// IndexAtOrBefore returns the index of the last bar whose time is at or before t.
func (s *Series) IndexAtOrBefore(t time.Time) (int, bool) {
	idx, ok, err := lookup.BarAtOrBefore(t, s.Bars)
	if err != nil {
		return 0, false
	}
	return idx, ok
}

// Reference returns the index of the strategy reference bar.
func (s *Series) Reference(inSession bool) (int, bool) {
	return lookup.ClosedIndex(s.Bars, inSession)
}
