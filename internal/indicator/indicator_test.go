package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-trader/internal/domain"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2023, 9, 1, 9, 0, 0, 0, domain.ExchangeTZ)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{ID: int64(i + 1), Time: start.Add(time.Duration(i) * 30 * time.Minute), Open: c, Close: c}
	}
	return bars
}

func TestCompute_ConstantSeries(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 10, 10)
	s := Compute(domain.TimeframeThirtyMinute, bars, MainPeriods)

	require.Equal(t, 5, s.Len())
	for i := range bars {
		assert.Equal(t, 10.0, s.Fast[i])
		assert.Equal(t, 10.0, s.Mid[i])
		assert.Equal(t, 10.0, s.Slow[i])
		assert.Equal(t, 0.0, s.MACD[i])
	}
}

func TestCompute_EMASeededWithFirstClose(t *testing.T) {
	// alpha = 2/(9+1) = 0.2
	s := Compute(domain.TimeframeDaily, barsFromCloses(10, 20), MainPeriods)

	assert.Equal(t, 10.0, s.Fast[0])
	assert.Equal(t, 12.0, s.Fast[1])
}

func TestCompute_MACDPositiveOnRise(t *testing.T) {
	s := Compute(domain.TimeframeDaily, barsFromCloses(10, 10, 10, 11, 12, 13), BottomPeriods)

	assert.Greater(t, s.MACD[5], 0.0)
	assert.Equal(t, Round(s.MACD[5], 3), s.MACD[5])
}

func TestSnapshot_NegativeIndex(t *testing.T) {
	s := Compute(domain.TimeframeDaily, barsFromCloses(1, 2, 3), MainPeriods)

	snap, err := s.Snapshot(-2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.BarID)
	assert.Equal(t, 2.0, snap.Close)
	assert.Equal(t, domain.TimeframeDaily, snap.Timeframe)

	_, err = s.Snapshot(-4)
	assert.ErrorIs(t, err, ErrNotEnoughBars)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.235, Round(1.23456, 3))
	assert.Equal(t, -0.5, Round(-0.5, 2))
	assert.Equal(t, 970.0, Round(970.0000001, 2))
}

func TestPeriodsFor(t *testing.T) {
	assert.Equal(t, MainPeriods, PeriodsFor(domain.StrategyMain))
	assert.Equal(t, BottomPeriods, PeriodsFor(domain.StrategyBottom))
}
