package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-trader/internal/domain"
)

func bars(start time.Time, step time.Duration, closes ...float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{
			ID:   int64(i + 1),
			Time: start.Add(time.Duration(i) * step),
			Open: c - 1, High: c + 2, Low: c - 2, Close: c, Volume: 100,
		}
	}
	return out
}

func TestBarStore_InsertAndGetRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "SHFE.rb2310", domain.TimeframeFiveMinute, nil))

	series := bars(testNow, 5*time.Minute, 3700, 3702, 3705, 3701)
	require.NoError(t, store.InsertBulk(ctx, "SHFE.rb2310", domain.TimeframeFiveMinute, series))
	require.NoError(t, store.InsertBulk(ctx, "SHFE.rb2310", domain.TimeframeDaily, bars(testNow, 24*time.Hour, 3600)))

	got, err := store.GetRange(ctx, "SHFE.rb2310", domain.TimeframeFiveMinute, testNow.Add(5*time.Minute), testNow.Add(15*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, 3702.0, got[0].Close)
	assert.Equal(t, 3704.0, got[0].High)
	assert.True(t, got[2].Time.Equal(testNow.Add(15*time.Minute)))
	assert.Equal(t, domain.ExchangeTZ, got[0].Time.Location())

	// Timeframes are separate series.
	daily, err := store.GetRange(ctx, "SHFE.rb2310", domain.TimeframeDaily, testNow, testNow)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, 3600.0, daily[0].Close)
}

func TestBarStore_ReinsertReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "DCE.a2401", domain.TimeframeThirtyMinute, bars(testNow, 30*time.Minute, 4800, 4810)))

	// The forming bar is rewritten with a newer close.
	update := bars(testNow, 30*time.Minute, 4800, 4825)[1:]
	require.NoError(t, store.InsertBulk(ctx, "DCE.a2401", domain.TimeframeThirtyMinute, update))

	got, err := store.GetRange(ctx, "DCE.a2401", domain.TimeframeThirtyMinute, testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4825.0, got[1].Close)
}
