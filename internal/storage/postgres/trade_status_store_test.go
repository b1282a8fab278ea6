package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-trader/internal/domain"
	"futures-trader/internal/storage"
)

func openPosition(id, sym string) *domain.OpenPositionRecord {
	return &domain.OpenPositionRecord{
		PositionID:   id,
		CustomSymbol: "SHFE_rb_main_long",
		Symbol:       sym,
		Kind:         domain.StrategyMain,
		Direction:    domain.Long,
		TradePrice:   3650,
		Volume:       3,
		TradeTime:    testNow,
		OrderID:      "order-" + id,
		OpenCondition: &domain.OpenCondition{
			Daily: &domain.IndicatorSnapshot{Timeframe: domain.TimeframeDaily, BarID: 42, EMAFast: 3600, ConditionID: 2},
		},
		CloseCondition: domain.CloseConditionState{StopLossPrice: 3540, TakeProfitTrigger: 3980, TakeProfitCond: 1, Reason: domain.DefaultStopLossReason},
	}
}

func openStatus(ts *domain.TradeStatus, pos *domain.OpenPositionRecord) *domain.TradeStatus {
	next := ts.Clone()
	next.State = domain.StateOpen
	next.CarryingVolume = pos.Volume
	next.StartTime = pos.TradeTime
	next.LastModified = pos.TradeTime
	next.OpenCondition = pos.OpenCondition.Clone()
	next.CloseCondition = pos.CloseCondition
	next.OpenPositionID = pos.PositionID
	return next
}

func TestTradeStatusStore_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStatusStore(pool)

	_, ok, err := store.Get(ctx, statusKey("SHFE.rb2310"))
	require.NoError(t, err)
	assert.False(t, ok)

	ts, err := store.GetOrCreate(ctx, "SHFE_rb_main_long", statusKey("SHFE.rb2310"), testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, ts.State)
	assert.Equal(t, domain.DefaultStopLossReason, ts.CloseCondition.Reason)
	assert.True(t, ts.StartTime.IsZero())
	assert.Nil(t, ts.OpenCondition)

	// Second call returns the stored row untouched.
	ts.CarryingVolume = 0
	ts.LastModified = testNow.Add(time.Hour)
	require.NoError(t, store.Save(ctx, ts))
	again, err := store.GetOrCreate(ctx, "SHFE_rb_main_long", statusKey("SHFE.rb2310"), testNow)
	require.NoError(t, err)
	assert.True(t, again.LastModified.Equal(testNow.Add(time.Hour)))

	_, err = store.GetOrCreate(ctx, "", statusKey("SHFE.rb2310"), testNow)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeStatusStore_OpenAndClosePosition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStatusStore(pool)

	ts, err := store.GetOrCreate(ctx, "SHFE_rb_main_long", statusKey("SHFE.rb2310"), testNow)
	require.NoError(t, err)

	pos := openPosition("pos-1", "SHFE.rb2310")
	opened := openStatus(ts, pos)
	require.NoError(t, store.OpenPosition(ctx, opened, pos))

	got, ok, err := store.Get(ctx, statusKey("SHFE.rb2310"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StateOpen, got.State)
	assert.Equal(t, 3, got.CarryingVolume)
	assert.Equal(t, "pos-1", got.OpenPositionID)
	require.NotNil(t, got.OpenCondition)
	require.NotNil(t, got.OpenCondition.Daily)
	assert.Equal(t, 2, got.OpenCondition.Daily.ConditionID)
	assert.InDelta(t, 3540, got.CloseCondition.StopLossPrice, 1e-9)

	// Duplicate position id leaves the status unchanged.
	err = store.OpenPosition(ctx, openStatus(ts, pos), pos)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Partial close.
	closedPos := pos.Clone()
	closedPos.CloseIDs = []string{"close-1"}
	partial := got.Clone()
	partial.CarryingVolume = 1
	cv := &domain.CloseVolumeRecord{
		CloseID: "close-1", PositionID: "pos-1", Symbol: "SHFE.rb2310", Direction: domain.Long,
		TradePrice: 3700, Volume: 2, TradeTime: testNow.Add(time.Hour), OrderID: "o-close-1",
		Reason: domain.CloseTakeProfit, Message: "staged take-profit",
	}
	require.NoError(t, store.ClosePosition(ctx, partial, closedPos, cv))

	// Duplicate close id rolls back the whole unit.
	dup := partial.Clone()
	dup.CarryingVolume = 0
	err = store.ClosePosition(ctx, dup, closedPos, cv)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	got, _, err = store.Get(ctx, statusKey("SHFE.rb2310"))
	require.NoError(t, err)
	assert.Equal(t, 1, got.CarryingVolume)

	// Final close.
	closedPos.CloseIDs = append(closedPos.CloseIDs, "close-2")
	closedPos.IsClosed = true
	final := got.Clone()
	final.State = domain.StateClosed
	final.CarryingVolume = 0
	final.EndTime = testNow.Add(2 * time.Hour)
	final.OpenPositionID = ""
	final.CloseCondition = domain.DefaultCloseCondition()
	cv2 := *cv
	cv2.CloseID = "close-2"
	cv2.Volume = 1
	cv2.TradeTime = testNow.Add(2 * time.Hour)
	cv2.Reason = domain.CloseStopLoss
	require.NoError(t, store.ClosePosition(ctx, final, closedPos, &cv2))

	stored, ok, err := store.GetPosition(ctx, "pos-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.IsClosed)
	assert.Equal(t, []string{"close-1", "close-2"}, stored.CloseIDs)
	assert.Equal(t, domain.StrategyMain, stored.Kind)

	closes, err := store.ListCloses(ctx, "pos-1")
	require.NoError(t, err)
	require.Len(t, closes, 2)
	assert.Equal(t, 2, closes[0].Volume)
	assert.Equal(t, domain.CloseTakeProfit, closes[0].Reason)
	assert.Equal(t, domain.CloseStopLoss, closes[1].Reason)

	got, _, err = store.Get(ctx, statusKey("SHFE.rb2310"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, got.State)
	assert.True(t, got.EndTime.Equal(testNow.Add(2*time.Hour)))
	assert.Empty(t, got.OpenPositionID)
}

func TestTradeStatusStore_ClosePositionUnknown(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStatusStore(pool)

	ts, err := store.GetOrCreate(ctx, "SHFE_rb_main_long", statusKey("SHFE.rb2310"), testNow)
	require.NoError(t, err)

	cv := &domain.CloseVolumeRecord{CloseID: "c", PositionID: "missing", Volume: 1, TradeTime: testNow}
	err = store.ClosePosition(ctx, ts, &domain.OpenPositionRecord{PositionID: "missing"}, cv)
	assert.Error(t, err)

	_, ok, err := store.GetPosition(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTradeStatusStore_ListAndRetire(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStatusStore(pool)

	for _, sym := range []string{"SHFE.rb2401", "SHFE.rb2310", "SHFE.rb2405"} {
		_, err := store.GetOrCreate(ctx, "SHFE_rb_main_long", statusKey(sym), testNow)
		require.NoError(t, err)
	}
	_, err := store.GetOrCreate(ctx, "SHFE_hc_main_long", statusKey("SHFE.hc2310"), testNow)
	require.NoError(t, err)

	list, err := store.ListByCustomSymbol(ctx, "SHFE_rb_main_long")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "SHFE.rb2310", list[0].Symbol)
	assert.Equal(t, "SHFE.rb2405", list[2].Symbol)

	n, err := store.Retire(ctx, "SHFE_rb_main_long", []string{"SHFE.rb2401", "SHFE.rb2405"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = store.ListByCustomSymbol(ctx, "SHFE_rb_main_long")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Other custom symbols are untouched.
	_, ok, err := store.Get(ctx, statusKey("SHFE.hc2310"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, statusKey("SHFE.rb2401")))
	require.NoError(t, store.Delete(ctx, statusKey("SHFE.rb2401")))
	_, ok, err = store.Get(ctx, statusKey("SHFE.rb2401"))
	require.NoError(t, err)
	assert.False(t, ok)
}
