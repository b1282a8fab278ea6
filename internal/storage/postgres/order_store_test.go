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

func TestOrderStore_InsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderStore(pool)

	market := &domain.OrderRecord{
		OrderID: "o1", Symbol: "SHFE.rb2310", Side: domain.SideBuy, Offset: domain.OffsetOpen,
		VolumeOrigin: 2, VolumeLeft: 2, PriceType: domain.PriceTypeAny, Status: domain.OrderFinished,
		IsError: true, LastMessage: "market orders not supported", InsertTime: testNow,
	}
	limit := &domain.OrderRecord{
		OrderID: "o2", ExchangeOrderID: "ex-2", Symbol: "SHFE.rb2310", Side: domain.SideBuy, Offset: domain.OffsetOpen,
		VolumeOrigin: 2, VolumeLeft: 0, LimitPrice: ptr(3650.0), PriceType: domain.PriceTypeLimit,
		Status: domain.OrderFinished, TradePrice: 3650, InsertTime: testNow.Add(time.Second),
	}
	require.NoError(t, store.Insert(ctx, limit))
	require.NoError(t, store.Insert(ctx, market))
	assert.ErrorIs(t, store.Insert(ctx, market), storage.ErrDuplicateKey)

	orders, err := store.ListBySymbol(ctx, "SHFE.rb2310")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "o1", orders[0].OrderID)
	assert.Nil(t, orders[0].LimitPrice)
	assert.True(t, orders[0].IsError)
	assert.Equal(t, domain.OffsetOpen, orders[0].Offset)

	require.NotNil(t, orders[1].LimitPrice)
	assert.InDelta(t, 3650, *orders[1].LimitPrice, 1e-9)
	assert.Equal(t, "ex-2", orders[1].ExchangeOrderID)
	assert.Equal(t, 0, orders[1].VolumeLeft)
}
