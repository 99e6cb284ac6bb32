package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
	chstore "stonkminer/internal/storage/clickhouse"
)

func TestCandleStore_InsertAndRange(t *testing.T) {
	store := chstore.NewCandleStore(setupTestDB(t))
	ctx := context.Background()

	candles := []domain.Candle{
		{OpenTime: 0, CloseTime: 59_999, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, TradeCount: 3},
		{OpenTime: 60_000, CloseTime: 119_999, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 12, TradeCount: 4},
		{OpenTime: 120_000, CloseTime: 179_999, Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 8, TradeCount: 2},
	}
	require.NoError(t, store.InsertBulk(ctx, "BTC_USDT", candles))

	got, err := store.GetByTimeRange(ctx, "BTC_USDT", 60_000, 120_000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, candles[1], got[0])
	assert.Equal(t, candles[2], got[1])

	err = store.InsertBulk(ctx, "BTC_USDT", candles[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	other, err := store.GetByTimeRange(ctx, "ETH_USDT", 0, 1_000_000)
	require.NoError(t, err)
	assert.Empty(t, other)
}
