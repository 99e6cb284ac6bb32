package memory

import (
	"context"
	"errors"
	"testing"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
)

func TestCandleStore_InsertAndRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		{OpenTime: 120_000, Close: 2},
		{OpenTime: 0, Close: 0},
		{OpenTime: 60_000, Close: 1},
	}
	if err := store.InsertBulk(ctx, "BTC_USDT", candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTC_USDT", 60_000, 120_000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].Close != 1 || got[1].Close != 2 {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestCandleStore_Duplicate(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "BTC_USDT", []domain.Candle{{OpenTime: 1}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, "BTC_USDT", []domain.Candle{{OpenTime: 2}, {OpenTime: 1}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Whole batch rejected.
	got, _ := store.GetByTimeRange(ctx, "BTC_USDT", 0, 10)
	if len(got) != 1 {
		t.Errorf("expected 1 candle after rejected batch, got %d", len(got))
	}

	err = store.InsertBulk(ctx, "BTC_USDT", []domain.Candle{{OpenTime: 5}, {OpenTime: 5}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}
