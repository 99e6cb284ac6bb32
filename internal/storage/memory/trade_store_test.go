package memory

import (
	"context"
	"errors"
	"testing"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
)

func TestTradeStore_UpsertAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	for _, seq := range []int{1, 0} {
		e := &domain.LedgerEntry{
			AgentKey: "BTC_USDT-bot",
			Seq:      seq,
			Trade:    domain.Trade{Side: domain.SideBuy, Price: float64(100 + seq), State: domain.TradePlaced},
		}
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	// Replace seq 0 with its filled state.
	err := store.Upsert(ctx, &domain.LedgerEntry{
		AgentKey: "BTC_USDT-bot",
		Seq:      0,
		Trade:    domain.Trade{Side: domain.SideBuy, Price: 100, State: domain.TradeClosed},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByAgent(ctx, "BTC_USDT-bot")
	if err != nil {
		t.Fatalf("GetByAgent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Seq != 0 || got[1].Seq != 1 {
		t.Errorf("entries not ordered by seq: %d, %d", got[0].Seq, got[1].Seq)
	}
	if got[0].Trade.State != domain.TradeClosed {
		t.Errorf("State mismatch: got %s, want %s", got[0].Trade.State, domain.TradeClosed)
	}

	other, _ := store.GetByAgent(ctx, "ETH_USDT-bot")
	if len(other) != 0 {
		t.Errorf("expected no entries for other agent, got %d", len(other))
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()

	err := store.Upsert(context.Background(), &domain.LedgerEntry{Seq: 0})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
