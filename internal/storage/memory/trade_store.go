package memory

import (
	"context"
	"sort"
	"sync"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
)

type ledgerKey struct {
	agentKey string
	seq      int
}

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[ledgerKey]*domain.LedgerEntry
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[ledgerKey]*domain.LedgerEntry),
	}
}

// Upsert inserts or replaces the entry at (agent_key, seq).
func (s *TradeStore) Upsert(_ context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.AgentKey == "" || e.Seq < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	c.Trade = *e.Trade.Clone()
	s.data[ledgerKey{e.AgentKey, e.Seq}] = &c
	return nil
}

// GetByAgent returns all entries of an agent ordered by seq ASC.
func (s *TradeStore) GetByAgent(_ context.Context, agentKey string) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerEntry
	for k, e := range s.data {
		if k.agentKey == agentKey {
			c := *e
			c.Trade = *e.Trade.Clone()
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
