package memory

import (
	"context"
	"sort"
	"sync"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Candle // symbol -> open_time -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]map[int64]domain.Candle),
	}
}

// InsertBulk adds candles atomically. Fails entire batch on any duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, symbol string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[symbol]

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, exists := existing[c.OpenTime]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.OpenTime]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.OpenTime] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.Candle, len(candles))
		s.data[symbol] = existing
	}
	for _, c := range candles {
		existing[c.OpenTime] = c
	}

	return nil
}

// GetByTimeRange returns candles opened within [start, end], ordered by open_time ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for ts, c := range s.data[symbol] {
		if ts >= start && ts <= end {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})

	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
