package storage

import (
	"context"

	"stonkminer/internal/agent"
	"stonkminer/internal/domain"
)

// AgentStateStore persists the durable state of agents.
type AgentStateStore interface {
	// Load returns the state stored under key ("{symbol}-{name}").
	// Returns ErrNotFound if none exists, ErrCorruptState if it cannot be decoded.
	Load(ctx context.Context, key string) (*agent.State, error)

	// Save replaces the stored state of s.Key() atomically.
	Save(ctx context.Context, s *agent.State) error
}

// TradeStore archives agent ledgers for reporting.
type TradeStore interface {
	// Upsert inserts or replaces the entry at (agent_key, seq).
	Upsert(ctx context.Context, e *domain.LedgerEntry) error

	// GetByAgent returns all entries of an agent ordered by seq ASC.
	GetByAgent(ctx context.Context, agentKey string) ([]*domain.LedgerEntry, error)
}

// CandleStore archives closed candles per symbol.
type CandleStore interface {
	// InsertBulk adds candles. Fails the entire batch on a duplicate (symbol, open_time).
	InsertBulk(ctx context.Context, symbol string, candles []domain.Candle) error

	// GetByTimeRange returns candles opened within [start, end] (inclusive, ms), ordered by open_time ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.Candle, error)
}
