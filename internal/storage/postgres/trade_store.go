package postgres

import (
	"context"
	"fmt"
	"time"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Upsert inserts or replaces the entry at (agent_key, seq).
func (s *TradeStore) Upsert(ctx context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.AgentKey == "" || e.Seq < 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO agent_trades (
			agent_key, seq, symbol, side, created_at,
			price, quantity, gross, fees, state,
			stop_price, limit_price, target_price,
			order_id, exchange, notes
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16
		)
		ON CONFLICT (agent_key, seq) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			side = EXCLUDED.side,
			created_at = EXCLUDED.created_at,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			gross = EXCLUDED.gross,
			fees = EXCLUDED.fees,
			state = EXCLUDED.state,
			stop_price = EXCLUDED.stop_price,
			limit_price = EXCLUDED.limit_price,
			target_price = EXCLUDED.target_price,
			order_id = EXCLUDED.order_id,
			exchange = EXCLUDED.exchange,
			notes = EXCLUDED.notes,
			updated_at = now()
	`

	t := e.Trade
	notes := t.Notes
	if notes == nil {
		notes = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		e.AgentKey, e.Seq, t.Symbol, int16(t.Side), t.CreatedAt.UTC(),
		t.Price, t.Quantity, t.Gross, t.Fees, int16(t.State),
		t.Stop, t.Limit, t.Target,
		t.ExchangeOrderID, t.Exchange, notes,
	)
	if err != nil {
		return fmt.Errorf("upsert agent trade: %w", err)
	}
	return nil
}

// GetByAgent returns all entries of an agent ordered by seq ASC.
func (s *TradeStore) GetByAgent(ctx context.Context, agentKey string) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT
			agent_key, seq, symbol, side, created_at,
			price, quantity, gross, fees, state,
			stop_price, limit_price, target_price,
			order_id, exchange, notes
		FROM agent_trades
		WHERE agent_key = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, agentKey)
	if err != nil {
		return nil, fmt.Errorf("query agent trades: %w", err)
	}
	defer rows.Close()

	var result []*domain.LedgerEntry
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			side      int16
			state     int16
			createdAt time.Time
		)
		err := rows.Scan(
			&e.AgentKey, &e.Seq, &e.Trade.Symbol, &side, &createdAt,
			&e.Trade.Price, &e.Trade.Quantity, &e.Trade.Gross, &e.Trade.Fees, &state,
			&e.Trade.Stop, &e.Trade.Limit, &e.Trade.Target,
			&e.Trade.ExchangeOrderID, &e.Trade.Exchange, &e.Trade.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan agent trade: %w", err)
		}
		e.Trade.Side = domain.Side(side)
		e.Trade.State = domain.TradeState(state)
		e.Trade.CreatedAt = createdAt.UTC()
		result = append(result, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent trades: %w", err)
	}

	return result, nil
}
