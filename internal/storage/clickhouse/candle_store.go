package clickhouse

import (
	"context"
	"fmt"

	"stonkminer/internal/domain"
	"stonkminer/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles. Fails entire batch on duplicate (symbol, open_time).
func (s *CandleStore) InsertBulk(ctx context.Context, symbol string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, exists := seen[c.OpenTime]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.OpenTime] = struct{}{}
	}

	// MergeTree does not enforce keys, so check existing rows first.
	for _, c := range candles {
		exists, err := s.exists(ctx, symbol, c.OpenTime)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, open_time, close_time, open, high, low, close,
			volume, quote_volume, trade_count,
			taker_buy_base_volume, taker_buy_quote_volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			symbol, uint64(c.OpenTime), uint64(c.CloseTime), c.Open, c.High, c.Low, c.Close,
			c.Volume, c.QuoteVolume, uint64(c.TradeCount),
			c.TakerBuyBaseVolume, c.TakerBuyQuoteVolume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange returns candles opened within [start, end] (inclusive), ordered by open_time ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT open_time, close_time, open, high, low, close,
			volume, quote_volume, trade_count,
			taker_buy_base_volume, taker_buy_quote_volume
		FROM candles FINAL
		WHERE symbol = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

func (s *CandleStore) exists(ctx context.Context, symbol string, openTime int64) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND open_time = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(openTime)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var openTime, closeTime, tradeCount uint64

		err := rows.Scan(
			&openTime, &closeTime, &c.Open, &c.High, &c.Low, &c.Close,
			&c.Volume, &c.QuoteVolume, &tradeCount,
			&c.TakerBuyBaseVolume, &c.TakerBuyQuoteVolume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.OpenTime = int64(openTime)
		c.CloseTime = int64(closeTime)
		c.TradeCount = int64(tradeCount)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
