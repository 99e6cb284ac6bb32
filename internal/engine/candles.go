package engine

import (
	"context"
	"fmt"
	"sort"

	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
)

// CandleSource supplies intervals that closed since the last ingested one.
type CandleSource interface {
	// ClosedCandles returns candles with after < CloseTime <= upTo, oldest first.
	ClosedCandles(ctx context.Context, after, upTo int64) ([]domain.Candle, error)
}

// ExchangeCandles fetches the latest candles from an exchange.
type ExchangeCandles struct {
	Exchange exchange.Exchange
	Pair     string
	Interval string
	// Limit is the number of recent candles requested. Defaults to 2, which
	// covers the just-closed and the in-progress interval.
	Limit int
}

// ClosedCandles implements CandleSource.
func (s ExchangeCandles) ClosedCandles(ctx context.Context, after, upTo int64) ([]domain.Candle, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = 2
	}
	candles, err := s.Exchange.FetchCandles(ctx, s.Pair, s.Interval, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	return closedBetween(candles, after, upTo), nil
}

// StaticCandles serves a recorded candle history.
type StaticCandles []domain.Candle

// ClosedCandles implements CandleSource.
func (s StaticCandles) ClosedCandles(_ context.Context, after, upTo int64) ([]domain.Candle, error) {
	return closedBetween(s, after, upTo), nil
}

func closedBetween(candles []domain.Candle, after, upTo int64) []domain.Candle {
	var out []domain.Candle
	for _, c := range candles {
		if c.CloseTime > after && c.CloseTime <= upTo {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CloseTime < out[j].CloseTime })
	return out
}
