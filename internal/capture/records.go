package capture

import "stonkminer/internal/domain"

// tickRow is one line of a ticks file.
type tickRow struct {
	Symbol      string  `json:"symbol"`
	EventTime   int64   `json:"event_time"`
	Price       float64 `json:"price"`
	Open        float64 `json:"open,omitempty"`
	High        float64 `json:"high,omitempty"`
	Low         float64 `json:"low,omitempty"`
	Volume      float64 `json:"volume,omitempty"`
	QuoteVolume float64 `json:"quote_volume,omitempty"`
	TradeCount  int64   `json:"trades,omitempty"`
	Final       bool    `json:"final,omitempty"`
}

// candleRow is one line of a history file.
type candleRow struct {
	OpenTime            int64   `json:"open_time"`
	Open                float64 `json:"open"`
	High                float64 `json:"high"`
	Low                 float64 `json:"low"`
	Close               float64 `json:"close"`
	Volume              float64 `json:"volume"`
	CloseTime           int64   `json:"close_time"`
	QuoteVolume         float64 `json:"quote_volume"`
	TradeCount          int64   `json:"trades"`
	TakerBuyBaseVolume  float64 `json:"taker_buy_base"`
	TakerBuyQuoteVolume float64 `json:"taker_buy_quote"`
}

func fromTick(t domain.Tick) tickRow {
	return tickRow{
		Symbol:      t.Symbol,
		EventTime:   t.EventTime,
		Price:       t.Price,
		Open:        t.Open,
		High:        t.High,
		Low:         t.Low,
		Volume:      t.Volume,
		QuoteVolume: t.QuoteVolume,
		TradeCount:  t.TradeCount,
		Final:       t.Final,
	}
}

func (r tickRow) tick() domain.Tick {
	return domain.Tick{
		Symbol:      r.Symbol,
		EventTime:   r.EventTime,
		Price:       r.Price,
		Open:        r.Open,
		High:        r.High,
		Low:         r.Low,
		Volume:      r.Volume,
		QuoteVolume: r.QuoteVolume,
		TradeCount:  r.TradeCount,
		Final:       r.Final,
	}
}

func fromCandle(c domain.Candle) candleRow {
	return candleRow(c)
}

func (r candleRow) candle() domain.Candle {
	return domain.Candle(r)
}
