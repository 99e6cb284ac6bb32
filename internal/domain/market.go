package domain

import "time"

// Candle is one closed interval of market data. Times are Unix milliseconds.
type Candle struct {
	OpenTime            int64
	Open                float64
	High                float64
	Low                 float64
	Close               float64
	Volume              float64
	CloseTime           int64
	QuoteVolume         float64
	TradeCount          int64
	TakerBuyBaseVolume  float64
	TakerBuyQuoteVolume float64
}

// Tick is a sub-interval price update for the in-progress candle.
type Tick struct {
	Symbol      string
	EventTime   int64 // Unix ms
	Price       float64
	Open        float64
	High        float64
	Low         float64
	Volume      float64
	QuoteVolume float64
	TradeCount  int64
	// Final is set on the last update of an interval.
	Final bool
}

// Time returns the event time in UTC.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.EventTime).UTC()
}
