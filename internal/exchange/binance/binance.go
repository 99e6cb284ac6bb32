// Package binance adapts the Binance spot API to exchange.Exchange.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
)

// Default configuration values.
const (
	DefaultStreamURL    = "wss://stream.binance.com:9443/ws"
	DefaultPingInterval = 30 * time.Second
	DefaultReadTimeout  = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second

	testOrderPrefix = "test-"
)

// Client implements exchange.Exchange over the Binance REST API and kline stream.
type Client struct {
	rest      *gobinance.Client
	streamURL string

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the REST endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.rest.BaseURL = strings.TrimSuffix(url, "/")
	}
}

// WithStreamURL overrides the websocket endpoint. Streams are opened at
// <url>/<symbol>@kline_<interval>.
func WithStreamURL(url string) ClientOption {
	return func(c *Client) {
		c.streamURL = strings.TrimSuffix(url, "/")
	}
}

// WithPingInterval sets the interval of websocket ping frames.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pingInterval = d
	}
}

// WithReadTimeout sets how long the stream may stay silent before it is
// treated as disconnected.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Binance client. Empty credentials allow market data only.
func NewClient(apiKey, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		rest:         gobinance.NewClient(apiKey, secretKey),
		streamURL:    DefaultStreamURL,
		pingInterval: DefaultPingInterval,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ exchange.Exchange = (*Client)(nil)

// FetchCandles returns the latest limit klines of pair.
func (c *Client) FetchCandles(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error) {
	svc := c.rest.NewKlinesService().Symbol(pair).Interval(interval)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", pair, interval, err)
	}

	out := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, domain.Candle{
			OpenTime:            k.OpenTime,
			Open:                parseFloat(k.Open),
			High:                parseFloat(k.High),
			Low:                 parseFloat(k.Low),
			Close:               parseFloat(k.Close),
			Volume:              parseFloat(k.Volume),
			CloseTime:           k.CloseTime,
			QuoteVolume:         parseFloat(k.QuoteAssetVolume),
			TradeCount:          k.TradeNum,
			TakerBuyBaseVolume:  parseFloat(k.TakerBuyBaseAssetVolume),
			TakerBuyQuoteVolume: parseFloat(k.TakerBuyQuoteAssetVolume),
		})
	}
	return out, nil
}

// SymbolRules reads the price and lot size filters of pair.
func (c *Client) SymbolRules(ctx context.Context, pair string) (exchange.SymbolRules, error) {
	info, err := c.rest.NewExchangeInfoService().Symbol(pair).Do(ctx)
	if err != nil {
		return exchange.SymbolRules{}, fmt.Errorf("exchange info %s: %w", pair, err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != pair {
			continue
		}
		rules := exchange.SymbolRules{QuoteAssetPrecision: s.QuoteAssetPrecision}
		if f := s.PriceFilter(); f != nil {
			rules.TickSize = parseFloat(f.TickSize)
		}
		if f := s.LotSizeFilter(); f != nil {
			rules.StepSize = parseFloat(f.StepSize)
		}
		return rules, nil
	}
	return exchange.SymbolRules{}, fmt.Errorf("exchange info %s: symbol not listed", pair)
}

// SubmitOrder places a GTC limit or market order. Test orders are validated
// by the exchange and receive a synthetic ID.
func (c *Client) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	svc := c.rest.NewCreateOrderService().
		Symbol(req.Pair).
		Side(sideType(req.Side)).
		Quantity(formatFloat(req.Quantity))

	if req.Type == exchange.OrderTypeMarket {
		svc = svc.Type(gobinance.OrderTypeMarket)
	} else {
		svc = svc.Type(gobinance.OrderTypeLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			Price(formatFloat(req.Price))
	}

	if req.Test {
		if err := svc.Test(ctx); err != nil {
			return exchange.OrderAck{}, fmt.Errorf("test order %s: %w", req.Pair, err)
		}
		id := testOrderPrefix + uuid.NewString()
		c.logger.Debug("test order accepted", zap.String("order_id", id))
		return exchange.OrderAck{OrderID: id}, nil
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderAck{}, fmt.Errorf("create order %s: %w", req.Pair, err)
	}
	return exchange.OrderAck{OrderID: strconv.FormatInt(res.OrderID, 10)}, nil
}

// QueryOrder reports the status of orderID. Test orders always report filled.
func (c *Client) QueryOrder(ctx context.Context, pair, orderID string) (exchange.OrderReport, error) {
	if strings.HasPrefix(orderID, testOrderPrefix) {
		return exchange.OrderReport{OrderID: orderID, Status: exchange.OrderStatusFilled}, nil
	}

	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return exchange.OrderReport{}, fmt.Errorf("%w: %s", exchange.ErrOrderNotFound, orderID)
	}

	o, err := c.rest.NewGetOrderService().Symbol(pair).OrderID(id).Do(ctx)
	if err != nil {
		return exchange.OrderReport{}, fmt.Errorf("get order %s %s: %w", pair, orderID, err)
	}

	return exchange.OrderReport{
		OrderID:          orderID,
		Status:           exchange.OrderStatus(o.Status),
		FilledQuantity:   parseFloat(o.ExecutedQuantity),
		CumulativeQuote:  parseFloat(o.CummulativeQuoteQuantity),
		UpdateTimeMillis: o.UpdateTime,
	}, nil
}

func sideType(s domain.Side) gobinance.SideType {
	if s == domain.SideSell {
		return gobinance.SideTypeSell
	}
	return gobinance.SideTypeBuy
}

// parseFloat reads a decimal string field. Binance never sends malformed
// numbers, so failures read as zero.
func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
