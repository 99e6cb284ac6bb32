// Package exchange defines the market and order contract agents trade through.
package exchange

import (
	"context"
	"errors"

	"stonkminer/internal/domain"
)

// Exchange errors.
var (
	// ErrTransportDisconnect is delivered on a tick stream's error channel when
	// the connection is lost. The stream closes after it.
	ErrTransportDisconnect = errors.New("transport disconnected")

	// ErrOrderNotFound is returned by QueryOrder for unknown order IDs.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderType is the order kind. Only limit orders are placed by agents.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the exchange-reported state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the order can no longer fill.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// OrderRequest describes an order to submit.
type OrderRequest struct {
	Pair     string
	Side     domain.Side
	Type     OrderType
	Price    float64
	Quantity float64
	// Test selects the validation-only variant; nothing is executed.
	Test bool
}

// OrderAck is the exchange acknowledgement of a submitted order.
type OrderAck struct {
	OrderID string
}

// OrderReport is the result of an order status query.
type OrderReport struct {
	OrderID          string
	Status           OrderStatus
	FilledQuantity   float64
	CumulativeQuote  float64
	UpdateTimeMillis int64
}

// Exchange is the collaborator an agent uses for market data and orders.
// Implementations must be safe for use by one agent task at a time.
type Exchange interface {
	// FetchCandles returns up to limit most recent closed candles, oldest first.
	FetchCandles(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error)

	// SubscribeTicks streams ticks in exchange order. The tick channel is closed
	// when the stream ends; a transport failure is sent on the error channel first.
	SubscribeTicks(ctx context.Context, pair, interval string) (<-chan domain.Tick, <-chan error, error)

	// SubmitOrder places an order, or validates it when req.Test is set.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)

	// QueryOrder reports the status of a previously submitted order.
	QueryOrder(ctx context.Context, pair, orderID string) (OrderReport, error)

	// SymbolRules returns the price and quantity constraints of a pair.
	SymbolRules(ctx context.Context, pair string) (SymbolRules, error)
}
