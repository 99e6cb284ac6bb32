// Package paper is an in-memory exchange used for backtests and tests.
package paper

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
)

// FillPolicy decides what a submitted order reports on query.
type FillPolicy int

const (
	// FillImmediately reports every order as filled.
	FillImmediately FillPolicy = iota
	// FillNever leaves orders NEW until SetStatus is called.
	FillNever
)

// Options configures an Exchange.
type Options struct {
	Rules   exchange.SymbolRules
	Candles []domain.Candle
	// Sessions are the tick feeds returned by successive SubscribeTicks calls.
	// Each session ends with ErrTransportDisconnect. Once exhausted, further
	// subscriptions stay open until the context is cancelled.
	Sessions [][]domain.Tick
	Fill     FillPolicy
}

type order struct {
	req    exchange.OrderRequest
	status exchange.OrderStatus
}

// Exchange implements exchange.Exchange in memory.
type Exchange struct {
	mu        sync.Mutex
	opts      Options
	orders    map[string]*order
	submitted []exchange.OrderRequest
	seq       int
	session   int

	submitErr error
	queryErr  error
}

// New creates a paper exchange.
func New(opts Options) *Exchange {
	return &Exchange{
		opts:   opts,
		orders: make(map[string]*order),
	}
}

var _ exchange.Exchange = (*Exchange)(nil)

// FetchCandles returns the last limit configured candles.
func (e *Exchange) FetchCandles(_ context.Context, _, _ string, limit int) ([]domain.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candles := e.opts.Candles
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// SubscribeTicks replays the next configured session.
func (e *Exchange) SubscribeTicks(ctx context.Context, _, _ string) (<-chan domain.Tick, <-chan error, error) {
	e.mu.Lock()
	var ticks []domain.Tick
	exhausted := e.session >= len(e.opts.Sessions)
	if !exhausted {
		ticks = e.opts.Sessions[e.session]
	}
	e.session++
	e.mu.Unlock()

	tickCh := make(chan domain.Tick)
	errCh := make(chan error, 1)

	go func() {
		defer close(tickCh)

		if exhausted {
			<-ctx.Done()
			return
		}

		for _, t := range ticks {
			select {
			case tickCh <- t:
			case <-ctx.Done():
				return
			}
		}
		errCh <- exchange.ErrTransportDisconnect
	}()

	return tickCh, errCh, nil
}

// SubmitOrder records req and returns a sequential order ID.
func (e *Exchange) SubmitOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitErr != nil {
		return exchange.OrderAck{}, e.submitErr
	}

	e.seq++
	id := "paper-" + strconv.Itoa(e.seq)

	status := exchange.OrderStatusFilled
	if e.opts.Fill == FillNever {
		status = exchange.OrderStatusNew
	}
	e.orders[id] = &order{req: req, status: status}
	e.submitted = append(e.submitted, req)

	return exchange.OrderAck{OrderID: id}, nil
}

// QueryOrder reports the stored status of orderID.
func (e *Exchange) QueryOrder(_ context.Context, _, orderID string) (exchange.OrderReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queryErr != nil {
		return exchange.OrderReport{}, e.queryErr
	}

	o, ok := e.orders[orderID]
	if !ok {
		return exchange.OrderReport{}, fmt.Errorf("%w: %s", exchange.ErrOrderNotFound, orderID)
	}

	rep := exchange.OrderReport{OrderID: orderID, Status: o.status}
	switch o.status {
	case exchange.OrderStatusFilled:
		rep.FilledQuantity = o.req.Quantity
	case exchange.OrderStatusPartiallyFilled:
		rep.FilledQuantity = o.req.Quantity / 2
	}
	rep.CumulativeQuote = rep.FilledQuantity * o.req.Price
	return rep, nil
}

// SymbolRules returns the configured rules.
func (e *Exchange) SymbolRules(_ context.Context, _ string) (exchange.SymbolRules, error) {
	return e.opts.Rules, nil
}

// SetStatus overrides the status of a submitted order.
func (e *Exchange) SetStatus(orderID string, status exchange.OrderStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[orderID]; ok {
		o.status = status
	}
}

// FailSubmit makes SubmitOrder return err until cleared with nil.
func (e *Exchange) FailSubmit(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitErr = err
}

// FailQuery makes QueryOrder return err until cleared with nil.
func (e *Exchange) FailQuery(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queryErr = err
}

// Submitted returns the accepted order requests in submission order.
func (e *Exchange) Submitted() []exchange.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]exchange.OrderRequest, len(e.submitted))
	copy(out, e.submitted)
	return out
}

// Subscriptions returns how many times SubscribeTicks was called.
func (e *Exchange) Subscriptions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}
