package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stonkminer/internal/agent"
	"stonkminer/internal/domain"
	"stonkminer/internal/exchange"
	"stonkminer/internal/intake"
)

// PlaceBuy submits a limit buy and moves the agent to
// WaitingForBuyOrderConfirmation. On submission failure the phase and ledger
// are left untouched.
func (e *Engine) PlaceBuy(ctx context.Context, price, qty float64, at time.Time) (*domain.Trade, error) {
	st := e.state
	price, qty = e.rules.Normalize(price, qty)
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: buy quantity %v at %v rounds to zero", ErrOrderSubmission, qty, price)
	}

	fees := st.ComputeFees(price, qty)
	t := &domain.Trade{
		Symbol:    st.Symbol,
		Side:      domain.SideBuy,
		CreatedAt: at.UTC(),
		Price:     price,
		Quantity:  qty,
		Gross:     -(price*qty + fees),
		Fees:      fees,
		State:     domain.TradeOpen,
		Stop:      price,
		Limit:     price,
		Target:    price + price*st.TargetYield + fees,
		Exchange:  e.venue,
	}

	if err := e.submit(ctx, t, domain.PhaseWaitingForBuyOrderConfirmation); err != nil {
		return nil, err
	}
	return t, nil
}

// PlaceSell submits a limit sell of the quantity bought by prev and moves
// the agent to WaitingForSellOrderConfirmation.
func (e *Engine) PlaceSell(ctx context.Context, prev *domain.Trade, price float64, at time.Time) (*domain.Trade, error) {
	if prev == nil {
		return nil, ErrNoPreviousTrade
	}
	st := e.state
	price, _ = e.rules.Normalize(price, 0)
	qty := prev.Quantity
	fees := prev.Fees

	t := &domain.Trade{
		Symbol:    st.Symbol,
		Side:      domain.SideSell,
		CreatedAt: at.UTC(),
		Price:     price,
		Quantity:  qty,
		Gross:     price*qty - fees,
		Fees:      fees,
		State:     domain.TradeOpen,
		Stop:      price,
		Limit:     price,
		Exchange:  e.venue,
	}

	if err := e.submit(ctx, t, domain.PhaseWaitingForSellOrderConfirmation); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) submit(ctx context.Context, t *domain.Trade, next domain.Phase) error {
	st := e.state
	req := exchange.OrderRequest{
		Pair:     agent.APISymbol(st.Symbol),
		Side:     t.Side,
		Type:     exchange.OrderTypeLimit,
		Price:    t.Price,
		Quantity: t.Quantity,
		Test:     !e.live,
	}

	started := time.Now()
	ack, err := e.exchange.SubmitOrder(ctx, req)
	e.metrics.ObserveExchangeCall("submit_order", started)
	if err != nil {
		e.metrics.RecordOrderError(st.Key(), "submit")
		return fmt.Errorf("%w: %s %s: %v", ErrOrderSubmission, t.Side, st.Symbol, err)
	}

	t.ExchangeOrderID = ack.OrderID
	t.State = domain.TradePlaced
	if req.Test {
		t.AddNote("test order")
	}
	st.AddTrade(t)
	e.metrics.RecordOrderPlaced(st.Key(), t.Side.String())

	e.logger.Info("order placed",
		zap.Stringer("side", t.Side),
		zap.String("order_id", t.ExchangeOrderID),
		zap.Float64("price", t.Price),
		zap.Float64("quantity", t.Quantity),
		zap.Float64("fees", t.Fees),
		zap.Bool("test", req.Test))

	if err := e.changeState(ctx, next); err != nil {
		return err
	}
	e.archiveTrade(ctx, len(st.Trades)-1)

	// Playback reconciles right away; a failed query is retried on the next
	// tick while the phase still awaits confirmation.
	if e.mode == intake.ModePlayback {
		err := e.PollOrder(ctx)
		if errors.Is(err, ErrOrderQuery) {
			e.logger.Warn("order placed but not yet reconciled", zap.String("order_id", t.ExchangeOrderID), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

// PollOrder queries the outstanding order of the last trade and resolves the
// confirmation phase when it has filled. Other statuses keep the agent waiting.
func (e *Engine) PollOrder(ctx context.Context) error {
	st := e.state
	if !st.Phase.AwaitingConfirmation() {
		return nil
	}
	t := st.PrevTrade()
	if t == nil {
		return ErrNoPreviousTrade
	}

	started := time.Now()
	rep, err := e.exchange.QueryOrder(ctx, agent.APISymbol(st.Symbol), t.ExchangeOrderID)
	e.metrics.ObserveExchangeCall("query_order", started)
	if err != nil {
		e.metrics.RecordOrderError(st.Key(), "query")
		return fmt.Errorf("%w: %s: %v", ErrOrderQuery, t.ExchangeOrderID, err)
	}

	log := e.logger.With(zap.String("order_id", t.ExchangeOrderID), zap.String("status", string(rep.Status)))

	switch rep.Status {
	case exchange.OrderStatusFilled:
		return e.settle(ctx, t)

	case exchange.OrderStatusPartiallyFilled:
		if t.State != domain.TradePartiallyFilled {
			if err := t.Transition(domain.TradePartiallyFilled); err != nil {
				return err
			}
			t.AddNote(fmt.Sprintf("partial fill %v of %v", rep.FilledQuantity, t.Quantity))
			log.Warn("partial fill not handled, still waiting", zap.Float64("filled", rep.FilledQuantity))
			e.archiveTrade(ctx, len(st.Trades)-1)
			return e.persist(ctx)
		}

	case exchange.OrderStatusCancelled, exchange.OrderStatusExpired, exchange.OrderStatusRejected:
		if t.State.Terminal() {
			return nil
		}
		next := domain.TradeCancelled
		if rep.Status == exchange.OrderStatusRejected {
			next = domain.TradeError
		}
		if err := t.Transition(next); err != nil {
			return err
		}
		t.AddNote("order " + string(rep.Status))
		log.Warn("order will not fill")
		e.archiveTrade(ctx, len(st.Trades)-1)
		return e.persist(ctx)

	default:
		log.Debug("order pending")
	}
	return nil
}

func (e *Engine) settle(ctx context.Context, t *domain.Trade) error {
	st := e.state
	// Already closed when a previous settle could not persist the phase.
	if t.State != domain.TradeClosed {
		if err := t.Transition(domain.TradeClosed); err != nil {
			return err
		}
		e.metrics.RecordOrderFilled(st.Key(), t.Side.String())
		e.archiveTrade(ctx, len(st.Trades)-1)
	}

	switch st.Phase {
	case domain.PhaseWaitingForBuyOrderConfirmation:
		e.logger.Info("buy filled", zap.Float64("price", t.Price), zap.Float64("target", t.Target))
		return e.changeState(ctx, domain.PhaseWaitingForSellOpportunity)

	case domain.PhaseWaitingForSellOrderConfirmation:
		buy := st.PrevPrevTrade()
		if buy == nil {
			return ErrNoPreviousTrade
		}
		profit := (t.Gross - t.Fees) - buy.Price*buy.Quantity
		st.TotalProfit += profit
		e.metrics.SetRealizedProfit(st.Key(), st.TotalProfit)
		e.logger.Info("sell filled",
			zap.Float64("price", t.Price),
			zap.Float64("profit", profit),
			zap.Float64("total_profit", st.TotalProfit))
		return e.changeState(ctx, domain.PhaseWaitingForBuyOpportunity)
	}
	return nil
}

func (e *Engine) archiveTrade(ctx context.Context, seq int) {
	if e.tradeArchive == nil || seq < 0 {
		return
	}
	entry := &domain.LedgerEntry{
		AgentKey: e.state.Key(),
		Seq:      seq,
		Trade:    *e.state.Trades[seq].Clone(),
	}
	if err := e.tradeArchive.Upsert(ctx, entry); err != nil {
		e.logger.Warn("archive trade failed", zap.Int("seq", seq), zap.Error(err))
	}
}
