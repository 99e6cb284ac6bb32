package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrTradeImmutable is returned when a terminal trade is asked to change state.
var ErrTradeImmutable = errors.New("trade is in a terminal state")

// Side is the direction of a trade. Codes match the persisted state format.
type Side int

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// String returns "BUY" or "SELL".
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// TradeState is the fill status of a trade.
type TradeState int

const (
	TradeOpen            TradeState = 1
	TradePlaced          TradeState = 2
	TradePartiallyFilled TradeState = 3
	TradeClosed          TradeState = 4
	TradeCancelled       TradeState = 5
	TradeError           TradeState = 6
)

// String returns the state name.
func (s TradeState) String() string {
	switch s {
	case TradeOpen:
		return "OPEN"
	case TradePlaced:
		return "PLACED"
	case TradePartiallyFilled:
		return "PARTIALLY_FILLED"
	case TradeClosed:
		return "CLOSED"
	case TradeCancelled:
		return "CANCELLED"
	case TradeError:
		return "ERROR"
	default:
		return fmt.Sprintf("TradeState(%d)", int(s))
	}
}

// Valid reports whether s is a known state code.
func (s TradeState) Valid() bool { return s >= TradeOpen && s <= TradeError }

// Terminal reports whether no further transitions are allowed.
func (s TradeState) Terminal() bool {
	return s == TradeClosed || s == TradeCancelled || s == TradeError
}

// Trade is one buy or sell order owned by a single agent ledger.
type Trade struct {
	Symbol    string
	Side      Side
	CreatedAt time.Time
	Price     float64
	Quantity  float64
	Gross     float64 // negative for buys: -(price*qty + fees)
	Fees      float64
	State     TradeState

	Stop   float64
	Limit  float64
	Target float64 // buy only: price + price*yield + fees

	ExchangeOrderID string
	Exchange        string
	Notes           []string
}

// Transition moves the trade to state. Terminal trades are frozen.
func (t *Trade) Transition(state TradeState) error {
	if t.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTradeImmutable, t.State, state)
	}
	t.State = state
	return nil
}

// AddNote appends a free-form note.
func (t *Trade) AddNote(note string) {
	t.Notes = append(t.Notes, note)
}

// Clone returns a deep copy.
func (t *Trade) Clone() *Trade {
	c := *t
	if t.Notes != nil {
		c.Notes = append([]string(nil), t.Notes...)
	}
	return &c
}
