// Package agent holds the durable record of one trading agent.
package agent

import (
	"fmt"
	"strings"

	"stonkminer/internal/domain"
	"stonkminer/internal/genome"
)

// Defaults applied to fresh agents and to fields missing from a state file.
const (
	DefaultName          = "bot"
	DefaultTradeFraction = 0.1
	DefaultTargetYield   = 0.01
	DefaultFeeBase       = 0.0
	DefaultFeePct        = 0.001
)

// State is the single-writer record of an agent. It is owned by one engine
// and is not safe for concurrent use.
type State struct {
	Name          string
	Symbol        string // pair, e.g. BTC_USDT
	Genome        *genome.Genome
	Budget        float64
	TradeFraction float64
	TargetYield   float64
	TotalProfit   float64
	Phase         domain.Phase
	Trades        []*domain.Trade
	FeeBase       float64
	FeePct        float64
}

// NewState builds a fresh agent from a genetics string.
func NewState(catalog *genome.Catalog, name, symbol, genetics string) (*State, error) {
	g, err := genome.Parse(catalog, genetics)
	if err != nil {
		return nil, fmt.Errorf("parse genetics: %w", err)
	}
	if name == "" {
		name = DefaultName
	}

	return &State{
		Name:          name,
		Symbol:        symbol,
		Genome:        g,
		TradeFraction: DefaultTradeFraction,
		TargetYield:   DefaultTargetYield,
		Phase:         domain.PhaseNew,
		FeeBase:       DefaultFeeBase,
		FeePct:        DefaultFeePct,
	}, nil
}

// Key identifies the agent's persisted state: "{symbol}-{name}".
func (s *State) Key() string {
	return StateKey(s.Symbol, s.Name)
}

// StateKey builds a state key without a State.
func StateKey(symbol, name string) string {
	return symbol + "-" + name
}

// PrevTrade returns the most recent ledger entry.
func (s *State) PrevTrade() *domain.Trade {
	if len(s.Trades) == 0 {
		return nil
	}
	return s.Trades[len(s.Trades)-1]
}

// PrevPrevTrade returns the entry before the most recent one.
func (s *State) PrevPrevTrade() *domain.Trade {
	if len(s.Trades) < 2 {
		return nil
	}
	return s.Trades[len(s.Trades)-2]
}

// AddTrade appends t to the ledger.
func (s *State) AddTrade(t *domain.Trade) {
	s.Trades = append(s.Trades, t)
}

// ComputeFees returns the exchange fee for a trade of qty at price.
func (s *State) ComputeFees(price, qty float64) float64 {
	return s.FeeBase + price*qty*s.FeePct
}

// Base returns the base asset of the pair.
func (s *State) Base() string {
	b, _ := SplitPair(s.Symbol)
	return b
}

// Quote returns the quote asset of the pair.
func (s *State) Quote() string {
	_, q := SplitPair(s.Symbol)
	return q
}

// Clone returns a deep copy. The genome is shared since it is never mutated.
func (s *State) Clone() *State {
	c := *s
	c.Trades = make([]*domain.Trade, len(s.Trades))
	for i, t := range s.Trades {
		c.Trades[i] = t.Clone()
	}
	return &c
}

// SplitPair splits "BTC_USDT" into base and quote.
func SplitPair(pair string) (string, string) {
	base, quote, _ := strings.Cut(pair, "_")
	return base, quote
}

// APISymbol returns the exchange symbol for a pair ("BTC_USDT" -> "BTCUSDT").
func APISymbol(pair string) string {
	return strings.ReplaceAll(pair, "_", "")
}
