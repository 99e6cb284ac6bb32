package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonkminer/internal/domain"
	"stonkminer/internal/genome"
)

func TestNewState_Defaults(t *testing.T) {
	s, err := NewState(genome.DefaultCatalog(), "", "BTC_USDT", "RSIL=20")
	require.NoError(t, err)

	assert.Equal(t, "bot", s.Name)
	assert.Equal(t, "BTC_USDT-bot", s.Key())
	assert.Equal(t, domain.PhaseNew, s.Phase)
	assert.Equal(t, 0.1, s.TradeFraction)
	assert.Equal(t, 0.001, s.FeePct)
	assert.Equal(t, 20.0, s.Genome.Float("RSIL"))
	assert.Equal(t, "BTC", s.Base())
	assert.Equal(t, "USDT", s.Quote())
}

func TestNewState_BadGenetics(t *testing.T) {
	_, err := NewState(genome.DefaultCatalog(), "x", "BTC_USDT", "ZZZ=1")
	assert.ErrorIs(t, err, genome.ErrUnknownGene)
}

func TestState_Ledger(t *testing.T) {
	s, err := NewState(genome.DefaultCatalog(), "x", "BTC_USDT", "")
	require.NoError(t, err)

	assert.Nil(t, s.PrevTrade())
	assert.Nil(t, s.PrevPrevTrade())

	buy := &domain.Trade{Side: domain.SideBuy}
	sell := &domain.Trade{Side: domain.SideSell}
	s.AddTrade(buy)
	s.AddTrade(sell)

	assert.Same(t, sell, s.PrevTrade())
	assert.Same(t, buy, s.PrevPrevTrade())

	c := s.Clone()
	c.Trades[0].Price = 5
	assert.Equal(t, 0.0, buy.Price)
}

func TestState_ComputeFees(t *testing.T) {
	s := &State{FeeBase: 0.5, FeePct: 0.001}
	assert.InDelta(t, 0.6, s.ComputeFees(100, 1), 1e-12)
}

func TestAPISymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", APISymbol("BTC_USDT"))
	b, q := SplitPair("ETH")
	assert.Equal(t, "ETH", b)
	assert.Equal(t, "", q)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("trade-bot")
	require.NoError(t, err)
	assert.Equal(t, KindTradeBot, k)

	_, err = ParseKind("analyzer")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
