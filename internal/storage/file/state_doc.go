package file

import (
	"fmt"
	"strings"
	"time"

	"stonkminer/internal/agent"
	"stonkminer/internal/domain"
	"stonkminer/internal/genome"
	"stonkminer/internal/storage"
)

const tradeTimeLayout = "2006-01-02 15:04:05"

// stateDoc is the YAML layout of a persisted agent.
type stateDoc struct {
	Name            string     `yaml:"name"`
	Genetics        string     `yaml:"genetics"`
	GeneticsShort   string     `yaml:"genetics_short"`
	Symbol          string     `yaml:"symbol"`
	SavedFSMState   int        `yaml:"saved_fsm_state"`
	Budget          float64    `yaml:"budget"`
	DefaultTradePct float64    `yaml:"default_trade_pct"`
	TargetYieldPct  float64    `yaml:"target_yield_pct"`
	TotalProfit     float64    `yaml:"total_profit"`
	ExchFeeBase     float64    `yaml:"exch_fee_base"`
	ExchFeePct      float64    `yaml:"exch_fee_pct"`
	SymbolBase      string     `yaml:"symbol_base"`
	SymbolQuote     string     `yaml:"symbol_quote"`
	Trades          []tradeDoc `yaml:"trades"`
}

type tradeDoc struct {
	Symbol   string   `yaml:"symbol"`
	Type     int      `yaml:"type"`
	Time     string   `yaml:"time"`
	Price    float64  `yaml:"price"`
	Gross    float64  `yaml:"gross"`
	Fees     float64  `yaml:"fees"`
	Exchange string   `yaml:"exchange"`
	State    int      `yaml:"state"`
	Quantity float64  `yaml:"quantity"`
	Limit    float64  `yaml:"limit"`
	Stop     float64  `yaml:"stop"`
	Target   float64  `yaml:"target"`
	OrderID  string   `yaml:"order_id"`
	Notes    []string `yaml:"notes,omitempty"`
}

// defaultDoc holds the values fields fall back to when absent from a file.
func defaultDoc() stateDoc {
	return stateDoc{
		Name:            agent.DefaultName,
		SavedFSMState:   int(domain.PhaseNew),
		DefaultTradePct: agent.DefaultTradeFraction,
		TargetYieldPct:  agent.DefaultTargetYield,
		ExchFeeBase:     agent.DefaultFeeBase,
		ExchFeePct:      agent.DefaultFeePct,
	}
}

func encodeState(s *agent.State) stateDoc {
	doc := stateDoc{
		Name:            s.Name,
		Genetics:        s.Genome.Serialize(true),
		GeneticsShort:   s.Genome.Serialize(false),
		Symbol:          s.Symbol,
		SavedFSMState:   int(s.Phase),
		Budget:          s.Budget,
		DefaultTradePct: s.TradeFraction,
		TargetYieldPct:  s.TargetYield,
		TotalProfit:     s.TotalProfit,
		ExchFeeBase:     s.FeeBase,
		ExchFeePct:      s.FeePct,
		SymbolBase:      s.Base(),
		SymbolQuote:     s.Quote(),
		Trades:          make([]tradeDoc, 0, len(s.Trades)),
	}

	for _, t := range s.Trades {
		doc.Trades = append(doc.Trades, tradeDoc{
			Symbol:   t.Symbol,
			Type:     int(t.Side),
			Time:     t.CreatedAt.UTC().Format(tradeTimeLayout),
			Price:    t.Price,
			Gross:    t.Gross,
			Fees:     t.Fees,
			Exchange: t.Exchange,
			State:    int(t.State),
			Quantity: t.Quantity,
			Limit:    t.Limit,
			Stop:     t.Stop,
			Target:   t.Target,
			OrderID:  t.ExchangeOrderID,
			Notes:    t.Notes,
		})
	}
	return doc
}

// decodeState builds an agent from doc. A genetics string that no longer
// parses is returned as is: it means an incompatible catalog, not a damaged file.
func decodeState(catalog *genome.Catalog, key string, doc stateDoc) (*agent.State, error) {
	g, err := genome.Parse(catalog, doc.Genetics)
	if err != nil {
		return nil, fmt.Errorf("state %s genetics: %w", key, err)
	}

	phase := domain.Phase(doc.SavedFSMState)
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %s has unknown phase %d", storage.ErrCorruptState, key, doc.SavedFSMState)
	}

	symbol := doc.Symbol
	if symbol == "" {
		symbol, _, _ = strings.Cut(key, "-")
	}

	s := &agent.State{
		Name:          doc.Name,
		Symbol:        symbol,
		Genome:        g,
		Budget:        doc.Budget,
		TradeFraction: doc.DefaultTradePct,
		TargetYield:   doc.TargetYieldPct,
		TotalProfit:   doc.TotalProfit,
		Phase:         phase,
		FeeBase:       doc.ExchFeeBase,
		FeePct:        doc.ExchFeePct,
	}

	for i, td := range doc.Trades {
		created, err := time.ParseInLocation(tradeTimeLayout, td.Time, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: %s trade %d time %q", storage.ErrCorruptState, key, i, td.Time)
		}
		if side := domain.Side(td.Type); !side.Valid() {
			return nil, fmt.Errorf("%w: %s trade %d has unknown type %d", storage.ErrCorruptState, key, i, td.Type)
		}
		if state := domain.TradeState(td.State); !state.Valid() {
			return nil, fmt.Errorf("%w: %s trade %d has unknown state %d", storage.ErrCorruptState, key, i, td.State)
		}
		s.AddTrade(&domain.Trade{
			Symbol:          td.Symbol,
			Side:            domain.Side(td.Type),
			CreatedAt:       created,
			Price:           td.Price,
			Quantity:        td.Quantity,
			Gross:           td.Gross,
			Fees:            td.Fees,
			State:           domain.TradeState(td.State),
			Stop:            td.Stop,
			Limit:           td.Limit,
			Target:          td.Target,
			ExchangeOrderID: td.OrderID,
			Exchange:        td.Exchange,
			Notes:           td.Notes,
		})
	}

	return s, nil
}
