// Package live runs an agent against a live exchange feed.
package live

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stonkminer/internal/agent"
	"stonkminer/internal/genome"
	"stonkminer/internal/storage"
)

// LoadAgent restores the agent saved under symbol and name, or creates a
// fresh one from genetics. A corrupt state file is discarded with a warning.
// The saved genome wins over genetics when both exist.
func LoadAgent(ctx context.Context, states storage.AgentStateStore, catalog *genome.Catalog, name, symbol, genetics string, logger *zap.Logger) (*agent.State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		name = agent.DefaultName
	}
	key := agent.StateKey(symbol, name)

	st, err := states.Load(ctx, key)
	switch {
	case err == nil:
		logger.Info("restored agent state",
			zap.String("agent", key),
			zap.Stringer("phase", st.Phase),
			zap.Int("trades", len(st.Trades)),
			zap.Float64("total_profit", st.TotalProfit))
		if genetics != "" && genetics != st.Genome.Serialize(false) && genetics != st.Genome.Serialize(true) {
			logger.Warn("ignoring genetics argument, saved genome is kept",
				zap.String("agent", key),
				zap.String("saved", st.Genome.Serialize(false)),
				zap.String("argument", genetics))
		}
		return st, nil

	case errors.Is(err, storage.ErrNotFound):
		logger.Info("no saved state, starting fresh", zap.String("agent", key))

	case errors.Is(err, storage.ErrCorruptState):
		logger.Error("SAVED STATE IS UNREADABLE AND WILL BE OVERWRITTEN, trade history is lost",
			zap.String("agent", key), zap.Error(err))

	default:
		return nil, fmt.Errorf("load agent %s: %w", key, err)
	}

	return agent.NewState(catalog, name, symbol, genetics)
}
