package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stonkminer/internal/domain"
)

// changeState is the only place the phase is written. Persisting the state
// is always its last step.
func (e *Engine) changeState(ctx context.Context, p domain.Phase) error {
	from := e.state.Phase
	e.state.Phase = p

	e.logger.Info("phase change", zap.Stringer("from", from), zap.Stringer("to", p))
	e.metrics.RecordPhase(e.state.Key(), p.String(), int(p))

	return e.persist(ctx)
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.states.Save(ctx, e.state); err != nil {
		e.metrics.RecordStateSaveError(e.state.Key())
		return fmt.Errorf("persist state %s: %w", e.state.Key(), err)
	}
	return nil
}
