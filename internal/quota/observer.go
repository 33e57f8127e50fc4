package quota

import (
	"context"

	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Observer applies the usage deltas of every committed change inside the
// mutating transaction.
type Observer struct {
	engine *Engine
}

func NewObserver(engine *Engine) *Observer {
	return &Observer{engine: engine}
}

func (o *Observer) Observe(ctx context.Context, q store.Querier, c store.Change) error {
	if len(c.Deltas) == 0 || c.Scope.ID == "" {
		return nil
	}
	return o.engine.AddUsage(ctx, q, c.Scope, c.Deltas)
}
