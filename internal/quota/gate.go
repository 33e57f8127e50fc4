package quota

import (
	"context"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Gate runs quota checks in a transaction of their own, optionally
// together with the write they guard.
type Gate struct {
	store  *store.Store
	engine *Engine
}

func NewGate(st *store.Store, engine *Engine) *Gate {
	return &Gate{store: st, engine: engine}
}

// Admit validates deltas on scope and its ancestors, then runs fn in the
// same transaction. The quota rows stay locked until fn returns, so two
// concurrent admissions cannot both pass the check. fn may be nil.
func (g *Gate) Admit(ctx context.Context, scope model.Scope, deltas map[string]float64, fn func(tx *store.Tx) error) error {
	return g.store.InTx(ctx, func(tx *store.Tx) error {
		if err := g.engine.ValidateChange(ctx, tx, scope, deltas); err != nil {
			return err
		}
		if fn == nil {
			return nil
		}
		return fn(tx)
	})
}

// Init creates the quota rows of scope.
func (g *Gate) Init(ctx context.Context, scope model.Scope) error {
	return g.engine.Init(ctx, g.store.DB(), scope)
}

// Get returns the quotas of scope.
func (g *Gate) Get(ctx context.Context, scope model.Scope) ([]model.Quota, error) {
	return g.engine.Get(ctx, g.store.DB(), scope)
}

// SetLimit changes one limit on behalf of origin.
func (g *Gate) SetLimit(ctx context.Context, scope model.Scope, name string, limit float64, origin Origin) error {
	return g.store.InTx(ctx, func(tx *store.Tx) error {
		return g.engine.SetLimit(ctx, tx, scope, name, limit, origin)
	})
}

// ListOverThreshold returns the quotas whose usage ratio reached threshold.
func (g *Gate) ListOverThreshold(ctx context.Context, threshold float64) ([]model.Quota, error) {
	return g.engine.ListOverThreshold(ctx, g.store.DB(), threshold)
}

// Recalculate repairs the derived usage of scope.
func (g *Gate) Recalculate(ctx context.Context, scope model.Scope) error {
	return g.store.InTx(ctx, func(tx *store.Tx) error {
		return g.engine.Recalculate(ctx, tx, scope)
	})
}
