package activity

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/reconcile"
)

// SnapshotApplier writes a pulled link snapshot. *reconcile.Applier
// satisfies it.
type SnapshotApplier interface {
	ApplySnapshot(ctx context.Context, link model.ServiceProjectLink, snap *reconcile.LinkSnapshot) (reconcile.Result, error)
}

// Reconcile contains the periodic pull activities.
type Reconcile struct {
	store    Store
	registry *backend.Registry
	applier  SnapshotApplier
	penalty  *reconcile.Penalty
	logger   zerolog.Logger
}

// NewReconcile creates a new Reconcile activity struct.
func NewReconcile(st Store, registry *backend.Registry, applier SnapshotApplier, penalty *reconcile.Penalty, logger zerolog.Logger) *Reconcile {
	return &Reconcile{
		store:    st,
		registry: registry,
		applier:  applier,
		penalty:  penalty,
		logger:   logger.With().Str("component", "reconcile-activities").Logger(),
	}
}

// admit drops the entities that are still serving a penalty. A Redis
// failure lets the entity through.
func (a *Reconcile) admit(ctx context.Context, entity string, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := a.penalty.Allow(ctx, reconcile.PenaltyKey(entity, id))
		if err != nil {
			a.logger.Warn().Err(err).Str("entity", entity).Str("id", id).Msg("penalty check failed")
			ok = true
		}
		if ok {
			out = append(out, id)
		} else {
			a.logger.Debug().Str("entity", entity).Str("id", id).Msg("skipping penalized entity")
		}
	}
	return out
}

// ListLinksForReconcile returns the in-sync links due for a pull.
func (a *Reconcile) ListLinksForReconcile(ctx context.Context) ([]string, error) {
	ids, err := a.store.ListLinkIDsInStates(ctx, model.StateInSync)
	if err != nil {
		return nil, err
	}
	return a.admit(ctx, model.EntityLink, ids), nil
}

// ListSettingsForReconcile returns the in-sync settings due for a pull.
func (a *Reconcile) ListSettingsForReconcile(ctx context.Context) ([]string, error) {
	settings, err := a.store.ListSettingsInStates(ctx, model.StateInSync)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(settings))
	for _, s := range settings {
		ids = append(ids, s.ID)
	}
	return a.admit(ctx, model.EntitySettings, ids), nil
}

// settle updates the penalty of an entity after a pull.
func (a *Reconcile) settle(ctx context.Context, entity, id string, pullErr error) {
	key := reconcile.PenaltyKey(entity, id)
	if pullErr == nil {
		if err := a.penalty.Succeeded(ctx, key); err != nil {
			a.logger.Warn().Err(err).Str("key", key).Msg("failed to clear penalty")
		}
		return
	}
	skips, err := a.penalty.Failed(ctx, key)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("failed to raise penalty")
		return
	}
	a.logger.Warn().Err(pullErr).Str("entity", entity).Str("id", id).Int("skip_runs", skips).Msg("pull failed, penalized")
}

// PullLink pulls everything the provider reports about a link and
// applies it locally.
func (a *Reconcile) PullLink(ctx context.Context, linkID string) (reconcile.Result, error) {
	lc, err := a.store.GetLinkContext(ctx, linkID)
	if err != nil {
		return reconcile.Result{}, err
	}
	be, err := a.registry.For(lc.Settings, lc.Link.TenantID)
	if err != nil {
		return reconcile.Result{}, err
	}
	snap, err := reconcile.PullLink(ctx, be, lc.Link)
	a.settle(ctx, model.EntityLink, linkID, err)
	if err != nil {
		return reconcile.Result{}, err
	}
	return a.applier.ApplySnapshot(ctx, lc.Link, snap)
}

// ReconcileSettings checks provider credentials and refreshes the
// catalogue. Settings that fail the check are marked erred.
func (a *Reconcile) ReconcileSettings(ctx context.Context, settingsID string) error {
	settings, err := a.store.GetSettings(ctx, settingsID)
	if err != nil {
		return err
	}
	be, err := a.registry.For(*settings, "")
	if err != nil {
		return err
	}

	err = be.Sync(ctx)
	if backend.IsNotImplemented(err) {
		err = nil
	}
	var (
		flavors []model.Flavor
		images  []model.Image
	)
	if err == nil {
		flavors, images, err = reconcile.PullProperties(ctx, be)
	}
	a.settle(ctx, model.EntitySettings, settingsID, err)
	if err != nil {
		if serr := a.store.SetErred(ctx, model.EntitySettings, settingsID, err.Error()); serr != nil {
			a.logger.Error().Err(serr).Str("settings_id", settingsID).Msg("failed to mark settings erred")
		}
		return model.NewBackendError("sync", err)
	}
	if flavors == nil && images == nil {
		return nil
	}
	return a.store.ReplaceProperties(ctx, settingsID, reconcile.PlanProperties(settingsID, flavors, images))
}
