package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/metrics"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/quota"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Result counts what an apply changed.
type Result struct {
	Erred   int `json:"erred"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

func (r *Result) add(o Result) {
	r.Erred += o.Erred
	r.Created += o.Created
	r.Updated += o.Updated
	r.Deleted += o.Deleted
	r.Skipped += o.Skipped
}

// Applier writes plans through the store. Every entity gets its own
// transaction so a conflict on one does not hold back the rest.
type Applier struct {
	store  *store.Store
	quotas *quota.Engine
	logger zerolog.Logger
}

func NewApplier(st *store.Store, quotas *quota.Engine, logger zerolog.Logger) *Applier {
	return &Applier{store: st, quotas: quotas, logger: logger.With().Str("component", "reconciler").Logger()}
}

// skippable reports whether err only means a worker touched the entity
// between planning and applying. The next run picks it up again.
func skippable(err error) bool {
	return errors.Is(err, model.ErrConcurrentUpdate) ||
		errors.Is(err, model.ErrStateConflict) ||
		errors.Is(err, model.ErrNotFound)
}

func (a *Applier) record(kind, action string, err error, res *Result, errs *multierror.Error) *multierror.Error {
	switch {
	case err == nil:
		metrics.ReconcileActionsTotal.WithLabelValues(kind, action).Inc()
		switch action {
		case "erred":
			res.Erred++
		case "created":
			res.Created++
		case "updated":
			res.Updated++
		case "deleted":
			res.Deleted++
		}
	case skippable(err):
		metrics.ReconcileActionsTotal.WithLabelValues(kind, "skipped").Inc()
		res.Skipped++
		a.logger.Debug().Err(err).Str("kind", kind).Str("action", action).Msg("entity changed during reconcile, skipping")
	default:
		errs = multierror.Append(errs, err)
	}
	return errs
}

// ApplyInstances applies a resource plan.
func (a *Applier) ApplyInstances(ctx context.Context, plan InstancePlan) (Result, error) {
	var (
		res  Result
		errs *multierror.Error
	)
	for _, r := range plan.Err {
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.MarkDisappeared(ctx, r, DisappearedMessage)
		})
		if err == nil {
			a.logger.Warn().Str("resource_id", r.ID).Str("backend_id", r.BackendID).Msg("resource disappeared at provider")
		}
		errs = a.record(model.EntityResource, "erred", err, &res, errs)
	}
	for i := range plan.Create {
		r := plan.Create[i]
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.InsertResource(ctx, &r)
		})
		errs = a.record(model.EntityResource, "created", err, &res, errs)
	}
	for _, u := range plan.Update {
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.UpdateFromRemote(ctx, u.Local, u.Update)
		})
		errs = a.record(model.EntityResource, "updated", err, &res, errs)
	}
	return res, errs.ErrorOrNil()
}

// ApplySecurityGroups applies a security group plan.
func (a *Applier) ApplySecurityGroups(ctx context.Context, plan SecurityGroupPlan) (Result, error) {
	var (
		res  Result
		errs *multierror.Error
	)
	for _, g := range plan.Err {
		_, err := a.store.Transition(ctx, model.EntitySecurityGroup, g.ID, fsm.SetErred,
			store.WithMessage(DisappearedMessage), store.WithExpectedVersion(g.Version))
		errs = a.record(model.EntitySecurityGroup, "erred", err, &res, errs)
	}
	for i := range plan.Create {
		g := plan.Create[i]
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.InsertSecurityGroup(ctx, &g)
		})
		errs = a.record(model.EntitySecurityGroup, "created", err, &res, errs)
	}
	for _, u := range plan.Update {
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.UpdateSecurityGroupFromRemote(ctx, u.Local, u.Name, u.Rules.Rules())
		})
		errs = a.record(model.EntitySecurityGroup, "updated", err, &res, errs)
	}
	return res, errs.ErrorOrNil()
}

// ApplyFloatingIPs applies a floating IP plan.
func (a *Applier) ApplyFloatingIPs(ctx context.Context, plan FloatingIPPlan) (Result, error) {
	var (
		res  Result
		errs *multierror.Error
	)
	for _, ip := range plan.Delete {
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteFloatingIP(ctx, ip)
		})
		errs = a.record(model.EntityFloatingIP, "deleted", err, &res, errs)
	}
	for _, ip := range plan.Upsert {
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			return tx.UpsertFloatingIP(ctx, ip)
		})
		errs = a.record(model.EntityFloatingIP, "updated", err, &res, errs)
	}
	return res, errs.ErrorOrNil()
}

// ApplyQuotas stores backend-reported limits on the link. Usage is only
// overwritten for inert fields; counters are maintained locally.
func (a *Applier) ApplyQuotas(ctx context.Context, linkID string, reports []backend.QuotaReport) error {
	scope := model.Scope{Type: model.ScopeLink, ID: linkID}
	reg := a.quotas.Registry()
	return a.store.InTx(ctx, func(tx *store.Tx) error {
		for _, r := range reports {
			f, ok := reg.Field(scope.Type, r.Name)
			if !ok || !f.IsBackend {
				continue
			}
			if err := a.quotas.SetLimit(ctx, tx, scope, r.Name, r.Limit, quota.OriginBackend); err != nil {
				return err
			}
			if f.Kind == quota.Inert {
				if err := a.quotas.SetUsage(ctx, tx, scope, r.Name, r.Usage); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ApplySnapshot plans and applies every supported part of a link snapshot.
func (a *Applier) ApplySnapshot(ctx context.Context, link model.ServiceProjectLink, snap *LinkSnapshot) (Result, error) {
	var (
		total Result
		errs  *multierror.Error
	)
	if snap.InstancesSupported {
		local, err := a.store.ListResourcesByLink(ctx, link.ID)
		if err != nil {
			return total, err
		}
		res, err := a.ApplyInstances(ctx, PlanInstances(link.ID, local, snap.Instances))
		total.add(res)
		errs = multierror.Append(errs, err)
	}
	if snap.SecurityGroupsSupported {
		local, err := a.store.ListSecurityGroupsByLink(ctx, link.ID)
		if err != nil {
			return total, err
		}
		res, err := a.ApplySecurityGroups(ctx, PlanSecurityGroups(link.ID, local, snap.SecurityGroups))
		total.add(res)
		errs = multierror.Append(errs, err)
	}
	if snap.FloatingIPsSupported {
		local, err := a.store.ListFloatingIPsByLink(ctx, link.ID)
		if err != nil {
			return total, err
		}
		res, err := a.ApplyFloatingIPs(ctx, PlanFloatingIPs(link.ID, local, snap.FloatingIPs))
		total.add(res)
		errs = multierror.Append(errs, err)
	}
	if len(snap.Quotas) > 0 {
		errs = multierror.Append(errs, a.ApplyQuotas(ctx, link.ID, snap.Quotas))
	}

	a.logger.Info().Str("link_id", link.ID).Int("erred", total.Erred).Int("created", total.Created).
		Int("updated", total.Updated).Int("deleted", total.Deleted).Int("skipped", total.Skipped).
		Msg("link reconciled")
	if err := errs.ErrorOrNil(); err != nil {
		return total, fmt.Errorf("reconcile link %s: %w", link.ID, err)
	}
	return total, nil
}

// ApplyProperties replaces the catalogue of a settings entity.
func (a *Applier) ApplyProperties(ctx context.Context, settingsID string, p store.Properties) error {
	if p.Flavors == nil && p.Images == nil {
		return nil
	}
	return a.store.ReplaceProperties(ctx, settingsID, p)
}
