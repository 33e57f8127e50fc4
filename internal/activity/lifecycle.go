package activity

import (
	"context"
	"fmt"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Lifecycle contains the state-machine activities shared by every workflow.
type Lifecycle struct {
	store Store
}

func NewLifecycle(st Store) *Lifecycle {
	return &Lifecycle{store: st}
}

// TransitionParams holds the parameters for Transition.
type TransitionParams struct {
	Entity     string `json:"entity"`
	ID         string `json:"id"`
	Transition string `json:"transition"`
	Message    string `json:"message,omitempty"`
}

// Transition applies one named transition and returns the new state.
func (a *Lifecycle) Transition(ctx context.Context, params TransitionParams) (model.State, error) {
	var opts []store.TransitionOption
	if params.Message != "" {
		opts = append(opts, store.WithMessage(params.Message))
	}
	return a.store.Transition(ctx, params.Entity, params.ID, params.Transition, opts...)
}

// RecoverResource moves an ERRED resource to the stable state its
// provider reports and charges back the quota it released when it was
// marked missing.
func (a *Lifecycle) RecoverResource(ctx context.Context, params TransitionParams) (model.State, error) {
	if params.Entity != model.EntityResource {
		return "", fmt.Errorf("entity %s cannot be recovered as a resource", params.Entity)
	}
	return a.store.RecoverResource(ctx, params.ID, params.Transition)
}

// SetErredParams holds the parameters for SetErred.
type SetErredParams struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SetErred is the failure continuation of every workflow.
func (a *Lifecycle) SetErred(ctx context.Context, params SetErredParams) error {
	return a.store.SetErred(ctx, params.Entity, params.ID, params.Message)
}

// DeleteEntity removes a row once its provider-side counterpart is gone.
func (a *Lifecycle) DeleteEntity(ctx context.Context, ref EntityRef) error {
	switch ref.Entity {
	case model.EntityResource:
		return a.store.DeleteResource(ctx, ref.ID)
	case model.EntityLink:
		return a.store.DeleteLink(ctx, ref.ID)
	case model.EntitySecurityGroup:
		return a.store.DeleteSecurityGroup(ctx, ref.ID)
	}
	return fmt.Errorf("entity %s cannot be deleted", ref.Entity)
}

// syncPath lists the transitions that bring a sync-machine entity from
// its current state to CREATING or SYNCING.
var syncPath = map[model.State][]string{
	model.StateNew:               {fsm.ScheduleCreating, fsm.BeginCreating},
	model.StateCreationScheduled: {fsm.BeginCreating},
	model.StateInSync:            {fsm.ScheduleSyncing, fsm.BeginSyncing},
	model.StateSyncScheduled:     {fsm.BeginSyncing},
	model.StateCreating:          nil,
	model.StateSyncing:           nil,
}

// BeginSync moves a settings, link or security group entity into its
// working state. It is idempotent so a retried activity does not trip
// over its own earlier attempt.
func (a *Lifecycle) BeginSync(ctx context.Context, ref EntityRef) (model.State, error) {
	current, _, err := a.store.State(ctx, ref.Entity, ref.ID)
	if err != nil {
		return "", err
	}
	path, ok := syncPath[current]
	if !ok {
		return "", &model.StateConflictError{Entity: ref.Entity, ID: ref.ID, State: current, Transition: fsm.BeginSyncing}
	}
	for _, name := range path {
		if current, err = a.store.Transition(ctx, ref.Entity, ref.ID, name); err != nil {
			return "", err
		}
	}
	return current, nil
}

// GetResourceContext loads a resource with its link and settings.
func (a *Lifecycle) GetResourceContext(ctx context.Context, id string) (*model.ResourceContext, error) {
	return a.store.GetResourceContext(ctx, id)
}

// GetLinkContext loads a link with its settings.
func (a *Lifecycle) GetLinkContext(ctx context.Context, id string) (*model.LinkContext, error) {
	return a.store.GetLinkContext(ctx, id)
}

// GetBackup retrieves a backup by its ID.
func (a *Lifecycle) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	return a.store.GetBackup(ctx, id)
}

// GetEntityState returns the current state of an entity.
func (a *Lifecycle) GetEntityState(ctx context.Context, ref EntityRef) (model.State, error) {
	st, _, err := a.store.State(ctx, ref.Entity, ref.ID)
	return st, err
}
