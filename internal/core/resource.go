package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// ProvisionRequest describes a resource to create.
type ProvisionRequest struct {
	Type             string
	LinkID           string
	Name             string
	Description      string
	Tags             []string
	FlavorName       string
	ImageName        string
	KeyFingerprint   string
	UserData         string
	SystemVolumeSize int
	DataVolumeSize   int
}

// ResourceService validates resource requests, records the scheduled
// state and starts the workflows that carry them out.
type ResourceService struct {
	store   Store
	gate    QuotaGate
	starter Starter
	logger  zerolog.Logger
}

func NewResourceService(st Store, gate QuotaGate, starter Starter, logger zerolog.Logger) *ResourceService {
	return &ResourceService{
		store:   st,
		gate:    gate,
		starter: starter,
		logger:  logger.With().Str("component", "resource-service").Logger(),
	}
}

// Provision inserts a resource in PROVISIONING_SCHEDULED, charging its
// quota in the same transaction, and starts its provisioning.
func (s *ResourceService) Provision(ctx context.Context, req ProvisionRequest) (*model.Resource, error) {
	lc, err := s.store.GetLinkContext(ctx, req.LinkID)
	if err != nil {
		return nil, err
	}
	if lc.Link.State != model.StateInSync {
		return nil, &model.StateConflictError{
			Entity: model.EntityLink, ID: lc.Link.ID, State: lc.Link.State, Transition: "provision",
		}
	}

	customer, err := s.store.GetCustomer(ctx, lc.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.InDebt() {
		return nil, invalid("customer %s is in debt", customer.ID)
	}

	r := &model.Resource{
		ID:               platform.NewID(),
		LinkID:           lc.Link.ID,
		Type:             req.Type,
		Name:             req.Name,
		Description:      req.Description,
		Tags:             req.Tags,
		State:            model.StateProvisioningScheduled,
		ImageName:        req.ImageName,
		UserData:         req.UserData,
		SystemVolumeSize: req.SystemVolumeSize,
		DataVolumeSize:   req.DataVolumeSize,
	}

	if req.FlavorName != "" {
		flavor, err := s.store.GetFlavorByName(ctx, lc.Settings.ID, req.FlavorName)
		if err != nil {
			return nil, invalid("flavor %q is not offered by settings %s", req.FlavorName, lc.Settings.ID)
		}
		r.FlavorName = flavor.Name
		r.Cores = flavor.Cores
		r.RAM = flavor.RAM
		r.Disk = flavor.Disk
	} else if req.Type == model.ResourceVM {
		return nil, invalid("a vm needs a flavor")
	}

	if req.KeyFingerprint != "" {
		key, err := s.store.GetSSHKeyByFingerprint(ctx, req.KeyFingerprint)
		if err != nil {
			return nil, err
		}
		r.KeyName = key.Name
		r.KeyFingerprint = key.Fingerprint
	}

	scope := model.Scope{Type: model.ScopeLink, ID: r.LinkID}
	err = s.gate.Admit(ctx, scope, r.QuotaUsage(), func(tx *store.Tx) error {
		return tx.InsertResource(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	if err := startFor(ctx, s.starter, "ProvisionResourceWorkflow", r.ID, activity.ProvisionResourceParams{ResourceID: r.ID}); err != nil {
		s.failStart(ctx, r.ID, err)
		return nil, err
	}

	s.logger.Info().Str("resource_id", r.ID).Str("link_id", r.LinkID).Str("type", r.Type).Msg("provision scheduled")
	return r, nil
}

// failStart errs a resource whose workflow never started so it does not
// sit in a scheduled state forever.
func (s *ResourceService) failStart(ctx context.Context, id string, cause error) {
	if err := s.store.SetErred(ctx, model.EntityResource, id, cause.Error()); err != nil {
		s.logger.Error().Err(err).Str("resource_id", id).Msg("failed to err resource after start failure")
	}
}

func (s *ResourceService) Get(ctx context.Context, id string) (*model.Resource, error) {
	return s.store.GetResource(ctx, id)
}

// schedule applies a schedule_* transition and starts its workflow.
func (s *ResourceService) schedule(ctx context.Context, id, transition, workflowName string, arg any) error {
	if _, err := s.store.Transition(ctx, model.EntityResource, id, transition); err != nil {
		return err
	}
	if err := startFor(ctx, s.starter, workflowName, id, arg); err != nil {
		s.failStart(ctx, id, err)
		return err
	}
	return nil
}

func (s *ResourceService) Start(ctx context.Context, id string) error {
	return s.schedule(ctx, id, fsm.ScheduleStarting, "StartResourceWorkflow", id)
}

func (s *ResourceService) Stop(ctx context.Context, id string) error {
	return s.schedule(ctx, id, fsm.ScheduleStopping, "StopResourceWorkflow", id)
}

func (s *ResourceService) Restart(ctx context.Context, id string) error {
	return s.schedule(ctx, id, fsm.ScheduleRestarting, "RestartResourceWorkflow", id)
}

// Destroy schedules the deletion of a resource. Its quota is released when
// the row is removed.
func (s *ResourceService) Destroy(ctx context.Context, id string) error {
	return s.schedule(ctx, id, fsm.ScheduleDeletion, "DestroyResourceWorkflow", id)
}

// Resize moves a stopped resource to another flavor. Growth is validated
// against the link quota in the transaction that schedules it.
func (s *ResourceService) Resize(ctx context.Context, id, flavorName string) error {
	rc, err := s.store.GetResourceContext(ctx, id)
	if err != nil {
		return err
	}
	flavor, err := s.store.GetFlavorByName(ctx, rc.Settings.ID, flavorName)
	if err != nil {
		return invalid("flavor %q is not offered by settings %s", flavorName, rc.Settings.ID)
	}

	deltas := map[string]float64{}
	if d := flavor.Cores - rc.Resource.Cores; d > 0 {
		deltas[model.QuotaVCPU] = float64(d)
	}
	if d := flavor.RAM - rc.Resource.RAM; d > 0 {
		deltas[model.QuotaRAM] = float64(d)
	}

	err = s.gate.Admit(ctx, model.Scope{Type: model.ScopeLink, ID: rc.Link.ID}, deltas, func(tx *store.Tx) error {
		_, err := tx.Transition(ctx, model.EntityResource, id, fsm.ScheduleResizing)
		return err
	})
	if err != nil {
		return err
	}
	params := activity.UpdateFlavorParams{ResourceID: id, FlavorName: flavor.Name}
	if err := startFor(ctx, s.starter, "ResizeResourceWorkflow", id, params); err != nil {
		s.failStart(ctx, id, err)
		return err
	}
	return nil
}

// ExtendDisk grows the data volume of a stopped resource to newSize MiB.
func (s *ResourceService) ExtendDisk(ctx context.Context, id string, newSize int) error {
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if newSize <= r.DataVolumeSize {
		return invalid("new size %d must be larger than the current %d", newSize, r.DataVolumeSize)
	}

	deltas := map[string]float64{model.QuotaStorage: float64(newSize - r.DataVolumeSize)}
	err = s.gate.Admit(ctx, model.Scope{Type: model.ScopeLink, ID: r.LinkID}, deltas, func(tx *store.Tx) error {
		_, err := tx.Transition(ctx, model.EntityResource, id, fsm.ScheduleResizing)
		return err
	})
	if err != nil {
		return err
	}
	params := activity.ExtendDiskParams{ResourceID: id, NewSize: newSize}
	if err := startFor(ctx, s.starter, "ExtendDiskWorkflow", id, params); err != nil {
		s.failStart(ctx, id, err)
		return err
	}
	return nil
}

// Recover starts recovery of an ERRED resource.
func (s *ResourceService) Recover(ctx context.Context, id string) error {
	return recoverEntity(ctx, s.store, s.starter, model.EntityResource, id)
}

var recoverWorkflows = map[string]string{
	model.EntityResource: "RecoverResourceWorkflow",
	model.EntityLink:     "RecoverLinkWorkflow",
	model.EntitySettings: "RecoverSettingsWorkflow",
}

// recoverEntity starts the recovery workflow of an entity in ERRED.
func recoverEntity(ctx context.Context, st Store, starter Starter, entity, id string) error {
	wf, ok := recoverWorkflows[entity]
	if !ok {
		return invalid("entity %q cannot be recovered", entity)
	}
	state, _, err := st.State(ctx, entity, id)
	if err != nil {
		return err
	}
	if state != model.StateErred {
		return &model.StateConflictError{Entity: entity, ID: id, State: state, Transition: "recover"}
	}
	return startFor(ctx, starter, wf, id, id)
}

// RecoverEntity starts recovery of any recoverable entity type.
func (s *ResourceService) RecoverEntity(ctx context.Context, entity, id string) error {
	if entity == model.EntityResource {
		return s.Recover(ctx, id)
	}
	if _, ok := recoverWorkflows[entity]; !ok {
		return fmt.Errorf("%w: entity %q cannot be recovered", ErrInvalid, entity)
	}
	return recoverEntity(ctx, s.store, s.starter, entity, id)
}
