package core

import (
	"context"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// LinkService pushes service project links and service settings to their
// provider.
type LinkService struct {
	store   Store
	starter Starter
}

func NewLinkService(st Store, starter Starter) *LinkService {
	return &LinkService{store: st, starter: starter}
}

var syncWorkflows = map[string]string{
	model.EntityLink:     "SyncLinkWorkflow",
	model.EntitySettings: "SyncSettingsWorkflow",
}

// schedule picks schedule_creating for a NEW entity and schedule_syncing
// otherwise, then starts the sync workflow.
func (s *LinkService) schedule(ctx context.Context, entity, id string) error {
	state, _, err := s.store.State(ctx, entity, id)
	if err != nil {
		return err
	}
	transition := fsm.ScheduleSyncing
	if state == model.StateNew {
		transition = fsm.ScheduleCreating
	}
	if _, err := s.store.Transition(ctx, entity, id, transition); err != nil {
		return err
	}
	if err := startFor(ctx, s.starter, syncWorkflows[entity], id, id); err != nil {
		if serr := s.store.SetErred(ctx, entity, id, err.Error()); serr != nil {
			return serr
		}
		return err
	}
	return nil
}

// Sync creates or refreshes the provider-side tenant of a link.
func (s *LinkService) Sync(ctx context.Context, id string) error {
	return s.schedule(ctx, model.EntityLink, id)
}

// SyncSettings validates settings credentials and pulls their catalogue.
func (s *LinkService) SyncSettings(ctx context.Context, id string) error {
	return s.schedule(ctx, model.EntitySettings, id)
}

// Recover retries an ERRED link.
func (s *LinkService) Recover(ctx context.Context, id string) error {
	return recoverEntity(ctx, s.store, s.starter, model.EntityLink, id)
}

// RecoverSettings retries ERRED service settings.
func (s *LinkService) RecoverSettings(ctx context.Context, id string) error {
	return recoverEntity(ctx, s.store, s.starter, model.EntitySettings, id)
}

func (s *LinkService) Get(ctx context.Context, id string) (*model.LinkContext, error) {
	return s.store.GetLinkContext(ctx, id)
}
