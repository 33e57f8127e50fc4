package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

type BackupService struct {
	store   Store
	starter Starter
	logger  zerolog.Logger
}

func NewBackupService(st Store, starter Starter, logger zerolog.Logger) *BackupService {
	return &BackupService{
		store:   st,
		starter: starter,
		logger:  logger.With().Str("component", "backup-service").Logger(),
	}
}

// BackupRequest asks for a manual backup of a resource.
type BackupRequest struct {
	ResourceID    string
	Description   string
	RetentionDays int
}

// Create records a BACKING_UP backup of a resource in a stable state and
// starts CreateBackupWorkflow.
func (s *BackupService) Create(ctx context.Context, req BackupRequest) (*model.Backup, error) {
	r, err := s.store.GetResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !fsm.Resource.IsStable(r.State) {
		return nil, &model.StateConflictError{
			Entity: model.EntityResource, ID: r.ID, State: r.State, Transition: "backup",
		}
	}

	b := &model.Backup{
		ID:          platform.NewID(),
		ResourceID:  r.ID,
		Description: req.Description,
		State:       model.StateBackingUp,
	}
	if req.RetentionDays > 0 {
		kept := time.Now().UTC().AddDate(0, 0, req.RetentionDays)
		b.KeptUntil = &kept
	}
	if err := s.store.CreateBackup(ctx, b); err != nil {
		return nil, err
	}

	if err := startFor(ctx, s.starter, "CreateBackupWorkflow", b.ID, b.ID); err != nil {
		s.failStart(ctx, b.ID, err)
		return nil, err
	}
	return b, nil
}

func (s *BackupService) Get(ctx context.Context, id string) (*model.Backup, error) {
	return s.store.GetBackup(ctx, id)
}

// RestoreRequest names the backup to restore and optional overrides of
// the new resource.
type RestoreRequest struct {
	BackupID   string
	Name       string
	FlavorName string
}

// Restore starts restoring a READY backup into a new resource.
func (s *BackupService) Restore(ctx context.Context, req RestoreRequest) error {
	b, err := s.store.GetBackup(ctx, req.BackupID)
	if err != nil {
		return err
	}
	if b.State != model.StateReady {
		return &model.StateConflictError{
			Entity: model.EntityBackup, ID: b.ID, State: b.State, Transition: fsm.StartingRestoration,
		}
	}
	if _, err := backup.RestoreInput(b.Metadata, backup.RestoreOverrides{Name: req.Name}); err != nil {
		return invalid("backup %s cannot be restored: %v", b.ID, err)
	}
	if req.FlavorName != "" {
		lc, err := s.store.GetLinkContext(ctx, b.Metadata.LinkID)
		if err != nil {
			return err
		}
		if _, err := s.store.GetFlavorByName(ctx, lc.Settings.ID, req.FlavorName); err != nil {
			return invalid("flavor %q is not offered by settings %s", req.FlavorName, lc.Settings.ID)
		}
	}

	params := activity.RestoreBackupParams{BackupID: b.ID, Name: req.Name, FlavorName: req.FlavorName}
	return startFor(ctx, s.starter, "RestoreBackupWorkflow", b.ID, params)
}

// Delete moves a backup to DELETING and starts removing its snapshots.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Transition(ctx, model.EntityBackup, id, fsm.StartingDeletion); err != nil {
		return err
	}
	if err := startFor(ctx, s.starter, "DeleteBackupWorkflow", id, id); err != nil {
		s.failStart(ctx, id, err)
		return err
	}
	return nil
}

func (s *BackupService) failStart(ctx context.Context, id string, cause error) {
	if err := s.store.SetErred(ctx, model.EntityBackup, id, cause.Error()); err != nil {
		s.logger.Error().Err(err).Str("backup_id", id).Msg("failed to err backup after start failure")
	}
}

// BackupScheduleService manages periodic backup schedules. The schedules
// themselves are fired by ScheduleBackupsWorkflow.
type BackupScheduleService struct {
	store  Store
	events event.Sink
	now    func() time.Time
	logger zerolog.Logger
}

func NewBackupScheduleService(st Store, events event.Sink, logger zerolog.Logger) *BackupScheduleService {
	return &BackupScheduleService{
		store:  st,
		events: events,
		now:    time.Now,
		logger: logger.With().Str("component", "backup-schedule-service").Logger(),
	}
}

// ScheduleRequest describes a new schedule.
type ScheduleRequest struct {
	ResourceID    string
	Description   string
	Schedule      string
	Timezone      string
	RetentionDays int
	MaxBackups    int
}

// Create validates the cron expression and timezone and stores an active
// schedule whose first trigger is computed from now.
func (s *BackupScheduleService) Create(ctx context.Context, req ScheduleRequest) (*model.BackupSchedule, error) {
	if req.MaxBackups < 1 {
		return nil, invalid("max_backups must be at least 1")
	}
	if req.RetentionDays < 0 {
		return nil, invalid("retention_days cannot be negative")
	}
	tz := req.Timezone
	if tz == "" {
		tz = backup.DefaultTimezone
	}
	next, err := backup.NextTrigger(req.Schedule, tz, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	r, err := s.store.GetResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	sc := &model.BackupSchedule{
		ID:            platform.NewID(),
		ResourceID:    r.ID,
		Description:   req.Description,
		Schedule:      req.Schedule,
		Timezone:      tz,
		RetentionDays: req.RetentionDays,
		MaxBackups:    req.MaxBackups,
		IsActive:      true,
		NextTriggerAt: &next,
	}
	if err := s.store.InsertSchedule(ctx, sc); err != nil {
		return nil, err
	}

	e := event.New(event.TypeScheduleCreated, model.SeverityInfo,
		fmt.Sprintf("Backup schedule for %s has been created.", r.Name),
		map[string]string{"schedule_id": sc.ID, "resource_id": r.ID, "resource_name": r.Name})
	if err := s.events.Emit(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("schedule_id", sc.ID).Msg("failed to emit schedule event")
	}
	return sc, nil
}

func (s *BackupScheduleService) Get(ctx context.Context, id string) (*model.BackupSchedule, error) {
	return s.store.GetSchedule(ctx, id)
}

// List returns the schedules of a resource, or all of them when
// resourceID is empty.
func (s *BackupScheduleService) List(ctx context.Context, resourceID string) ([]model.BackupSchedule, error) {
	return s.store.ListSchedules(ctx, resourceID)
}

// Activate turns a schedule on, recomputing its next trigger from now so a
// long-inactive schedule does not fire for every missed slot.
func (s *BackupScheduleService) Activate(ctx context.Context, id string) error {
	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if sc.IsActive {
		return nil
	}
	next, err := backup.NextTrigger(sc.Schedule, sc.Timezone, s.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s.store.SetScheduleActive(ctx, id, true, &next)
}

func (s *BackupScheduleService) Deactivate(ctx context.Context, id string) error {
	return s.store.SetScheduleActive(ctx, id, false, nil)
}

func (s *BackupScheduleService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteSchedule(ctx, id)
}
