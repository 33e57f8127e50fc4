package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// TickRunner fires one backup schedule. *backup.Scheduler satisfies it.
type TickRunner interface {
	Tick(ctx context.Context, scheduleID string, now time.Time) (backup.TickResult, error)
}

// Backups contains the backup and schedule activities.
type Backups struct {
	store  Store
	ticks  TickRunner
	quotas QuotaGate
	sink   event.Sink
	now    func() time.Time
	logger zerolog.Logger
}

// NewBackups creates a new Backups activity struct.
func NewBackups(st Store, ticks TickRunner, quotas QuotaGate, sink event.Sink, logger zerolog.Logger) *Backups {
	return &Backups{
		store:  st,
		ticks:  ticks,
		quotas: quotas,
		sink:   sink,
		now:    time.Now,
		logger: logger.With().Str("component", "backup-activities").Logger(),
	}
}

// ListDueSchedules returns the active schedules whose trigger has passed.
func (a *Backups) ListDueSchedules(ctx context.Context) ([]string, error) {
	return a.store.ListDueScheduleIDs(ctx, a.now().UTC())
}

// RunScheduleTick fires one schedule: it creates the backup row, starts
// pruning and advances the trigger in one transaction.
func (a *Backups) RunScheduleTick(ctx context.Context, scheduleID string) (backup.TickResult, error) {
	return a.ticks.Tick(ctx, scheduleID, a.now().UTC())
}

// backupStorage is the storage a backup of r will consume on its link.
func backupStorage(r model.Resource) map[string]float64 {
	size := r.SystemVolumeSize + r.DataVolumeSize
	if size <= 0 {
		return nil
	}
	return map[string]float64{model.QuotaStorage: float64(size)}
}

// ValidateBackupQuota checks that the link has room for the snapshots of
// a backup.
func (a *Backups) ValidateBackupQuota(ctx context.Context, backupID string) error {
	b, err := a.store.GetBackup(ctx, backupID)
	if err != nil {
		return err
	}
	rc, err := a.store.GetResourceContext(ctx, b.ResourceID)
	if err != nil {
		return err
	}
	deltas := backupStorage(rc.Resource)
	if len(deltas) == 0 {
		return nil
	}
	return a.quotas.Admit(ctx, model.Scope{Type: model.ScopeLink, ID: rc.Resource.LinkID}, deltas, nil)
}

// StoreBackupMetadataParams holds the parameters for StoreBackupMetadata.
type StoreBackupMetadataParams struct {
	BackupID string              `json:"backup_id"`
	Set      backend.SnapshotSet `json:"set"`
}

// StoreBackupMetadata records what a restore of the backup will need.
func (a *Backups) StoreBackupMetadata(ctx context.Context, params StoreBackupMetadataParams) error {
	b, err := a.store.GetBackup(ctx, params.BackupID)
	if err != nil {
		return err
	}
	rc, err := a.store.GetResourceContext(ctx, b.ResourceID)
	if err != nil {
		return err
	}
	return a.store.SetBackupMetadata(ctx, b.ID, backup.Metadata(rc.Resource, params.Set))
}

// DeactivateScheduleParams holds the parameters for DeactivateSchedule.
type DeactivateScheduleParams struct {
	ScheduleID string `json:"schedule_id"`
	BackupID   string `json:"backup_id"`
	Reason     string `json:"reason"`
}

// DeactivateSchedule stops a schedule whose backup failed so it does not
// keep producing erred backups.
func (a *Backups) DeactivateSchedule(ctx context.Context, params DeactivateScheduleParams) error {
	if err := a.store.SetScheduleActive(ctx, params.ScheduleID, false, nil); err != nil {
		return err
	}
	e := event.New(event.TypeScheduleDeactivated, model.SeverityWarning,
		fmt.Sprintf("Backup schedule %s has been deactivated: %s", params.ScheduleID, params.Reason),
		map[string]string{"schedule_id": params.ScheduleID, "backup_id": params.BackupID})
	if err := a.sink.Emit(ctx, e); err != nil {
		a.logger.Warn().Err(err).Str("schedule_id", params.ScheduleID).Msg("schedule deactivation event not delivered")
	}
	return nil
}

// StartExpiredBackupDeletions moves every READY backup past its
// retention into DELETING and returns the ones it moved. Backups that are
// busy are left for the next run.
func (a *Backups) StartExpiredBackupDeletions(ctx context.Context) ([]string, error) {
	ids, err := a.store.ListExpiredBackupIDs(ctx, a.now().UTC())
	if err != nil {
		return nil, err
	}
	var started []string
	for _, id := range ids {
		_, err := a.store.Transition(ctx, model.EntityBackup, id, fsm.StartingDeletion)
		switch {
		case err == nil:
			started = append(started, id)
		case errors.Is(err, model.ErrStateConflict), errors.Is(err, model.ErrNotFound):
			a.logger.Debug().Err(err).Str("backup_id", id).Msg("expired backup not deletable now")
		default:
			return started, err
		}
	}
	return started, nil
}

// RestoreBackupParams are the inputs of RestoreBackupWorkflow.
type RestoreBackupParams struct {
	BackupID   string `json:"backup_id"`
	Name       string `json:"name,omitempty"`
	FlavorName string `json:"flavor_name,omitempty"`
}

// CreateRestoredResourceParams holds the parameters for CreateRestoredResource.
type CreateRestoredResourceParams struct {
	BackupID   string             `json:"backup_id"`
	Name       string             `json:"name,omitempty"`
	FlavorName string             `json:"flavor_name,omitempty"`
	Volumes    backend.VolumePair `json:"volumes"`
}

// CreateRestoredResource inserts the resource a restore provisions, in
// PROVISIONING_SCHEDULED and attached to the promoted volumes. Its quota
// is validated and charged in the same transaction. The resource ID is
// derived from the backup and the promoted volumes, so a retried attempt
// returns the row an earlier attempt committed.
func (a *Backups) CreateRestoredResource(ctx context.Context, params CreateRestoredResourceParams) (string, error) {
	b, err := a.store.GetBackup(ctx, params.BackupID)
	if err != nil {
		return "", err
	}
	if b.Metadata == nil {
		return "", fmt.Errorf("backup %s: %w", b.ID, backup.ErrIncompleteMetadata)
	}

	id := restoredResourceID(params)
	if _, err := a.store.GetResourceContext(ctx, id); err == nil {
		a.logger.Info().Str("backup_id", b.ID).Str("resource_id", id).Msg("restored resource already created")
		return id, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return "", err
	}

	overrides := backup.RestoreOverrides{Name: params.Name}
	if params.FlavorName != "" {
		lc, err := a.store.GetLinkContext(ctx, b.Metadata.LinkID)
		if err != nil {
			return "", err
		}
		if overrides.Flavor, err = a.store.GetFlavorByName(ctx, lc.Settings.ID, params.FlavorName); err != nil {
			return "", err
		}
	}

	r, err := backup.RestoreInput(b.Metadata, overrides)
	if err != nil {
		return "", err
	}
	r.ID = id
	r.SystemVolumeID = params.Volumes.SystemVolumeID
	r.DataVolumeID = params.Volumes.DataVolumeID
	r.Description = fmt.Sprintf("Restored from backup %s", b.ID)

	scope := model.Scope{Type: model.ScopeLink, ID: r.LinkID}
	err = a.quotas.Admit(ctx, scope, r.QuotaUsage(), func(tx *store.Tx) error {
		return tx.InsertResource(ctx, &r)
	})
	if err != nil {
		return "", err
	}
	a.logger.Info().Str("backup_id", b.ID).Str("resource_id", r.ID).Msg("restored resource created")
	return r.ID, nil
}

func restoredResourceID(params CreateRestoredResourceParams) string {
	return platform.DerivedID("restore:" + params.BackupID + ":" + params.Volumes.SystemVolumeID + ":" + params.Volumes.DataVolumeID)
}
