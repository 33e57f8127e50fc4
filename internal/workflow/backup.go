package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// CreateBackupWorkflow snapshots the volumes of a resource. The backup row
// is created in BACKING_UP by the caller. A failed backup deactivates the
// schedule that produced it.
func CreateBackupWorkflow(ctx workflow.Context, backupID string) error {
	ctx = tasksCtx(ctx)

	var b model.Backup
	if err := workflow.ExecuteActivity(ctx, "GetBackup", backupID).Get(ctx, &b); err != nil {
		return err
	}

	fail := func(err error) error {
		if b.ScheduleID != nil {
			derr := workflow.ExecuteActivity(ctx, "DeactivateSchedule", activity.DeactivateScheduleParams{
				ScheduleID: *b.ScheduleID,
				BackupID:   backupID,
				Reason:     errorMessage(err),
			}).Get(ctx, nil)
			if derr != nil {
				workflow.GetLogger(ctx).Error("failed to deactivate schedule", "scheduleID", *b.ScheduleID, "error", derr)
			}
		}
		_ = setErred(ctx, model.EntityBackup, backupID, err)
		return err
	}

	if err := workflow.ExecuteActivity(ctx, "ValidateBackupQuota", backupID).Get(ctx, nil); err != nil {
		return fail(err)
	}

	var rc model.ResourceContext
	if err := workflow.ExecuteActivity(ctx, "GetResourceContext", b.ResourceID).Get(ctx, &rc); err != nil {
		return fail(err)
	}

	var set backend.SnapshotSet
	err := workflow.ExecuteActivity(heavyCtx(ctx), "CreateSnapshots", backupID).Get(ctx, &set)
	if err != nil {
		return fail(err)
	}

	if err := pollSnapshots(ctx, activity.SnapshotParams{LinkID: rc.Link.ID, Set: set}, snapshotPoll); err != nil {
		return fail(err)
	}

	err = workflow.ExecuteActivity(ctx, "StoreBackupMetadata", activity.StoreBackupMetadataParams{
		BackupID: backupID,
		Set:      set,
	}).Get(ctx, nil)
	if err != nil {
		return fail(err)
	}

	if err := transition(ctx, model.EntityBackup, backupID, fsm.ConfirmBackup); err != nil {
		return fail(err)
	}
	return nil
}

// DeleteBackupWorkflow removes the snapshots of a backup in DELETING.
func DeleteBackupWorkflow(ctx workflow.Context, backupID string) error {
	ctx = tasksCtx(ctx)

	var b model.Backup
	if err := workflow.ExecuteActivity(ctx, "GetBackup", backupID).Get(ctx, &b); err != nil {
		return err
	}

	if b.Metadata != nil {
		err := workflow.ExecuteActivity(heavyCtx(ctx), "DeleteSnapshots", activity.SnapshotParams{
			LinkID: b.Metadata.LinkID,
			Set:    backup.Snapshots(*b.Metadata),
		}).Get(ctx, nil)
		if err != nil {
			_ = setErred(ctx, model.EntityBackup, backupID, err)
			return err
		}
	}

	return finish(ctx, model.EntityBackup, backupID, fsm.ConfirmDeletion)
}

// RestoreBackupWorkflow recreates a resource from a READY backup: the
// snapshots become new volumes and a new resource is provisioned on them.
func RestoreBackupWorkflow(ctx workflow.Context, params activity.RestoreBackupParams) error {
	ctx = tasksCtx(ctx)
	backupID := params.BackupID

	if err := begin(ctx, model.EntityBackup, backupID, fsm.StartingRestoration); err != nil {
		return err
	}

	var b model.Backup
	if err := workflow.ExecuteActivity(ctx, "GetBackup", backupID).Get(ctx, &b); err != nil {
		_ = setErred(ctx, model.EntityBackup, backupID, err)
		return err
	}
	if b.Metadata == nil {
		err := fmt.Errorf("backup %s: %w", backupID, backup.ErrIncompleteMetadata)
		_ = setErred(ctx, model.EntityBackup, backupID, err)
		return err
	}

	var vols backend.VolumePair
	err := workflow.ExecuteActivity(heavyCtx(ctx), "PromoteSnapshots", activity.SnapshotParams{
		LinkID: b.Metadata.LinkID,
		Set:    backup.Snapshots(*b.Metadata),
	}).Get(ctx, &vols)
	if err != nil {
		_ = setErred(ctx, model.EntityBackup, backupID, err)
		return err
	}

	var resourceID string
	err = workflow.ExecuteActivity(ctx, "CreateRestoredResource", activity.CreateRestoredResourceParams{
		BackupID:   backupID,
		Name:       params.Name,
		FlavorName: params.FlavorName,
		Volumes:    vols,
	}).Get(ctx, &resourceID)
	if err != nil {
		_ = setErred(ctx, model.EntityBackup, backupID, err)
		return err
	}

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: model.TaskID("ProvisionResourceWorkflow", resourceID),
		TaskQueue:  model.QueueTasks,
	})
	err = workflow.ExecuteChildWorkflow(childCtx, ProvisionResourceWorkflow, activity.ProvisionResourceParams{
		ResourceID:               resourceID,
		SkipExternalIPAssignment: true,
	}).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityBackup, backupID, err)
		return err
	}

	return finish(ctx, model.EntityBackup, backupID, fsm.ConfirmRestoration)
}

// ScheduleBackupsWorkflow fires every due backup schedule. New backups and
// pruned ones are handed to their own workflows, which outlive this run.
func ScheduleBackupsWorkflow(ctx workflow.Context) error {
	ctx = tasksCtx(ctx)
	logger := workflow.GetLogger(ctx)

	var due []string
	if err := workflow.ExecuteActivity(ctx, "ListDueSchedules").Get(ctx, &due); err != nil {
		return err
	}

	for _, scheduleID := range due {
		var res backup.TickResult
		if err := workflow.ExecuteActivity(ctx, "RunScheduleTick", scheduleID).Get(ctx, &res); err != nil {
			logger.Error("schedule tick failed", "scheduleID", scheduleID, "error", err)
			continue
		}
		if res.BackupID != "" {
			if err := startAbandoned(ctx, model.TaskID("CreateBackupWorkflow", res.BackupID), model.QueueTasks, CreateBackupWorkflow, res.BackupID); err != nil {
				logger.Error("failed to start backup", "backupID", res.BackupID, "error", err)
			}
		}
		for _, id := range res.Pruned {
			if err := startAbandoned(ctx, model.TaskID("DeleteBackupWorkflow", id), model.QueueTasks, DeleteBackupWorkflow, id); err != nil {
				logger.Error("failed to start backup deletion", "backupID", id, "error", err)
			}
		}
		logger.Info("schedule fired", "scheduleID", scheduleID, "backupID", res.BackupID, "pruned", len(res.Pruned), "next", res.NextTrigger)
	}
	return nil
}

// DeleteExpiredBackupsWorkflow deletes READY backups past their retention.
func DeleteExpiredBackupsWorkflow(ctx workflow.Context) error {
	ctx = tasksCtx(ctx)
	logger := workflow.GetLogger(ctx)

	var ids []string
	if err := workflow.ExecuteActivity(ctx, "StartExpiredBackupDeletions").Get(ctx, &ids); err != nil {
		return err
	}
	logger.Info("found expired backups", "count", len(ids))

	for _, id := range ids {
		if err := startAbandoned(ctx, model.TaskID("DeleteBackupWorkflow", id), model.QueueTasks, DeleteBackupWorkflow, id); err != nil {
			// Continue with the other backups even if one fails to start.
			logger.Error("failed to start backup deletion", "backupID", id, "error", err)
		}
	}
	return nil
}
