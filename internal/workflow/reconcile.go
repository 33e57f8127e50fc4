package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/reconcile"
)

// maxConcurrentPulls caps the PullLinkWorkflow children running at once.
const maxConcurrentPulls = 5

// ReconcileSettingsWorkflow refreshes the catalogue and quotas of every
// settings entity that is not penalized. A failing settings entity does not
// stop the others.
func ReconcileSettingsWorkflow(ctx workflow.Context) error {
	ctx = backgroundCtx(ctx)
	logger := workflow.GetLogger(ctx)

	var ids []string
	if err := workflow.ExecuteActivity(ctx, "ListSettingsForReconcile").Get(ctx, &ids); err != nil {
		return err
	}

	failed := 0
	for _, id := range ids {
		if err := workflow.ExecuteActivity(ctx, "ReconcileSettings", id).Get(ctx, nil); err != nil {
			logger.Warn("settings reconcile failed", "settingsID", id, "error", err)
			failed++
		}
	}
	logger.Info("settings reconciled", "total", len(ids), "failed", failed)
	return nil
}

// ReconcileLinksWorkflow pulls every stable link from its provider. Each
// link runs as its own child so a slow provider only delays its links.
func ReconcileLinksWorkflow(ctx workflow.Context) error {
	ctx = backgroundCtx(ctx)
	logger := workflow.GetLogger(ctx)

	var ids []string
	if err := workflow.ExecuteActivity(ctx, "ListLinksForReconcile").Get(ctx, &ids); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	wg := workflow.NewWaitGroup(ctx)
	sem := workflow.NewSemaphore(ctx, maxConcurrentPulls)

	for _, id := range ids {
		_ = sem.Acquire(ctx, 1)
		wg.Add(1)

		workflow.Go(ctx, func(gCtx workflow.Context) {
			defer wg.Done()
			defer sem.Release(1)

			childCtx := workflow.WithChildOptions(gCtx, workflow.ChildWorkflowOptions{
				WorkflowID: model.TaskID("PullLinkWorkflow", id),
				TaskQueue:  model.QueueBackground,
			})
			if err := workflow.ExecuteChildWorkflow(childCtx, PullLinkWorkflow, id).Get(gCtx, nil); err != nil {
				logger.Error("link pull failed", "linkID", id, "error", err)
			}
		})
	}

	wg.Wait(ctx)
	logger.Info("links reconciled", "total", len(ids))
	return nil
}

// PullLinkWorkflow pulls instances, security groups and floating IPs of one
// link and applies the differences.
func PullLinkWorkflow(ctx workflow.Context, linkID string) (reconcile.Result, error) {
	ctx = backgroundCtx(ctx)

	var res reconcile.Result
	if err := workflow.ExecuteActivity(ctx, "PullLink", linkID).Get(ctx, &res); err != nil {
		return res, err
	}
	workflow.GetLogger(ctx).Info("link pulled", "linkID", linkID,
		"created", res.Created, "updated", res.Updated, "deleted", res.Deleted, "erred", res.Erred)
	return res, nil
}

// AlertHousekeepingWorkflow opens and closes quota and settings alerts so
// that they match the current state.
func AlertHousekeepingWorkflow(ctx workflow.Context) (activity.AlertHousekeepingResult, error) {
	ctx = backgroundCtx(ctx)

	var res activity.AlertHousekeepingResult
	if err := workflow.ExecuteActivity(ctx, "AlertHousekeeping").Get(ctx, &res); err != nil {
		return res, err
	}
	workflow.GetLogger(ctx).Info("alert housekeeping done",
		"quotaOpened", res.Quota.Opened, "quotaClosed", res.Quota.Closed,
		"settingsOpened", res.Settings.Opened, "settingsClosed", res.Settings.Closed,
		"repaired", res.Repaired)
	return res, nil
}
