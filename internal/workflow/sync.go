package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// runSync drives a settings, link or security group entity through
// CREATING or SYNCING, runs the backend call and settles it IN_SYNC.
func runSync(ctx workflow.Context, entity, id, backendActivity string) error {
	ctx = tasksCtx(ctx)
	ref := activity.EntityRef{Entity: entity, ID: id}

	if err := workflow.ExecuteActivity(ctx, "BeginSync", ref).Get(ctx, nil); err != nil {
		return err
	}

	if err := workflow.ExecuteActivity(ctx, backendActivity, id).Get(ctx, nil); err != nil {
		_ = setErred(ctx, entity, id, err)
		return err
	}

	return finish(ctx, entity, id, fsm.SetInSync)
}

// runRecover moves an ERRED sync entity back to SYNC_SCHEDULED and syncs it.
func runRecover(ctx workflow.Context, entity, id, backendActivity string) error {
	if err := transition(tasksCtx(ctx), entity, id, fsm.Recover); err != nil {
		return err
	}
	return runSync(ctx, entity, id, backendActivity)
}

// SyncSettingsWorkflow validates provider credentials and pulls the
// flavor and image catalogue.
func SyncSettingsWorkflow(ctx workflow.Context, settingsID string) error {
	return runSync(ctx, model.EntitySettings, settingsID, "SyncSettings")
}

// RecoverSettingsWorkflow retries an erred settings entity.
func RecoverSettingsWorkflow(ctx workflow.Context, settingsID string) error {
	return runRecover(ctx, model.EntitySettings, settingsID, "SyncSettings")
}

// SyncLinkWorkflow creates or refreshes the provider-side tenant of a link.
func SyncLinkWorkflow(ctx workflow.Context, linkID string) error {
	return runSync(ctx, model.EntityLink, linkID, "SyncLink")
}

// RecoverLinkWorkflow retries an erred link.
func RecoverLinkWorkflow(ctx workflow.Context, linkID string) error {
	return runRecover(ctx, model.EntityLink, linkID, "SyncLink")
}

// RemoveLinkWorkflow tears down the provider-side tenant of a link and
// deletes the link.
func RemoveLinkWorkflow(ctx workflow.Context, linkID string) error {
	ctx = tasksCtx(ctx)

	if err := workflow.ExecuteActivity(ctx, "RemoveLink", linkID).Get(ctx, nil); err != nil {
		_ = setErred(ctx, model.EntityLink, linkID, err)
		return err
	}

	err := workflow.ExecuteActivity(ctx, "DeleteEntity", activity.EntityRef{Entity: model.EntityLink, ID: linkID}).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityLink, linkID, err)
		return err
	}
	return nil
}

// SyncSecurityGroupWorkflow pushes a security group and its rules to the
// provider.
func SyncSecurityGroupWorkflow(ctx workflow.Context, groupID string) error {
	return runSync(ctx, model.EntitySecurityGroup, groupID, "PushSecurityGroup")
}

// DeleteSecurityGroupWorkflow removes a security group at the provider and
// deletes its row.
func DeleteSecurityGroupWorkflow(ctx workflow.Context, groupID string) error {
	ctx = tasksCtx(ctx)

	if err := workflow.ExecuteActivity(ctx, "DeleteRemoteSecurityGroup", groupID).Get(ctx, nil); err != nil {
		_ = setErred(ctx, model.EntitySecurityGroup, groupID, err)
		return err
	}

	err := workflow.ExecuteActivity(ctx, "DeleteEntity", activity.EntityRef{Entity: model.EntitySecurityGroup, ID: groupID}).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntitySecurityGroup, groupID, err)
		return err
	}
	return nil
}
