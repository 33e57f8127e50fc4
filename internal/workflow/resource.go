package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// ProvisionResourceWorkflow creates a resource at its provider. The
// resource row already exists in PROVISIONING_SCHEDULED with its quota
// charged.
func ProvisionResourceWorkflow(ctx workflow.Context, params activity.ProvisionResourceParams) error {
	ctx = tasksCtx(ctx)
	id := params.ResourceID

	if err := begin(ctx, model.EntityResource, id, fsm.BeginProvisioning); err != nil {
		return err
	}

	var rc model.ResourceContext
	err := workflow.ExecuteActivity(ctx, "GetResourceContext", id).Get(ctx, &rc)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	err = throttled(ctx, "provision", endpointOf(rc.Settings), func(ctx workflow.Context) error {
		return workflow.ExecuteActivity(heavyCtx(ctx), "ProvisionResource", params).Get(ctx, nil)
	})
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	state, err := pollResourceState(ctx, id, provisionPoll, model.StateOnline, model.StateOffline)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "SyncResourceInfo", id).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	final := fsm.SetOnline
	if state == model.StateOffline {
		final = fsm.SetOffline
	}
	return finish(ctx, model.EntityResource, id, final)
}

// powerAction describes one of the start, stop and restart workflows.
type powerAction struct {
	begin    string
	activity string
	want     model.State
	final    string
}

func runPowerAction(ctx workflow.Context, resourceID string, a powerAction) error {
	ctx = tasksCtx(ctx)

	if err := begin(ctx, model.EntityResource, resourceID, a.begin); err != nil {
		return err
	}

	err := workflow.ExecuteActivity(ctx, a.activity, resourceID).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, resourceID, err)
		return err
	}

	if _, err := pollResourceState(ctx, resourceID, powerPoll, a.want); err != nil {
		_ = setErred(ctx, model.EntityResource, resourceID, err)
		return err
	}

	return finish(ctx, model.EntityResource, resourceID, a.final)
}

// StartResourceWorkflow powers on a resource in STARTING_SCHEDULED.
func StartResourceWorkflow(ctx workflow.Context, resourceID string) error {
	return runPowerAction(ctx, resourceID, powerAction{
		begin: fsm.BeginStarting, activity: "StartResource", want: model.StateOnline, final: fsm.SetOnline,
	})
}

// StopResourceWorkflow powers off a resource in STOPPING_SCHEDULED.
func StopResourceWorkflow(ctx workflow.Context, resourceID string) error {
	return runPowerAction(ctx, resourceID, powerAction{
		begin: fsm.BeginStopping, activity: "StopResource", want: model.StateOffline, final: fsm.SetOffline,
	})
}

// RestartResourceWorkflow reboots a resource in RESTARTING_SCHEDULED.
func RestartResourceWorkflow(ctx workflow.Context, resourceID string) error {
	return runPowerAction(ctx, resourceID, powerAction{
		begin: fsm.BeginRestarting, activity: "RestartResource", want: model.StateOnline, final: fsm.SetOnline,
	})
}

// DestroyResourceWorkflow deletes a resource at the provider and removes
// its row, which releases its quota.
func DestroyResourceWorkflow(ctx workflow.Context, resourceID string) error {
	ctx = tasksCtx(ctx)

	if err := begin(ctx, model.EntityResource, resourceID, fsm.BeginDeleting); err != nil {
		return err
	}

	err := workflow.ExecuteActivity(ctx, "DestroyResource", resourceID).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, resourceID, err)
		return err
	}

	if err := pollResourceGone(ctx, resourceID, destroyPoll); err != nil {
		_ = setErred(ctx, model.EntityResource, resourceID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "DeleteEntity", activity.EntityRef{Entity: model.EntityResource, ID: resourceID}).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, resourceID, err)
		return err
	}
	return nil
}

// ResizeResourceWorkflow changes the flavor of a stopped resource.
func ResizeResourceWorkflow(ctx workflow.Context, params activity.UpdateFlavorParams) error {
	ctx = tasksCtx(ctx)
	id := params.ResourceID

	if err := begin(ctx, model.EntityResource, id, fsm.BeginResizing); err != nil {
		return err
	}

	var flavor model.Flavor
	err := workflow.ExecuteActivity(ctx, "UpdateFlavor", params).Get(ctx, &flavor)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	if _, err := pollResourceState(ctx, id, resizePoll, model.StateOffline); err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "ApplyResize", store.ResizeParams{
		ID:         id,
		FlavorName: flavor.Name,
		Cores:      flavor.Cores,
		RAM:        flavor.RAM,
	}).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	return finish(ctx, model.EntityResource, id, fsm.SetResized)
}

// ExtendDiskWorkflow grows the data volume of a stopped resource.
func ExtendDiskWorkflow(ctx workflow.Context, params activity.ExtendDiskParams) error {
	ctx = tasksCtx(ctx)
	id := params.ResourceID

	if err := begin(ctx, model.EntityResource, id, fsm.BeginResizing); err != nil {
		return err
	}

	err := workflow.ExecuteActivity(ctx, "ExtendDisk", params).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	if _, err := pollResourceState(ctx, id, resizePoll, model.StateOffline); err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "ApplyResize", store.ResizeParams{
		ID:             id,
		DataVolumeSize: params.NewSize,
	}).Get(ctx, nil)
	if err != nil {
		_ = setErred(ctx, model.EntityResource, id, err)
		return err
	}

	return finish(ctx, model.EntityResource, id, fsm.SetResized)
}

// RecoverResourceWorkflow brings an ERRED resource back to the stable
// state its provider reports. A resource the provider does not know, or
// reports in a transitional state, stays ERRED.
func RecoverResourceWorkflow(ctx workflow.Context, resourceID string) error {
	ctx = tasksCtx(ctx)

	var rs activity.RemoteState
	if err := workflow.ExecuteActivity(ctx, "GetRemoteState", resourceID).Get(ctx, &rs); err != nil {
		return err
	}
	if !rs.Found {
		return fmt.Errorf("resource %s is not known to its provider", resourceID)
	}

	var name string
	switch rs.State {
	case model.StateOnline:
		name = fsm.RecoverOnline
	case model.StateOffline:
		name = fsm.RecoverOffline
	default:
		return fmt.Errorf("resource %s cannot be recovered from provider state %q", resourceID, rs.RawState)
	}
	return workflow.ExecuteActivity(ctx, "RecoverResource", activity.TransitionParams{
		Entity:     model.EntityResource,
		ID:         resourceID,
		Transition: name,
	}).Get(ctx, nil)
}
