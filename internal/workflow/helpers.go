package workflow

import (
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// poll is the ceiling of a polling loop.
type poll struct {
	attempts int
	interval time.Duration
}

var (
	provisionPoll = poll{attempts: 300, interval: 3 * time.Second}
	powerPoll     = poll{attempts: 100, interval: 3 * time.Second}
	resizePoll    = poll{attempts: 200, interval: 3 * time.Second}
	destroyPoll   = poll{attempts: 300, interval: 3 * time.Second}
	snapshotPoll  = poll{attempts: 600, interval: 3 * time.Second}
	templatePoll  = poll{attempts: 120, interval: 20 * time.Second}
)

// maxThrottleAttempts bounds how long a workflow waits for a throttle slot.
const maxThrottleAttempts = 2880

// PollTimeoutError is returned when a polled state is not reached within
// its ceiling.
type PollTimeoutError struct {
	What     string
	Attempts int
	Interval time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("%s not reached after %d checks every %s", e.What, e.Attempts, e.Interval)
}

func retryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		MaximumAttempts:    3,
		InitialInterval:    1 * time.Second,
		MaximumInterval:    10 * time.Second,
		BackoffCoefficient: 2.0,
	}
}

// tasksCtx is the activity context of lifecycle steps.
func tasksCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           model.QueueTasks,
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         retryPolicy(),
	})
}

// heavyCtx routes provider calls that create or copy data to the heavy
// queue, whose worker runs with a small concurrency cap.
func heavyCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:              model.QueueHeavy,
		StartToCloseTimeout:    5 * time.Minute,
		ScheduleToCloseTimeout: 30 * time.Minute,
		RetryPolicy:            retryPolicy(),
	})
}

// backgroundCtx is used by reconciliation. Pulls are not retried; the
// penalty decides when an entity is tried again.
func backgroundCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           model.QueueBackground,
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
}

// transition applies a named state-machine transition.
func transition(ctx workflow.Context, entity, id, name string) error {
	return workflow.ExecuteActivity(ctx, "Transition", activity.TransitionParams{
		Entity:     entity,
		ID:         id,
		Transition: name,
	}).Get(ctx, nil)
}

// begin applies the opening transition of a workflow. A conflict means
// another operation owns the entity, so it is left alone. Any other
// failure would strand the entity in its scheduled state with nothing
// driving it, so it is marked ERRED.
func begin(ctx workflow.Context, entity, id, name string) error {
	err := transition(ctx, entity, id, name)
	if err == nil {
		return nil
	}
	switch errorKind(err) {
	case model.KindStateConflict, model.KindConcurrentUpdate, model.KindNotFound:
	default:
		_ = setErred(ctx, entity, id, err)
	}
	return err
}

// finish applies the closing transition. The entity is in a working state
// at that point, so any failure marks it ERRED.
func finish(ctx workflow.Context, entity, id, name string) error {
	if err := transition(ctx, entity, id, name); err != nil {
		_ = setErred(ctx, entity, id, err)
		return err
	}
	return nil
}

// setErred is the failure continuation. It returns any error but callers
// typically ignore it since the primary error is more important.
func setErred(ctx workflow.Context, entity, id string, cause error) error {
	return workflow.ExecuteActivity(ctx, "SetErred", activity.SetErredParams{
		Entity:  entity,
		ID:      id,
		Message: errorMessage(cause),
	}).Get(ctx, nil)
}

// errorMessage strips the Temporal activity envelope from err.
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

// errorKind returns the error kind an activity failed with, or "".
func errorKind(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type()
	}
	return ""
}

// pollResourceState reads the provider state of a resource until it is one
// of want. ERRED at the provider fails the poll.
func pollResourceState(ctx workflow.Context, resourceID string, p poll, want ...model.State) (model.State, error) {
	for i := 0; i < p.attempts; i++ {
		var rs activity.RemoteState
		if err := workflow.ExecuteActivity(ctx, "GetRemoteState", resourceID).Get(ctx, &rs); err != nil {
			return "", err
		}
		if rs.Found {
			for _, w := range want {
				if rs.State == w {
					return rs.State, nil
				}
			}
			if rs.State == model.StateErred {
				return "", fmt.Errorf("resource %s is in error state %q at the provider", resourceID, rs.RawState)
			}
		}
		if err := workflow.Sleep(ctx, p.interval); err != nil {
			return "", err
		}
	}
	return "", &PollTimeoutError{What: fmt.Sprintf("resource %s state %v", resourceID, want), Attempts: p.attempts, Interval: p.interval}
}

// pollResourceGone waits until the provider no longer reports a resource.
func pollResourceGone(ctx workflow.Context, resourceID string, p poll) error {
	for i := 0; i < p.attempts; i++ {
		var rs activity.RemoteState
		if err := workflow.ExecuteActivity(ctx, "GetRemoteState", resourceID).Get(ctx, &rs); err != nil {
			return err
		}
		if !rs.Found {
			return nil
		}
		if rs.State == model.StateErred {
			return fmt.Errorf("resource %s is in error state %q at the provider", resourceID, rs.RawState)
		}
		if err := workflow.Sleep(ctx, p.interval); err != nil {
			return err
		}
	}
	return &PollTimeoutError{What: fmt.Sprintf("deletion of resource %s", resourceID), Attempts: p.attempts, Interval: p.interval}
}

// pollSnapshots waits for a snapshot set to become READY.
func pollSnapshots(ctx workflow.Context, params activity.SnapshotParams, p poll) error {
	for i := 0; i < p.attempts; i++ {
		var st model.State
		if err := workflow.ExecuteActivity(ctx, "GetSnapshotsState", params).Get(ctx, &st); err != nil {
			return err
		}
		switch st {
		case model.StateReady:
			return nil
		case model.StateErred:
			return fmt.Errorf("snapshots %s/%s failed at the provider", params.Set.SystemSnapshotID, params.Set.DataSnapshotID)
		}
		if err := workflow.Sleep(ctx, p.interval); err != nil {
			return err
		}
	}
	return &PollTimeoutError{What: "snapshot readiness", Attempts: p.attempts, Interval: p.interval}
}

// throttled runs fn while holding a throttle slot for op on endpoint. It
// sleeps between attempts and gives the slot back even when the workflow
// is cancelled.
func throttled(ctx workflow.Context, op, endpoint string, fn func(workflow.Context) error) error {
	params := activity.ThrottleParams{Op: op, Endpoint: endpoint}
	acquired := false
	for i := 0; i < maxThrottleAttempts; i++ {
		var grant activity.ThrottleGrant
		if err := workflow.ExecuteActivity(ctx, "AcquireThrottle", params).Get(ctx, &grant); err != nil {
			return err
		}
		if grant.Acquired {
			acquired = true
			break
		}
		workflow.GetLogger(ctx).Debug("throttled, waiting", "op", op, "endpoint", endpoint, "delay", grant.RetryDelay)
		if err := workflow.Sleep(ctx, grant.RetryDelay); err != nil {
			return err
		}
	}
	if !acquired {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("no %s slot for %s", op, endpoint), model.KindThrottled, model.ErrThrottled)
	}
	defer func() {
		releaseCtx, _ := workflow.NewDisconnectedContext(ctx)
		if err := workflow.ExecuteActivity(releaseCtx, "ReleaseThrottle", params).Get(releaseCtx, nil); err != nil {
			workflow.GetLogger(ctx).Warn("failed to release throttle", "op", op, "endpoint", endpoint, "error", err)
		}
	}()
	return fn(ctx)
}

// endpointOf is the throttle key of the provider behind settings.
func endpointOf(s model.ServiceSettings) string {
	if s.BackendURL != "" {
		return s.BackendURL
	}
	return s.Type + ":" + s.ID
}

// startAbandoned starts a child workflow that outlives its parent and
// waits only until it is running.
func startAbandoned(ctx workflow.Context, workflowID, queue string, wf any, args ...any) error {
	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:        workflowID,
		TaskQueue:         queue,
		ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
	})
	fut := workflow.ExecuteChildWorkflow(childCtx, wf, args...)
	err := fut.GetChildWorkflowExecution().Get(ctx, nil)
	var running *temporal.ChildWorkflowExecutionAlreadyStartedError
	if errors.As(err, &running) {
		return nil
	}
	return err
}
