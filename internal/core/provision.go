package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// ErrInvalid marks a request that fails validation before any state changes.
var ErrInvalid = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Store is the persistence surface used by the services. *store.Store
// satisfies it.
type Store interface {
	InTx(ctx context.Context, fn func(tx *store.Tx) error) error
	Transition(ctx context.Context, entity, id, name string, opts ...store.TransitionOption) (model.State, error)
	SetErred(ctx context.Context, entity, id, msg string) error
	State(ctx context.Context, entity, id string) (model.State, int, error)

	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	GetLinkContext(ctx context.Context, id string) (*model.LinkContext, error)
	GetSettings(ctx context.Context, id string) (*model.ServiceSettings, error)
	GetFlavorByName(ctx context.Context, settingsID, name string) (*model.Flavor, error)
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	GetResourceContext(ctx context.Context, id string) (*model.ResourceContext, error)

	CreateBackup(ctx context.Context, b *model.Backup) error
	GetBackup(ctx context.Context, id string) (*model.Backup, error)
	InsertSchedule(ctx context.Context, sc *model.BackupSchedule) error
	GetSchedule(ctx context.Context, id string) (*model.BackupSchedule, error)
	ListSchedules(ctx context.Context, resourceID string) ([]model.BackupSchedule, error)
	SetScheduleActive(ctx context.Context, id string, active bool, next *time.Time) error
	DeleteSchedule(ctx context.Context, id string) error

	GetTemplateResult(ctx context.Context, id string) (*model.TemplateGroupResult, error)

	InsertSSHKey(ctx context.Context, k *model.SSHKey) error
	GetSSHKeyByFingerprint(ctx context.Context, fingerprint string) (*model.SSHKey, error)
}

// QuotaGate admits quota-consuming writes. *quota.Gate satisfies it.
type QuotaGate interface {
	Admit(ctx context.Context, scope model.Scope, deltas map[string]float64, fn func(tx *store.Tx) error) error
}

// Starter launches workflows.
type Starter interface {
	Start(ctx context.Context, task model.WorkflowTask) error
}

// TemporalStarter starts workflows on a Temporal cluster.
type TemporalStarter struct {
	tc temporalclient.Client
}

func NewTemporalStarter(tc temporalclient.Client) *TemporalStarter {
	return &TemporalStarter{tc: tc}
}

// Start executes task. A task without a queue runs on the tasks queue.
func (s *TemporalStarter) Start(ctx context.Context, task model.WorkflowTask) error {
	queue := task.Queue
	if queue == "" {
		queue = model.QueueTasks
	}
	_, err := s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        task.WorkflowID,
		TaskQueue: queue,
	}, task.WorkflowName, task.Arg)
	return err
}

// startFor starts workflowName against entityID with arg.
func startFor(ctx context.Context, starter Starter, workflowName, entityID string, arg any) error {
	err := starter.Start(ctx, model.WorkflowTask{
		WorkflowName: workflowName,
		WorkflowID:   model.TaskID(workflowName, entityID),
		Queue:        model.QueueTasks,
		Arg:          arg,
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", workflowName, err)
	}
	return nil
}
