package core

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/quota"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// ---------- Mock Store ----------

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InTx(ctx context.Context, fn func(tx *store.Tx) error) error {
	return m.Called(ctx, fn).Error(0)
}

func (m *mockStore) Transition(ctx context.Context, entity, id, name string, opts ...store.TransitionOption) (model.State, error) {
	args := m.Called(ctx, entity, id, name)
	return args.Get(0).(model.State), args.Error(1)
}

func (m *mockStore) SetErred(ctx context.Context, entity, id, msg string) error {
	return m.Called(ctx, entity, id, msg).Error(0)
}

func (m *mockStore) State(ctx context.Context, entity, id string) (model.State, int, error) {
	args := m.Called(ctx, entity, id)
	return args.Get(0).(model.State), args.Int(1), args.Error(2)
}

func (m *mockStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *mockStore) GetLinkContext(ctx context.Context, id string) (*model.LinkContext, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkContext), args.Error(1)
}

func (m *mockStore) GetSettings(ctx context.Context, id string) (*model.ServiceSettings, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ServiceSettings), args.Error(1)
}

func (m *mockStore) GetFlavorByName(ctx context.Context, settingsID, name string) (*model.Flavor, error) {
	args := m.Called(ctx, settingsID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Flavor), args.Error(1)
}

func (m *mockStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *mockStore) GetResourceContext(ctx context.Context, id string) (*model.ResourceContext, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResourceContext), args.Error(1)
}

func (m *mockStore) CreateBackup(ctx context.Context, b *model.Backup) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *mockStore) InsertSchedule(ctx context.Context, sc *model.BackupSchedule) error {
	return m.Called(ctx, sc).Error(0)
}

func (m *mockStore) GetSchedule(ctx context.Context, id string) (*model.BackupSchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupSchedule), args.Error(1)
}

func (m *mockStore) ListSchedules(ctx context.Context, resourceID string) ([]model.BackupSchedule, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BackupSchedule), args.Error(1)
}

func (m *mockStore) SetScheduleActive(ctx context.Context, id string, active bool, next *time.Time) error {
	return m.Called(ctx, id, active, next).Error(0)
}

func (m *mockStore) DeleteSchedule(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) GetTemplateResult(ctx context.Context, id string) (*model.TemplateGroupResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemplateGroupResult), args.Error(1)
}

func (m *mockStore) InsertSSHKey(ctx context.Context, k *model.SSHKey) error {
	return m.Called(ctx, k).Error(0)
}

func (m *mockStore) GetSSHKeyByFingerprint(ctx context.Context, fingerprint string) (*model.SSHKey, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SSHKey), args.Error(1)
}

// ---------- Mock Quota Gate ----------

// mockGate records admissions without running the write, which needs a
// live transaction.
type mockGate struct {
	mock.Mock
}

func (m *mockGate) Admit(ctx context.Context, scope model.Scope, deltas map[string]float64, fn func(tx *store.Tx) error) error {
	return m.Called(ctx, scope, deltas).Error(0)
}

func (m *mockGate) Get(ctx context.Context, scope model.Scope) ([]model.Quota, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Quota), args.Error(1)
}

func (m *mockGate) SetLimit(ctx context.Context, scope model.Scope, name string, limit float64, origin quota.Origin) error {
	return m.Called(ctx, scope, name, limit, origin).Error(0)
}

// ---------- Mock Event Sink ----------

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Emit(ctx context.Context, e model.Event) error {
	return m.Called(ctx, e).Error(0)
}

// ---------- Mock Template Runner ----------

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, groupID string, additional map[string]any) (*model.TemplateGroupResult, error) {
	args := m.Called(ctx, groupID, additional)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemplateGroupResult), args.Error(1)
}

// ---------- Temporal ----------

// newTemporal returns a mock client and a starter bound to it.
func newTemporal() (*temporalmocks.Client, *TemporalStarter) {
	tc := &temporalmocks.Client{}
	return tc, NewTemporalStarter(tc)
}

func okRun() *temporalmocks.WorkflowRun {
	wfRun := &temporalmocks.WorkflowRun{}
	wfRun.On("GetID").Return("mock-wf-id")
	wfRun.On("GetRunID").Return("mock-run-id")
	return wfRun
}
