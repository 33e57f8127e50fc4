package activity

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/backend/dummy"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Transition(ctx context.Context, entity, id, name string, opts ...store.TransitionOption) (model.State, error) {
	args := m.Called(ctx, entity, id, name)
	return args.Get(0).(model.State), args.Error(1)
}

func (m *mockStore) SetErred(ctx context.Context, entity, id, msg string) error {
	return m.Called(ctx, entity, id, msg).Error(0)
}

func (m *mockStore) RecoverResource(ctx context.Context, id, name string) (model.State, error) {
	args := m.Called(ctx, id, name)
	return args.Get(0).(model.State), args.Error(1)
}

func (m *mockStore) State(ctx context.Context, entity, id string) (model.State, int, error) {
	args := m.Called(ctx, entity, id)
	return args.Get(0).(model.State), args.Int(1), args.Error(2)
}

func (m *mockStore) GetResourceContext(ctx context.Context, id string) (*model.ResourceContext, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResourceContext), args.Error(1)
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

func (m *mockStore) GetSecurityGroup(ctx context.Context, id string) (*model.SecurityGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SecurityGroup), args.Error(1)
}

func (m *mockStore) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *mockStore) GetFlavorByName(ctx context.Context, settingsID, name string) (*model.Flavor, error) {
	args := m.Called(ctx, settingsID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Flavor), args.Error(1)
}

func (m *mockStore) GetSSHKeyByFingerprint(ctx context.Context, fingerprint string) (*model.SSHKey, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SSHKey), args.Error(1)
}

func (m *mockStore) SetResourceBackendInfo(ctx context.Context, id string, info store.BackendInfo) error {
	return m.Called(ctx, id, info).Error(0)
}

func (m *mockStore) ApplyResize(ctx context.Context, p store.ResizeParams) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockStore) SetLinkBackendInfo(ctx context.Context, id string, info store.LinkBackendInfo) error {
	return m.Called(ctx, id, info).Error(0)
}

func (m *mockStore) SetSecurityGroupBackendID(ctx context.Context, id, backendID string) error {
	return m.Called(ctx, id, backendID).Error(0)
}

func (m *mockStore) ReplaceProperties(ctx context.Context, settingsID string, p store.Properties) error {
	return m.Called(ctx, settingsID, p).Error(0)
}

func (m *mockStore) SetBackupMetadata(ctx context.Context, id string, md model.BackupMetadata) error {
	return m.Called(ctx, id, md).Error(0)
}

func (m *mockStore) SetScheduleActive(ctx context.Context, id string, active bool, next *time.Time) error {
	return m.Called(ctx, id, active, next).Error(0)
}

func (m *mockStore) DeleteResource(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) DeleteLink(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) DeleteSecurityGroup(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) ListLinkIDsInStates(ctx context.Context, states ...model.State) ([]string, error) {
	args := m.Called(ctx, states)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) ListSettingsInStates(ctx context.Context, states ...model.State) ([]model.ServiceSettings, error) {
	args := m.Called(ctx, states)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ServiceSettings), args.Error(1)
}

func (m *mockStore) ListDueScheduleIDs(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) ListExpiredBackupIDs(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) AddProvisionedResource(ctx context.Context, id, resourceType, url, stateMessage string) error {
	return m.Called(ctx, id, resourceType, url, stateMessage).Error(0)
}

func (m *mockStore) FinishTemplateResult(ctx context.Context, id string, o store.TemplateOutcome) error {
	return m.Called(ctx, id, o).Error(0)
}

// mockQuotaGate runs fn with a nil transaction, so tests must not pass
// functions that dereference it.
type mockQuotaGate struct {
	mock.Mock
}

func (m *mockQuotaGate) Admit(ctx context.Context, scope model.Scope, deltas map[string]float64, fn func(tx *store.Tx) error) error {
	return m.Called(ctx, scope, deltas).Error(0)
}

func (m *mockQuotaGate) Init(ctx context.Context, scope model.Scope) error {
	return m.Called(ctx, scope).Error(0)
}

type mockTicks struct {
	mock.Mock
}

func (m *mockTicks) Tick(ctx context.Context, scheduleID string, now time.Time) (backup.TickResult, error) {
	args := m.Called(ctx, scheduleID, now)
	return args.Get(0).(backup.TickResult), args.Error(1)
}

type recordingSink struct {
	events []model.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, e model.Event) error {
	s.events = append(s.events, e)
	return s.err
}

var _ event.Sink = (*recordingSink)(nil)

// newDummyRegistry returns a registry that serves the dummy provider and
// the factory behind it, so tests can inspect the emulated cloud.
func newDummyRegistry() (*backend.Registry, *dummy.Factory) {
	f := dummy.NewFactory()
	reg := backend.NewRegistry()
	reg.Register(dummy.Type, f.New)
	return reg, f
}

func dummySettings(opts map[string]string) model.ServiceSettings {
	return model.ServiceSettings{ID: "settings-1", Name: "dummy", Type: dummy.Type, Options: opts, State: model.StateInSync}
}

func testResourceContext(r model.Resource, opts map[string]string) *model.ResourceContext {
	return &model.ResourceContext{
		Resource: r,
		Link:     model.ServiceProjectLink{ID: "spl-1", TenantID: "tenant-a", State: model.StateInSync},
		Settings: dummySettings(opts),
	}
}
