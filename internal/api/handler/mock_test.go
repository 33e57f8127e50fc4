package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/opennode/waldur-core-sub000/internal/core"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type mockResourceService struct {
	mock.Mock
}

func (m *mockResourceService) Provision(ctx context.Context, req core.ProvisionRequest) (*model.Resource, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *mockResourceService) Get(ctx context.Context, id string) (*model.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *mockResourceService) Start(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockResourceService) Stop(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockResourceService) Restart(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockResourceService) Resize(ctx context.Context, id, flavorName string) error {
	return m.Called(ctx, id, flavorName).Error(0)
}

func (m *mockResourceService) ExtendDisk(ctx context.Context, id string, newSize int) error {
	return m.Called(ctx, id, newSize).Error(0)
}

func (m *mockResourceService) Destroy(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockResourceService) Recover(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockBackupService struct {
	mock.Mock
}

func (m *mockBackupService) Create(ctx context.Context, req core.BackupRequest) (*model.Backup, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *mockBackupService) Get(ctx context.Context, id string) (*model.Backup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *mockBackupService) Restore(ctx context.Context, req core.RestoreRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockBackupService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockScheduleService struct {
	mock.Mock
}

func (m *mockScheduleService) Create(ctx context.Context, req core.ScheduleRequest) (*model.BackupSchedule, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupSchedule), args.Error(1)
}

func (m *mockScheduleService) Get(ctx context.Context, id string) (*model.BackupSchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupSchedule), args.Error(1)
}

func (m *mockScheduleService) List(ctx context.Context, resourceID string) ([]model.BackupSchedule, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BackupSchedule), args.Error(1)
}

func (m *mockScheduleService) Activate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockScheduleService) Deactivate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockScheduleService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockTemplateService struct {
	mock.Mock
}

func (m *mockTemplateService) Provision(ctx context.Context, groupID string, additional map[string]any) (*model.TemplateGroupResult, error) {
	args := m.Called(ctx, groupID, additional)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemplateGroupResult), args.Error(1)
}

func (m *mockTemplateService) GetResult(ctx context.Context, id string) (*model.TemplateGroupResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemplateGroupResult), args.Error(1)
}

type mockQuotaService struct {
	mock.Mock
}

func (m *mockQuotaService) Get(ctx context.Context, scope model.Scope) ([]model.Quota, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Quota), args.Error(1)
}

func (m *mockQuotaService) SetLimit(ctx context.Context, scope model.Scope, name string, limit float64) error {
	return m.Called(ctx, scope, name, limit).Error(0)
}

type mockLinkService struct {
	mock.Mock
}

func (m *mockLinkService) Sync(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLinkService) Recover(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLinkService) SyncSettings(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLinkService) RecoverSettings(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockSSHKeyService struct {
	mock.Mock
}

func (m *mockSSHKeyService) Create(ctx context.Context, name, publicKey string) (*model.SSHKey, error) {
	args := m.Called(ctx, name, publicKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SSHKey), args.Error(1)
}
