package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/quota"
)

func TestQuotaService_Get(t *testing.T) {
	gate := &mockGate{}
	svc := NewQuotaService(gate)
	ctx := context.Background()
	scope := model.Scope{Type: model.ScopeLink, ID: "spl-1"}

	want := []model.Quota{{ScopeType: model.ScopeLink, ScopeID: "spl-1", Name: model.QuotaVCPU, Limit: 20, Usage: 4}}
	gate.On("Get", ctx, scope).Return(want, nil)

	got, err := svc.Get(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQuotaService_SetLimitIsUserOrigin(t *testing.T) {
	gate := &mockGate{}
	svc := NewQuotaService(gate)
	ctx := context.Background()
	scope := model.Scope{Type: model.ScopeProject, ID: "proj-1"}

	gate.On("SetLimit", ctx, scope, model.QuotaRAM, float64(8192), quota.OriginUser).Return(nil)

	require.NoError(t, svc.SetLimit(ctx, scope, model.QuotaRAM, 8192))
	gate.AssertExpectations(t)
}

func TestQuotaService_SetLimitBackendOwned(t *testing.T) {
	gate := &mockGate{}
	svc := NewQuotaService(gate)
	ctx := context.Background()
	scope := model.Scope{Type: model.ScopeLink, ID: "spl-1"}

	gate.On("SetLimit", ctx, scope, model.QuotaVCPU, float64(10), quota.OriginUser).Return(model.ErrBackendQuota)

	err := svc.SetLimit(ctx, scope, model.QuotaVCPU, 10)
	assert.ErrorIs(t, err, model.ErrBackendQuota)
}

func TestQuotaService_UnknownScope(t *testing.T) {
	gate := &mockGate{}
	svc := NewQuotaService(gate)

	_, err := svc.Get(context.Background(), model.Scope{Type: "galaxy", ID: "x"})
	assert.ErrorIs(t, err, ErrInvalid)

	err = svc.SetLimit(context.Background(), model.Scope{Type: model.ScopeCustomer}, model.QuotaProjects, 1)
	assert.ErrorIs(t, err, ErrInvalid)
	gate.AssertNotCalled(t, "SetLimit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
