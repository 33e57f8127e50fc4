package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

func quotaRequest(method string, body any) *http.Request {
	r := newRequest(method, "/api/v1/quotas/spl/spl-1", body)
	return withChiURLParams(r, map[string]string{"scopeType": "spl", "scopeID": "spl-1"})
}

func TestQuotaGet(t *testing.T) {
	svc := &mockQuotaService{}
	h := NewQuota(svc)
	rec := httptest.NewRecorder()
	scope := model.Scope{Type: model.ScopeLink, ID: "spl-1"}

	svc.On("Get", mock.Anything, scope).Return([]model.Quota{{ScopeType: model.ScopeLink, ScopeID: "spl-1", Name: "vcpu", Limit: 20, Usage: 2}}, nil)

	h.Get(rec, quotaRequest(http.MethodGet, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"vcpu"`)
}

func TestQuotaSet_AppliesEveryLimit(t *testing.T) {
	svc := &mockQuotaService{}
	h := NewQuota(svc)
	rec := httptest.NewRecorder()
	scope := model.Scope{Type: model.ScopeLink, ID: "spl-1"}

	svc.On("SetLimit", mock.Anything, scope, "ram", float64(8192)).Return(nil).Once()
	svc.On("SetLimit", mock.Anything, scope, "vcpu", float64(-1)).Return(nil).Once()
	svc.On("Get", mock.Anything, scope).Return([]model.Quota{}, nil)

	h.Set(rec, quotaRequest(http.MethodPut, map[string]any{"limits": map[string]any{"vcpu": -1, "ram": 8192}}))

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestQuotaSet_BackendOwned(t *testing.T) {
	svc := &mockQuotaService{}
	h := NewQuota(svc)
	rec := httptest.NewRecorder()

	svc.On("SetLimit", mock.Anything, mock.Anything, "vcpu", float64(10)).Return(fmt.Errorf("quota vcpu: %w", model.ErrBackendQuota))

	h.Set(rec, quotaRequest(http.MethodPut, map[string]any{"limits": map[string]any{"vcpu": 10}}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestQuotaSet_EmptyLimits(t *testing.T) {
	h := NewQuota(&mockQuotaService{})
	rec := httptest.NewRecorder()

	h.Set(rec, quotaRequest(http.MethodPut, map[string]any{"limits": map[string]any{}}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
