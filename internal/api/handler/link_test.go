package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

func TestLinkSync(t *testing.T) {
	svc := &mockLinkService{}
	h := NewLink(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/api/v1/links/spl-1/sync", nil), "id", "spl-1")

	svc.On("Sync", mock.Anything, "spl-1").Return(nil)

	h.Sync(rec, r)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"sync was scheduled"}`, rec.Body.String())
}

func TestLinkRecover_NotErred(t *testing.T) {
	svc := &mockLinkService{}
	h := NewLink(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/api/v1/links/spl-1/recover", nil), "id", "spl-1")

	svc.On("Recover", mock.Anything, "spl-1").Return(&model.StateConflictError{
		Entity: model.EntityLink, ID: "spl-1", State: model.StateInSync, Transition: "recover",
	})

	h.Recover(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettingsSync(t *testing.T) {
	svc := &mockLinkService{}
	h := NewLink(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/api/v1/settings/settings-1/sync", nil), "id", "settings-1")

	svc.On("SyncSettings", mock.Anything, "settings-1").Return(nil)

	h.SyncSettings(rec, r)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	svc.AssertExpectations(t)
}
