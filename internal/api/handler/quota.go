package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/opennode/waldur-core-sub000/internal/api/request"
	"github.com/opennode/waldur-core-sub000/internal/api/response"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type QuotaService interface {
	Get(ctx context.Context, scope model.Scope) ([]model.Quota, error)
	SetLimit(ctx context.Context, scope model.Scope, name string, limit float64) error
}

type Quota struct {
	svc QuotaService
}

func NewQuota(svc QuotaService) *Quota {
	return &Quota{svc: svc}
}

func scopeFrom(r *http.Request) (model.Scope, error) {
	id, err := request.RequireID(chi.URLParam(r, "scopeID"))
	if err != nil {
		return model.Scope{}, err
	}
	return model.Scope{Type: model.ScopeType(chi.URLParam(r, "scopeType")), ID: id}, nil
}

func (h *Quota) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	quotas, err := h.svc.Get(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, quotas)
}

// Set updates several limits of one scope. Limits are applied in name
// order and the first failure stops the update.
func (h *Quota) Set(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.SetQuotaLimits
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	names := make([]string, 0, len(req.Limits))
	for name := range req.Limits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.svc.SetLimit(r.Context(), scope, name, req.Limits[name]); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	quotas, err := h.svc.Get(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, quotas)
}
