package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opennode/waldur-core-sub000/internal/api/request"
	"github.com/opennode/waldur-core-sub000/internal/api/response"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type TemplateService interface {
	Provision(ctx context.Context, groupID string, additional map[string]any) (*model.TemplateGroupResult, error)
	GetResult(ctx context.Context, id string) (*model.TemplateGroupResult, error)
}

type Template struct {
	svc TemplateService
}

func NewTemplate(svc TemplateService) *Template {
	return &Template{svc: svc}
}

// Provision runs a template group. A rejection of the first template comes
// back as 400 with the API's error body in details.
func (h *Template) Provision(w http.ResponseWriter, r *http.Request) {
	groupID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.ProvisionTemplateGroup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.Provision(r.Context(), groupID, req.Additional)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, result)
}

func (h *Template) GetResult(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.GetResult(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}
