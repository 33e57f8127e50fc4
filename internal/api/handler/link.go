package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opennode/waldur-core-sub000/internal/api/request"
	"github.com/opennode/waldur-core-sub000/internal/api/response"
)

type LinkService interface {
	Sync(ctx context.Context, id string) error
	Recover(ctx context.Context, id string) error
	SyncSettings(ctx context.Context, id string) error
	RecoverSettings(ctx context.Context, id string) error
}

// Link handles synchronisation of service project links and service
// settings.
type Link struct {
	svc LinkService
}

func NewLink(svc LinkService) *Link {
	return &Link{svc: svc}
}

func (h *Link) run(name string, op func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := request.RequireID(chi.URLParam(r, "id"))
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := op(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		response.WriteStatus(w, http.StatusAccepted, name+" was scheduled")
	}
}

func (h *Link) Sync(w http.ResponseWriter, r *http.Request) {
	h.run("sync", h.svc.Sync)(w, r)
}

func (h *Link) Recover(w http.ResponseWriter, r *http.Request) {
	h.run("recover", h.svc.Recover)(w, r)
}

func (h *Link) SyncSettings(w http.ResponseWriter, r *http.Request) {
	h.run("sync", h.svc.SyncSettings)(w, r)
}

func (h *Link) RecoverSettings(w http.ResponseWriter, r *http.Request) {
	h.run("recover", h.svc.RecoverSettings)(w, r)
}
