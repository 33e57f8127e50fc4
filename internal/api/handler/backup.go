package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opennode/waldur-core-sub000/internal/api/request"
	"github.com/opennode/waldur-core-sub000/internal/api/response"
	"github.com/opennode/waldur-core-sub000/internal/core"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type BackupService interface {
	Create(ctx context.Context, req core.BackupRequest) (*model.Backup, error)
	Get(ctx context.Context, id string) (*model.Backup, error)
	Restore(ctx context.Context, req core.RestoreRequest) error
	Delete(ctx context.Context, id string) error
}

type Backup struct {
	svc BackupService
}

func NewBackup(svc BackupService) *Backup {
	return &Backup{svc: svc}
}

// Create backs up the resource in the path.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	resourceID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.svc.Create(r.Context(), core.BackupRequest{
		ResourceID:    resourceID,
		Description:   req.Description,
		RetentionDays: req.RetentionDays,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, b)
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, b)
}

// Restore creates a new resource from a READY backup.
func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.RestoreBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Restore(r.Context(), core.RestoreRequest{BackupID: id, Name: req.Name, FlavorName: req.Flavor}); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, "restoration was scheduled")
}

func (h *Backup) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, "deletion was scheduled")
}

type BackupScheduleService interface {
	Create(ctx context.Context, req core.ScheduleRequest) (*model.BackupSchedule, error)
	Get(ctx context.Context, id string) (*model.BackupSchedule, error)
	List(ctx context.Context, resourceID string) ([]model.BackupSchedule, error)
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type BackupSchedule struct {
	svc BackupScheduleService
}

func NewBackupSchedule(svc BackupScheduleService) *BackupSchedule {
	return &BackupSchedule{svc: svc}
}

func (h *BackupSchedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackupSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sc, err := h.svc.Create(r.Context(), core.ScheduleRequest{
		ResourceID:    req.Resource,
		Description:   req.Description,
		Schedule:      req.Schedule,
		Timezone:      req.Timezone,
		RetentionDays: req.RetentionDays,
		MaxBackups:    req.MaxBackups,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, sc)
}

// List returns schedules, filtered by the resource query parameter.
func (h *BackupSchedule) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.svc.List(r.Context(), r.URL.Query().Get("resource"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if schedules == nil {
		schedules = []model.BackupSchedule{}
	}
	response.WriteJSON(w, http.StatusOK, schedules)
}

func (h *BackupSchedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sc)
}

func (h *BackupSchedule) toggle(op func(context.Context, string) error) http.HandlerFunc {
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
		sc, err := h.svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, sc)
	}
}

func (h *BackupSchedule) Activate(w http.ResponseWriter, r *http.Request) {
	h.toggle(h.svc.Activate)(w, r)
}

func (h *BackupSchedule) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(h.svc.Deactivate)(w, r)
}

func (h *BackupSchedule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
