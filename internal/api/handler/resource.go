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

// ResourceService is the part of core.ResourceService the handler uses.
type ResourceService interface {
	Provision(ctx context.Context, req core.ProvisionRequest) (*model.Resource, error)
	Get(ctx context.Context, id string) (*model.Resource, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	Resize(ctx context.Context, id, flavorName string) error
	ExtendDisk(ctx context.Context, id string, newSize int) error
	Destroy(ctx context.Context, id string) error
	Recover(ctx context.Context, id string) error
}

// Resource handles provisioning and lifecycle actions of resources.
type Resource struct {
	svc ResourceService
}

func NewResource(svc ResourceService) *Resource {
	return &Resource{svc: svc}
}

// resourceView adds the resource URL, which template groups poll.
type resourceView struct {
	*model.Resource
	URL string `json:"url"`
}

func view(r *http.Request, res *model.Resource) resourceView {
	return resourceView{Resource: res, URL: resourceURL(r, res.ID)}
}

// Provision returns a handler creating resources of the given type.
func (h *Resource) Provision(resourceType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req request.ProvisionResource
		if err := request.Decode(r, &req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := h.svc.Provision(r.Context(), core.ProvisionRequest{
			Type:             resourceType,
			LinkID:           req.ServiceProjectLink,
			Name:             req.Name,
			Description:      req.Description,
			Tags:             req.Tags,
			FlavorName:       req.Flavor,
			ImageName:        req.Image,
			KeyFingerprint:   req.SSHKey,
			UserData:         req.UserData,
			SystemVolumeSize: req.SystemVolumeSize,
			DataVolumeSize:   req.DataVolumeSize,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusCreated, view(r, res))
	}
}

func (h *Resource) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, view(r, res))
}

// action wraps a parameterless lifecycle operation.
func (h *Resource) action(name string, op func(context.Context, string) error) http.HandlerFunc {
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

func (h *Resource) Start(w http.ResponseWriter, r *http.Request) {
	h.action("start", h.svc.Start)(w, r)
}

func (h *Resource) Stop(w http.ResponseWriter, r *http.Request) {
	h.action("stop", h.svc.Stop)(w, r)
}

func (h *Resource) Restart(w http.ResponseWriter, r *http.Request) {
	h.action("restart", h.svc.Restart)(w, r)
}

func (h *Resource) Recover(w http.ResponseWriter, r *http.Request) {
	h.action("recover", h.svc.Recover)(w, r)
}

func (h *Resource) Destroy(w http.ResponseWriter, r *http.Request) {
	h.action("destroy", h.svc.Destroy)(w, r)
}

func (h *Resource) Resize(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.ResizeResource
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Resize(r.Context(), id, req.Flavor); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, "resize was scheduled")
}

func (h *Resource) ExtendDisk(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.ExtendDisk
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ExtendDisk(r.Context(), id, req.DiskSize); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, "disk extension was scheduled")
}
