package handler

import (
	"errors"
	"net/http"

	"github.com/opennode/waldur-core-sub000/internal/api/response"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/core"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/template"
)

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	var quotaErr *model.QuotaExceededError
	if errors.As(err, &quotaErr) {
		response.WriteErrorDetails(w, http.StatusUnprocessableEntity, model.ErrQuotaExceeded.Error(), quotaErr.Details())
		return
	}
	var validationErr *template.ValidationError
	if errors.As(err, &validationErr) {
		response.WriteErrorDetails(w, http.StatusBadRequest, validationErr.Error(), validationErr.Details)
		return
	}
	response.WriteError(w, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalid), errors.Is(err, backup.ErrIncompleteMetadata):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrStateConflict), errors.Is(err, model.ErrConcurrentUpdate),
		errors.Is(err, template.ErrInactiveGroup):
		return http.StatusConflict
	case errors.Is(err, model.ErrBackendQuota):
		return http.StatusForbidden
	case errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// resourceURL is the absolute URL of a resource as seen by the caller.
func resourceURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + "/api/v1/resources/" + id
}
