package handler

import (
	"context"
	"net/http"

	"github.com/opennode/waldur-core-sub000/internal/api/request"
	"github.com/opennode/waldur-core-sub000/internal/api/response"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type SSHKeyService interface {
	Create(ctx context.Context, name, publicKey string) (*model.SSHKey, error)
}

// SSHKey handles SSH key registration.
type SSHKey struct {
	svc SSHKeyService
}

func NewSSHKey(svc SSHKeyService) *SSHKey {
	return &SSHKey{svc: svc}
}

// Create registers a public key. The fingerprint is computed server-side
// and is what provision requests refer to.
func (h *SSHKey) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSSHKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := h.svc.Create(r.Context(), req.Name, req.PublicKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, key)
}
