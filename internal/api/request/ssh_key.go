package request

// CreateSSHKey holds the request body for registering an SSH key. The
// name defaults to the key comment.
type CreateSSHKey struct {
	Name      string `json:"name" validate:"max=150"`
	PublicKey string `json:"public_key" validate:"required"`
}
