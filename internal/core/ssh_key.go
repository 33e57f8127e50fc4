package core

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// SSHKeyService registers user public keys. Keys are pushed to a link's
// provider when a resource using them is provisioned.
type SSHKeyService struct {
	store Store
}

func NewSSHKeyService(st Store) *SSHKeyService {
	return &SSHKeyService{store: st}
}

// Fingerprint parses an authorized_keys line and returns its SHA256
// fingerprint and the comment, if any.
func Fingerprint(publicKey string) (fingerprint, comment string, err error) {
	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(publicKey)))
	if err != nil {
		return "", "", invalid("invalid public key: %v", err)
	}
	return ssh.FingerprintSHA256(pub), comment, nil
}

// Create stores a key, returning the existing one when a key with the same
// fingerprint is already registered.
func (s *SSHKeyService) Create(ctx context.Context, name, publicKey string) (*model.SSHKey, error) {
	fp, comment, err := Fingerprint(publicKey)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetSSHKeyByFingerprint(ctx, fp)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	if name == "" {
		name = comment
	}
	if name == "" {
		return nil, invalid("key name is required")
	}
	key := &model.SSHKey{
		ID:          platform.NewID(),
		Name:        name,
		PublicKey:   strings.TrimSpace(publicKey),
		Fingerprint: fp,
	}
	if err := s.store.InsertSSHKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}
