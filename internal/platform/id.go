// Package platform holds identifier and HTTP retry helpers shared by the
// provider clients.
package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const (
	backendIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	backendIDLength   = 10
)

// NewID returns a random UUID. Every conductor row is keyed by one.
func NewID() string {
	return uuid.NewString()
}

// idNamespace seeds DerivedID.
var idNamespace = uuid.MustParse("6f1c1f43-5a52-4b8e-9a53-2f0f3f7c9d11")

// DerivedID returns a UUID that is a pure function of key, so a retried
// step that creates a row can find the row its earlier attempt created.
func DerivedID(key string) string {
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// NewName returns prefix followed by random lowercase alphanumerics, the
// shape of provider-side identifiers such as "srv-k2x9..." or "vol-...".
func NewName(prefix string) string {
	b := make([]byte, backendIDLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = backendIDAlphabet[b[i]%byte(len(backendIDAlphabet))]
	}
	return prefix + string(b)
}
