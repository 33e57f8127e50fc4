package platform

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplayable(t *testing.T) {
	reset := &url.Error{Op: "Post", URL: "http://api", Err: errors.New("connection reset by peer")}
	refused := &url.Error{Op: "Post", URL: "http://api", Err: fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)}

	tests := []struct {
		name   string
		method string
		status int
		err    error
		want   bool
	}{
		{"get on bad gateway", http.MethodGet, http.StatusBadGateway, nil, true},
		{"delete on unavailable", http.MethodDelete, http.StatusServiceUnavailable, nil, true},
		{"post on bad gateway", http.MethodPost, http.StatusBadGateway, nil, false},
		{"post on throttling", http.MethodPost, http.StatusTooManyRequests, nil, true},
		{"post on reset", http.MethodPost, 0, reset, false},
		{"post on refused", http.MethodPost, 0, refused, true},
		{"get on reset", http.MethodGet, 0, reset, true},
		{"get on decode error", http.MethodGet, 0, errors.New("unexpected EOF"), false},
		{"get on bad request", http.MethodGet, http.StatusBadRequest, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Replayable(tt.method, tt.status, tt.err))
		})
	}
}
