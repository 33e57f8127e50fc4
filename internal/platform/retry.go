package platform

import (
	"errors"
	"net/http"
	"net/url"
	"syscall"
)

// Replayable reports whether a failed HTTP call may be sent again without
// risking a duplicate side effect. status is zero when no response arrived.
//
// Throttling (429) and refused connections never reached the handler, so
// every method is replayed. Server errors and broken transports leave the
// outcome unknown and are replayed for idempotent methods only.
func Replayable(method string, status int, err error) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status == 0 && errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	if !Idempotent(method) {
		return false
	}
	if status >= 500 {
		return true
	}
	var ue *url.Error
	return status == 0 && errors.As(err, &ue)
}

// Idempotent reports whether repeating method has the effect of sending it
// once.
func Idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
