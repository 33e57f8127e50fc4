package model

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStateConflict    = errors.New("operation not allowed in current state")
	ErrConcurrentUpdate = errors.New("entity was updated concurrently")
	ErrNotImplemented   = errors.New("operation not implemented by backend")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrThrottled        = errors.New("throttled")
	ErrBackendQuota     = errors.New("quota is managed by the backend")
)

// Error kinds. They double as Temporal application error types so a
// workflow can tell the failure apart after the activity boundary.
const (
	KindNotFound         = "NotFound"
	KindStateConflict    = "StateConflict"
	KindConcurrentUpdate = "ConcurrentUpdate"
	KindBackend          = "BackendError"
	KindNotImplemented   = "BackendNotImplemented"
	KindQuotaExceeded    = "QuotaExceeded"
	KindThrottled        = "Throttled"
	KindBackendQuota     = "BackendQuota"
)

// StateConflictError is returned when a transition is not permitted from
// the entity's current state.
type StateConflictError struct {
	Entity     string
	ID         string
	State      State
	Transition string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %s: transition %q not allowed in state %s", e.Entity, e.ID, e.Transition, e.State)
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

// BackendError wraps any provider failure.
type BackendError struct {
	Op         string
	Message    string
	StatusCode int
	Err        error
}

// NewBackendError wraps err as a backend failure of op. A nil err yields nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, ErrNotImplemented) {
		return err
	}
	return &BackendError{Op: op, Message: err.Error(), Err: err}
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s failed: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// QuotaExceededError carries one entry per violated quota.
type QuotaExceededError struct {
	Breakdown *multierror.Error
}

func (e *QuotaExceededError) Error() string {
	if e.Breakdown == nil || len(e.Breakdown.Errors) == 0 {
		return ErrQuotaExceeded.Error()
	}
	msgs := make([]string, 0, len(e.Breakdown.Errors))
	for _, err := range e.Breakdown.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: %v", ErrQuotaExceeded, msgs)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Details returns the per-quota messages for display.
func (e *QuotaExceededError) Details() []string {
	if e.Breakdown == nil {
		return nil
	}
	out := make([]string, 0, len(e.Breakdown.Errors))
	for _, err := range e.Breakdown.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Kind classifies err into one of the engine's error kinds. It returns an
// empty string for errors that carry no domain meaning.
func Kind(err error) string {
	var be *BackendError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrConcurrentUpdate):
		return KindConcurrentUpdate
	case errors.Is(err, ErrNotImplemented):
		return KindNotImplemented
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrThrottled):
		return KindThrottled
	case errors.Is(err, ErrBackendQuota):
		return KindBackendQuota
	case errors.As(err, &be):
		return KindBackend
	}
	return ""
}

// Retryable reports whether an error of the given kind may succeed when the
// same step is attempted again.
func Retryable(kind string) bool {
	switch kind {
	case KindNotFound, KindStateConflict, KindNotImplemented, KindQuotaExceeded, KindBackendQuota:
		return false
	}
	return true
}
