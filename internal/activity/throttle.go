package activity

import (
	"context"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/throttle"
)

// Throttle contains the activities that bound concurrent calls per
// provider endpoint.
type Throttle struct {
	throttler *throttle.Throttler
}

func NewThrottle(t *throttle.Throttler) *Throttle {
	return &Throttle{throttler: t}
}

// ThrottleParams names one throttled operation against one endpoint.
type ThrottleParams struct {
	Op       string `json:"op"`
	Endpoint string `json:"endpoint"`
}

// ThrottleGrant is the outcome of an acquire attempt. RetryDelay is how
// long the workflow should sleep before trying again.
type ThrottleGrant struct {
	Acquired   bool          `json:"acquired"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// AcquireThrottle takes a slot for params.Op on params.Endpoint.
func (a *Throttle) AcquireThrottle(ctx context.Context, params ThrottleParams) (ThrottleGrant, error) {
	ok, err := a.throttler.Acquire(ctx, params.Op, params.Endpoint)
	if err != nil {
		return ThrottleGrant{}, err
	}
	return ThrottleGrant{Acquired: ok, RetryDelay: a.throttler.Limits(params.Op).RetryDelay}, nil
}

// ReleaseThrottle gives the slot back.
func (a *Throttle) ReleaseThrottle(ctx context.Context, params ThrottleParams) error {
	return a.throttler.Release(ctx, params.Op, params.Endpoint)
}
