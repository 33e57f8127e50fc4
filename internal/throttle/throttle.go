// Package throttle caps concurrent heavy calls against one provider
// endpoint with a Redis counter that expires after a lease.
package throttle

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/metrics"
)

// ClientConfig locates the Redis instance holding the counters.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	// TLS dials with TLS 1.2 or later. It is independent of Password.
	TLS bool
}

func (c ClientConfig) options() *redis.Options {
	options := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return options
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type Throttler struct {
	client redis.Cmdable
	limits map[string]Limits
	logger zerolog.Logger
}

func New(client redis.Cmdable, overrides map[string]Limits, logger zerolog.Logger) *Throttler {
	if overrides == nil {
		overrides = map[string]Limits{}
	}
	return &Throttler{
		client: client,
		limits: overrides,
		logger: logger.With().Str("component", "throttle").Logger(),
	}
}

// Key is the counter key for an operation against an endpoint.
func Key(op, endpoint string) string {
	return fmt.Sprintf("throttle:%s:%s", op, endpoint)
}

// Limits returns the effective limits of an operation.
func (t *Throttler) Limits(op string) Limits {
	if l, ok := t.limits[op]; ok {
		return l
	}
	return DefaultLimits
}

// Acquire takes one slot for op against endpoint. It returns false when
// the endpoint is already at its concurrency limit. Every acquire renews
// the lease so a crashed holder cannot block the key forever.
func (t *Throttler) Acquire(ctx context.Context, op, endpoint string) (bool, error) {
	l := t.Limits(op)
	key := Key(op, endpoint)

	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.Lease)
		return nil
	})
	if err != nil {
		metrics.ThrottleAcquireTotal.WithLabelValues(op, "error").Inc()
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}

	if incr.Val() > int64(l.Concurrency) {
		held, err := t.client.Decr(ctx, key).Result()
		if err != nil {
			t.logger.Warn().Err(err).Str("key", key).Msg("failed to roll back throttle slot")
		} else {
			metrics.ThrottleInFlight.WithLabelValues(op, endpoint).Set(float64(held))
		}
		metrics.ThrottleAcquireTotal.WithLabelValues(op, "throttled").Inc()
		return false, nil
	}
	metrics.ThrottleInFlight.WithLabelValues(op, endpoint).Set(float64(incr.Val()))
	metrics.ThrottleAcquireTotal.WithLabelValues(op, "acquired").Inc()
	return true, nil
}

// releaseScript decrements without going below zero.
var releaseScript = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// Release returns a slot taken by Acquire.
func (t *Throttler) Release(ctx context.Context, op, endpoint string) error {
	key := Key(op, endpoint)
	held, err := releaseScript.Run(ctx, t.client, []string{key}).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	metrics.ThrottleInFlight.WithLabelValues(op, endpoint).Set(float64(held))
	return nil
}
