package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MaxPenalty caps how many consecutive runs one failure can skip.
	MaxPenalty = 3
	// PenaltyLifetime bounds how long a penalty survives without new runs.
	PenaltyLifetime = 24 * time.Hour
)

// Penalty slows down reconciliation of entities whose pulls keep failing.
// After each failure the next `penalty` runs are skipped, and the penalty
// grows by one up to MaxPenalty. A success clears it.
type Penalty struct {
	client redis.Cmdable
}

func NewPenalty(client redis.Cmdable) *Penalty {
	return &Penalty{client: client}
}

// PenaltyKey builds the counter key of one entity.
func PenaltyKey(entity, id string) string {
	return fmt.Sprintf("penalty:%s:%s", entity, id)
}

// Allow reports whether the entity may run now, consuming one skip when
// it may not.
func (p *Penalty) Allow(ctx context.Context, key string) (bool, error) {
	counter, err := p.client.HGet(ctx, key, "counter").Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read penalty %s: %w", key, err)
	}
	if counter <= 0 {
		return true, nil
	}
	if err := p.client.HIncrBy(ctx, key, "counter", -1).Err(); err != nil {
		return false, fmt.Errorf("decrement penalty %s: %w", key, err)
	}
	return false, nil
}

// Failed raises the penalty and returns the number of runs to skip.
func (p *Penalty) Failed(ctx context.Context, key string) (int, error) {
	penalty, err := p.client.HGet(ctx, key, "penalty").Int()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("read penalty %s: %w", key, err)
	}
	if penalty < MaxPenalty {
		penalty++
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "counter", penalty, "penalty", penalty)
		pipe.Expire(ctx, key, PenaltyLifetime)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store penalty %s: %w", key, err)
	}
	return penalty, nil
}

// Succeeded clears the penalty.
func (p *Penalty) Succeeded(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear penalty %s: %w", key, err)
	}
	return nil
}
