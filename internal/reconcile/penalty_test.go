package reconcile

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPenaltySequence(t *testing.T) {
	_, client := setupTestRedis(t)
	p := NewPenalty(client)
	ctx := context.Background()
	key := PenaltyKey("service_project_link", "spl-1")

	// run 1 fails
	ok, err := p.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	n, err := p.Failed(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// run 2 skipped, run 3 fails again
	ok, _ = p.Allow(ctx, key)
	assert.False(t, ok)
	ok, _ = p.Allow(ctx, key)
	assert.True(t, ok)
	n, _ = p.Failed(ctx, key)
	assert.Equal(t, 2, n)

	// runs 4 and 5 skipped, run 6 succeeds
	ok, _ = p.Allow(ctx, key)
	assert.False(t, ok)
	ok, _ = p.Allow(ctx, key)
	assert.False(t, ok)
	ok, _ = p.Allow(ctx, key)
	assert.True(t, ok)
	require.NoError(t, p.Succeeded(ctx, key))

	ok, _ = p.Allow(ctx, key)
	assert.True(t, ok)
}

func TestPenaltyCapped(t *testing.T) {
	mr, client := setupTestRedis(t)
	p := NewPenalty(client)
	ctx := context.Background()
	key := PenaltyKey("service_settings", "s-1")

	var n int
	for i := 0; i < 6; i++ {
		n, _ = p.Failed(ctx, key)
	}
	assert.Equal(t, MaxPenalty, n)
	assert.Equal(t, PenaltyLifetime, mr.TTL(key))
}

func TestPenaltyRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()
	_, err := NewPenalty(client).Allow(context.Background(), "penalty:x:y")
	assert.Error(t, err)
}
