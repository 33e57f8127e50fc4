package throttle

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennode/waldur-core-sub000/internal/metrics"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return client, mr
}

func TestAcquire_RespectsConcurrency(t *testing.T) {
	client, mr := setupTestRedis(t)
	th := New(client, map[string]Limits{"provision": {Concurrency: 2, RetryDelay: time.Second, Lease: time.Hour}}, zerolog.Nop())
	ctx := context.Background()

	ok, err := th.Acquire(ctx, "provision", "https://keystone.example")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = th.Acquire(ctx, "provision", "https://keystone.example")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = th.Acquire(ctx, "provision", "https://keystone.example")
	require.NoError(t, err)
	assert.False(t, ok, "third caller must wait")

	held, err := mr.Get(Key("provision", "https://keystone.example"))
	require.NoError(t, err)
	assert.Equal(t, "2", held, "rejected acquire must not keep its slot")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ThrottleInFlight.WithLabelValues("provision", "https://keystone.example")))

	require.NoError(t, th.Release(ctx, "provision", "https://keystone.example"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ThrottleInFlight.WithLabelValues("provision", "https://keystone.example")))
}

func TestAcquire_EndpointsAreIndependent(t *testing.T) {
	client, _ := setupTestRedis(t)
	th := New(client, nil, zerolog.Nop())
	ctx := context.Background()

	ok, err := th.Acquire(ctx, "provision", "endpoint-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = th.Acquire(ctx, "provision", "endpoint-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_FreesSlot(t *testing.T) {
	client, _ := setupTestRedis(t)
	th := New(client, nil, zerolog.Nop())
	ctx := context.Background()

	ok, err := th.Acquire(ctx, "snapshot", "ep")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = th.Acquire(ctx, "snapshot", "ep")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, th.Release(ctx, "snapshot", "ep"))

	ok, err = th.Acquire(ctx, "snapshot", "ep")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_NeverBelowZero(t *testing.T) {
	client, mr := setupTestRedis(t)
	th := New(client, nil, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, th.Release(ctx, "snapshot", "ep"))
	require.NoError(t, th.Release(ctx, "snapshot", "ep"))

	if mr.Exists(Key("snapshot", "ep")) {
		held, err := mr.Get(Key("snapshot", "ep"))
		require.NoError(t, err)
		assert.Equal(t, "0", held)
	}
	assert.Zero(t, testutil.ToFloat64(metrics.ThrottleInFlight.WithLabelValues("snapshot", "ep")))
}

func TestAcquire_LeaseExpiresStaleHolders(t *testing.T) {
	client, mr := setupTestRedis(t)
	th := New(client, map[string]Limits{"provision": {Concurrency: 1, RetryDelay: time.Second, Lease: time.Minute}}, zerolog.Nop())
	ctx := context.Background()

	ok, err := th.Acquire(ctx, "provision", "ep")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, time.Minute, mr.TTL(Key("provision", "ep")))
	mr.FastForward(2 * time.Minute)

	ok, err = th.Acquire(ctx, "provision", "ep")
	require.NoError(t, err)
	assert.True(t, ok, "a crashed holder's slot must expire with its lease")
}

func TestAcquire_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	th := New(client, nil, zerolog.Nop())
	mr.Close()

	_, err := th.Acquire(context.Background(), "provision", "ep")
	assert.Error(t, err)
}

func TestClientConfig_TLSIsExplicit(t *testing.T) {
	assert.Nil(t, ClientConfig{Addr: "redis:6379", Password: "s3cret"}.options().TLSConfig)

	opts := ClientConfig{Addr: "redis:6379", TLS: true}.options()
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
}

func TestNewClient_PasswordOverPlaintext(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	client, err := NewClient(context.Background(), ClientConfig{Addr: mr.Addr(), Password: "s3cret"})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	_, err = NewClient(context.Background(), ClientConfig{Addr: mr.Addr(), Password: "wrong"})
	assert.Error(t, err)
}

func TestLimits_Defaults(t *testing.T) {
	th := New(nil, map[string]Limits{"provision": {Concurrency: 3}}, zerolog.Nop())
	assert.Equal(t, DefaultLimits, th.Limits("destroy"))
	assert.Equal(t, 3, th.Limits("provision").Concurrency)
	assert.Equal(t, 1, DefaultLimits.Concurrency)
	assert.Equal(t, 30*time.Second, DefaultLimits.RetryDelay)
	assert.Equal(t, time.Hour, DefaultLimits.Lease)
}

func TestParseOverrides(t *testing.T) {
	doc := []byte(`
operations:
  provision:
    concurrency: 4
    retry_delay: 10s
  snapshot:
    lease: 30m
`)
	got, err := ParseOverrides(doc)
	require.NoError(t, err)

	assert.Equal(t, Limits{Concurrency: 4, RetryDelay: 10 * time.Second, Lease: time.Hour}, got["provision"])
	assert.Equal(t, Limits{Concurrency: 1, RetryDelay: 30 * time.Second, Lease: 30 * time.Minute}, got["snapshot"])
}

func TestParseOverrides_BadDuration(t *testing.T) {
	_, err := ParseOverrides([]byte("operations:\n  provision:\n    retry_delay: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_delay")
}

func TestLoadOverrides(t *testing.T) {
	got, err := LoadOverrides("")
	require.NoError(t, err)
	assert.Empty(t, got)

	path := filepath.Join(t.TempDir(), "throttle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("operations:\n  destroy:\n    concurrency: 2\n"), 0o600))
	got, err = LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got["destroy"].Concurrency)

	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
