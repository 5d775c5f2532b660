package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}
	port := 6379
	if value := os.Getenv("REDIS_PORT"); value != "" {
		parsed, err := strconv.Atoi(value)
		require.NoError(t, err)
		port = parsed
	}

	client, err := NewClient(Config{Host: host, Port: port}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGuard(t *testing.T) {
	client := testClient(t)
	prefix := "fern:test:" + uuid.New().String() + ":"
	guard := NewGuard(client, prefix, time.Minute)
	other := NewGuard(client, prefix, time.Minute)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = other.Acquire(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, other.Release(ctx, "hash-1"), ErrGuardNotHeld)

	require.NoError(t, guard.Release(ctx, "hash-1"))
	assert.ErrorIs(t, guard.Release(ctx, "hash-1"), ErrGuardNotHeld)

	ok, err = other.Acquire(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other.Release(ctx, "hash-1"))
}
