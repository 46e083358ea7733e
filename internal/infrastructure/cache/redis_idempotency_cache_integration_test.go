//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisIdempotencyCache(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	c := NewRedisIdempotencyCacheWithClient(client, "test:idem:")
	require.NoError(t, c.Ping(ctx))

	record := integration.IdempotencyRecord{MessageID: uuid.New(), Hash: "abc"}
	require.NoError(t, c.Put(ctx, "order-1", record, time.Minute))

	got, ok, err := c.Get(ctx, "order-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record, *got)

	ttl, err := client.TTL(ctx, "test:idem:order-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	_, ok, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Set(ctx, "test:idem:broken", "not-json", time.Minute).Err())
	_, _, err = c.Get(ctx, "broken")
	assert.Error(t, err)
}
