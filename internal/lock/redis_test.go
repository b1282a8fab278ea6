package lock

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, client.Ping(ctx).Err())

	return client, func() {
		client.Close()
		_ = container.Terminate(ctx)
	}
}

func TestRedis_ExclusiveLease(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	a := NewRedisWithClient(client, 3*time.Second, nil)
	b := NewRedisWithClient(client, 3*time.Second, nil)

	lease, err := a.Acquire(ctx, Key("KQ.m@SHFE.rb"))
	require.NoError(t, err)

	_, err = b.Acquire(ctx, Key("KQ.m@SHFE.rb"))
	assert.ErrorIs(t, err, ErrHeld)

	// The refresh keeps the lease past its ttl.
	time.Sleep(4 * time.Second)
	_, err = b.Acquire(ctx, Key("KQ.m@SHFE.rb"))
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, lease.Release(ctx))
	assert.ErrorIs(t, lease.Release(ctx), ErrLost)

	other, err := b.Acquire(ctx, Key("KQ.m@SHFE.rb"))
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))
}

func TestRedis_ReleaseAfterTakeover(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	a := NewRedisWithClient(client, 3*time.Second, nil)

	lease, err := a.Acquire(ctx, Key("KQ.m@DCE.a"))
	require.NoError(t, err)

	// Simulate expiry followed by another owner.
	require.NoError(t, client.Set(ctx, Key("KQ.m@DCE.a"), "someone-else", time.Minute).Err())

	assert.ErrorIs(t, lease.Release(ctx), ErrLost)
	val, err := client.Get(ctx, Key("KQ.m@DCE.a")).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedis_TakeoverMarksLeaseLost(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	a := NewRedisWithClient(client, 3*time.Second, nil)

	lease, err := a.Acquire(ctx, Key("KQ.m@CZCE.SR"))
	require.NoError(t, err)
	assert.NoError(t, lease.Err())

	// Expiry followed by another owner: the next refresh notices.
	require.NoError(t, client.Set(ctx, Key("KQ.m@CZCE.SR"), "someone-else", time.Minute).Err())
	require.Eventually(t, func() bool {
		return errors.Is(lease.Err(), ErrLost)
	}, 5*time.Second, 100*time.Millisecond)

	assert.ErrorIs(t, lease.Release(ctx), ErrLost)
}
