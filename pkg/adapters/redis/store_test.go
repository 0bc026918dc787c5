package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ports.RunTraceStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))

	require.NoError(t, store.Append(context.Background(), domain.Event{ExecutionID: "e1"}))
	assert.True(t, mr.Exists("test:e1"))
	assert.True(t, mr.Exists("test:index"))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := setup(t)
	now := time.Unix(1_700_000_000, 0)
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Minute),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, domain.Event{ExecutionID: "short"}))
	assert.Equal(t, time.Minute, mr.TTL(redis.DefaultPrefix+"short"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, ids)

	mr.FastForward(2 * time.Minute)
	now = now.Add(2 * time.Minute)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Load(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}
