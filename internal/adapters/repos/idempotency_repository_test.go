package repos

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdempotencyRepository(t *testing.T) (*IdempotencyRepository, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewIdempotencyRepository(client), server
}

func TestIdempotencyRepositoryMarkAndCheck(t *testing.T) {
	t.Parallel()

	repo, _ := newTestIdempotencyRepository(t)
	ctx := context.Background()

	processed, err := repo.IsProcessed(ctx, "inventory-consumer", "order:resv:ord-1")
	require.NoError(t, err)
	assert.False(t, processed)

	err = repo.MarkProcessed(ctx, "inventory-consumer", "order:resv:ord-1", time.Hour)
	require.NoError(t, err)

	processed, err = repo.IsProcessed(ctx, "inventory-consumer", "order:resv:ord-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestIdempotencyRepositoryKeysAreScopedByConsumer(t *testing.T) {
	t.Parallel()

	repo, _ := newTestIdempotencyRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessed(ctx, "inventory-consumer", "order:resv:ord-1", time.Hour))

	processed, err := repo.IsProcessed(ctx, "payment-consumer", "order:resv:ord-1")
	require.NoError(t, err)
	assert.False(t, processed, "another consumer's key must not collide")
}

func TestIdempotencyRepositoryCheckAndMark(t *testing.T) {
	t.Parallel()

	repo, _ := newTestIdempotencyRepository(t)
	ctx := context.Background()

	duplicate, err := repo.CheckAndMark(ctx, "order-consumer", "seckill:user-1:prod-9:1700000000", time.Hour)
	require.NoError(t, err)
	assert.False(t, duplicate, "first delivery wins")

	duplicate, err = repo.CheckAndMark(ctx, "order-consumer", "seckill:user-1:prod-9:1700000000", time.Hour)
	require.NoError(t, err)
	assert.True(t, duplicate, "second delivery of the same business key collapses")
}

func TestIdempotencyRepositoryReleaseReopensKey(t *testing.T) {
	t.Parallel()

	repo, _ := newTestIdempotencyRepository(t)
	ctx := context.Background()

	duplicate, err := repo.CheckAndMark(ctx, "payment-consumer", "payment:charge:ord-1", time.Hour)
	require.NoError(t, err)
	require.False(t, duplicate)

	// A failed step hands the claim back so the redelivery gets a real
	// attempt instead of a duplicate short-circuit.
	require.NoError(t, repo.Release(ctx, "payment-consumer", "payment:charge:ord-1"))

	duplicate, err = repo.CheckAndMark(ctx, "payment-consumer", "payment:charge:ord-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, duplicate, "released key must be claimable again")
}

func TestIdempotencyRepositoryReleaseUnknownKey(t *testing.T) {
	t.Parallel()

	repo, _ := newTestIdempotencyRepository(t)

	assert.NoError(t, repo.Release(context.Background(), "payment-consumer", "payment:charge:never-claimed"))
}

func TestIdempotencyRepositoryTTLExpiry(t *testing.T) {
	t.Parallel()

	repo, server := newTestIdempotencyRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessed(ctx, "order-consumer", "order:resv:ord-2", time.Minute))

	server.FastForward(2 * time.Minute)

	processed, err := repo.IsProcessed(ctx, "order-consumer", "order:resv:ord-2")
	require.NoError(t, err)
	assert.False(t, processed, "expired keys read as unseen")
}
