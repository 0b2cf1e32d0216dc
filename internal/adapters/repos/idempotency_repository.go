package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/redis/go-redis/v9"
)

// IdempotencyRepository answers "seen before?" for consumer-derived keys
// using SETNX semantics, so concurrent deliveries of the same logical
// event collapse to a single winner.
type IdempotencyRepository struct {
	client *redis.Client
}

func NewIdempotencyRepository(client *redis.Client) *IdempotencyRepository {
	return &IdempotencyRepository{
		client: client,
	}
}

func idempotencyKey(consumerName, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", consumerName, key)
}

// IsProcessed reports whether the key has been marked before.
func (r *IdempotencyRepository) IsProcessed(ctx context.Context, consumerName, key string) (bool, error) {
	count, err := r.client.Exists(ctx, idempotencyKey(consumerName, key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrIdempotencyUnavailable, err)
	}

	return count > 0, nil
}

// MarkProcessed records the key with the given TTL. Expiry is the only
// cleanup; no background sweep exists.
func (r *IdempotencyRepository) MarkProcessed(ctx context.Context, consumerName, key string, ttl time.Duration) error {
	if err := r.client.SetNX(ctx, idempotencyKey(consumerName, key), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIdempotencyUnavailable, err)
	}

	return nil
}

// CheckAndMark atomically marks the key and reports whether another
// delivery already owned it.
func (r *IdempotencyRepository) CheckAndMark(ctx context.Context, consumerName, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKey(consumerName, key), 1, ttl).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}

		return false, fmt.Errorf("%w: %w", domain.ErrIdempotencyUnavailable, err)
	}

	return !ok, nil
}

// Release drops a claimed key so the next delivery retries the step.
// Called when the work behind a fresh claim failed.
func (r *IdempotencyRepository) Release(ctx context.Context, consumerName, key string) error {
	if err := r.client.Del(ctx, idempotencyKey(consumerName, key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIdempotencyUnavailable, err)
	}

	return nil
}
