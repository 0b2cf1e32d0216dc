package ports

import (
	"context"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/jmoiron/sqlx"
)

type (
	// OutboxRepository handles outbox events for reliable event delivery.
	OutboxRepository interface {
		// SaveInTx stages an outbox event inside the caller's transaction,
		// so either the business mutation and the event are both durable
		// or neither is.
		SaveInTx(ctx context.Context, tx *sqlx.Tx, event *domain.OutboxEvent) error

		// ClaimPending returns pending events oldest first, bounded by
		// limit. Safe under concurrent publishers.
		ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)

		// MarkPublished moves an event to PUBLISHED and stamps publishedAt.
		MarkPublished(ctx context.Context, eventID string) error

		// MarkFailed records a failed publish attempt; the event is
		// promoted to FAILED once maxAttempts is reached.
		MarkFailed(ctx context.Context, eventID string, errorDetails string, maxAttempts int) error

		// SettleInTx moves the awaited saga legs matching the correlation
		// and event type to COMPLETED, disarming their timeout deadline.
		// Settling an already-settled or timed-out leg is a no-op.
		SettleInTx(ctx context.Context, tx *sqlx.Tx, correlationID string, eventType domain.EventType) error

		// ClaimExpired atomically moves events whose expiresAt has passed
		// (strictly before now) to TIMEOUT and returns them, oldest first.
		// Both unpublished and published-but-unsettled legs are claimed;
		// a published leg stays armed until its reply settles it.
		ClaimExpired(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)

		// DeletePublishedBefore removes published events older than the
		// retention cutoff and reports how many rows went away.
		DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// IdempotencyStore answers "seen before?" for consumer-derived keys.
	IdempotencyStore interface {
		IsProcessed(ctx context.Context, consumerName, key string) (bool, error)
		MarkProcessed(ctx context.Context, consumerName, key string, ttl time.Duration) error

		// CheckAndMark atomically marks the key and reports whether it was
		// already present (SETNX semantics).
		CheckAndMark(ctx context.Context, consumerName, key string, ttl time.Duration) (duplicate bool, err error)

		// Release drops a claimed key so a redelivery can retry the step
		// after the claimed attempt failed.
		Release(ctx context.Context, consumerName, key string) error
	}

	// OrderRepository persists the order saga state.
	OrderRepository interface {
		CreateInTx(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error
		Find(ctx context.Context, orderID string) (*domain.Order, error)

		// UpdateStatusInTx applies a saga transition inside the caller's
		// transaction so the state change commits together with the events
		// it stages; the expected current status guards against lost
		// updates.
		UpdateStatusInTx(ctx context.Context, tx *sqlx.Tx, orderID string, from, to domain.OrderStatus) error
	}

	// InventoryRepository persists stock levels and reservations.
	InventoryRepository interface {
		Available(ctx context.Context, productID string) (int, error)

		// ReserveInTx moves quantity from available to reserved inside the
		// caller's transaction; fails with domain.ErrInsufficientStock when
		// availability is short.
		ReserveInTx(ctx context.Context, tx *sqlx.Tx, orderID, productID string, quantity int) error

		// Release returns a reservation to available stock.
		Release(ctx context.Context, orderID string) error

		// Consume finalizes a reservation after successful payment.
		Consume(ctx context.Context, orderID string) error

		// Restock adds quantity back to available stock.
		Restock(ctx context.Context, productID string, quantity int) error

		// CreateProduct registers a product with its initial stock;
		// replayed creations update the stock level instead of failing.
		CreateProduct(ctx context.Context, productID string, stock int) error

		// DeleteProduct drops a product's stock row.
		DeleteProduct(ctx context.Context, productID string) error
	}

	// Transactor runs a function inside a database transaction; the
	// outbox stage call enlists through the same *sqlx.Tx.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	}
)
