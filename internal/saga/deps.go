// Package saga wires the per-workflow consumer handlers that together
// drive the order state machine across services. Each handler owns one
// queue; compensations and failure answers flow back through the outbox.
package saga

import (
	"context"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/internal/service"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

// Deps carries everything a saga handler needs. Handlers are built by
// factory functions taking this struct, so tests can swap any piece.
type Deps struct {
	OrderService     service.OrderService
	InventoryService service.InventoryService
	PaymentService   service.PaymentService
	Idempotency      ports.IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           infrastructure.Logger
	Metrics          infrastructure.Metrics
}

// once claims the business-derived idempotency key, runs the step, and
// releases the claim when the step fails so a redelivery can retry it.
// A duplicate claim short-circuits without running the step.
func (d Deps) once(ctx context.Context, consumerName, key string, fn func(context.Context) error) error {
	duplicate, err := d.Idempotency.CheckAndMark(ctx, consumerName, key, d.IdempotencyTTL)
	if err != nil {
		return err
	}

	if duplicate {
		d.Logger.Debug().
			Str("consumer", consumerName).
			Str("key", key).
			Msg("step already processed")

		return nil
	}

	if err := fn(ctx); err != nil {
		// Release outlives a cancelled handler context; a claim left
		// behind would drop the step until the key expires.
		if relErr := d.Idempotency.Release(context.WithoutCancel(ctx), consumerName, key); relErr != nil {
			d.Logger.Error().
				Err(relErr).
				Str("consumer", consumerName).
				Str("key", key).
				Msg("failed to release idempotency claim after step failure")
		}

		return err
	}

	return nil
}

// Handlers maps each queue to its registered handler.
func Handlers(deps Deps) map[string]ports.MessageHandler {
	return map[string]ports.MessageHandler{
		domain.QueueOrderEvents:     NewOrderHandler(deps),
		domain.QueueInventoryEvents: NewInventoryHandler(deps),
		domain.QueuePaymentEvents:   NewPaymentHandler(deps),
		domain.QueueProducts:        NewProductHandler(deps),
		domain.QueueOrderSeckill:    NewSeckillHandler(deps),
	}
}

// Bindings declares the default topology: each queue, its DLQ and retry
// queue, and the event types routed into it.
func Bindings() []queue.QueueBinding {
	return []queue.QueueBinding{
		{
			Queue: domain.QueueOrderEvents,
			RoutingKeys: []string{
				string(domain.EventInventoryReserved),
				string(domain.EventInventoryReserveFailed),
				string(domain.EventStockReserved),
				string(domain.EventPaymentSucceeded),
				string(domain.EventPaymentFailed),
				string(domain.EventOrderTimeout),
			},
		},
		{
			Queue: domain.QueueInventoryEvents,
			RoutingKeys: []string{
				string(domain.EventOrderCreated),
				string(domain.EventReserve),
				string(domain.EventRelease),
				string(domain.EventRestock),
				string(domain.EventPaymentSucceeded),
			},
		},
		{
			Queue: domain.QueuePaymentEvents,
			RoutingKeys: []string{
				string(domain.EventPaymentInitiated),
				string(domain.EventPaymentCancel),
			},
		},
		{
			Queue: domain.QueueProducts,
			RoutingKeys: []string{
				string(domain.EventProductCreated),
				string(domain.EventProductDeleted),
			},
		},
		{
			Queue: domain.QueueOrderSeckill,
			RoutingKeys: []string{
				string(domain.EventSeckillOrderWon),
			},
		},
	}
}
