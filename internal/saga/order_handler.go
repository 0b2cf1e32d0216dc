package saga

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

const orderConsumerName = "order-saga"

// Ensure OrderHandler implements the MessageHandler interface
var _ ports.MessageHandler = (*OrderHandler)(nil)

// OrderHandler advances the order state machine as saga answers arrive
// on q.order.events. Failures from any leg converge here and cancel the
// order.
type OrderHandler struct {
	deps Deps
}

func NewOrderHandler(deps Deps) *OrderHandler {
	return &OrderHandler{deps: deps}
}

type orderAnswerPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (h *OrderHandler) ProcessMessage(ctx context.Context, msg queue.Message, _ *queue.MsgController) error {
	var payload orderAnswerPayload
	if err := msg.Unmarshal(&payload); err != nil {
		return domain.NewPermanentError("failed to unmarshal order event", err)
	}

	if payload.OrderID == "" {
		return domain.NewPermanentError("order event without orderId", nil)
	}

	eventType := domain.EventType(msg.Envelope.Type)

	switch eventType {
	case domain.EventInventoryReserved, domain.EventStockReserved:
		return h.handleStockReserved(ctx, payload.OrderID)

	case domain.EventPaymentSucceeded:
		return h.handlePaymentSucceeded(ctx, payload.OrderID)

	case domain.EventPaymentFailed:
		return h.handleFailure(ctx, payload.OrderID, failureReason(payload.Reason, "payment failed"))

	case domain.EventInventoryReserveFailed:
		return h.handleFailure(ctx, payload.OrderID, failureReason(payload.Reason, "inventory reservation failed"))

	case domain.EventOrderTimeout:
		return h.handleFailure(ctx, payload.OrderID, failureReason(payload.Reason, "saga timed out"))

	default:
		h.deps.Logger.Debug().
			Str("event_type", string(eventType)).
			Msg("ignoring event type not handled by the order saga")

		return nil
	}
}

func (h *OrderHandler) handleStockReserved(ctx context.Context, orderID string) error {
	return h.deps.once(ctx, orderConsumerName,
		fmt.Sprintf("order:stock:%s", orderID),
		func(ctx context.Context) error {
			return h.deps.OrderService.MarkStockReserved(ctx, orderID)
		})
}

func (h *OrderHandler) handlePaymentSucceeded(ctx context.Context, orderID string) error {
	return h.deps.once(ctx, orderConsumerName,
		fmt.Sprintf("order:confirm:%s", orderID),
		func(ctx context.Context) error {
			return h.deps.OrderService.ConfirmOrder(ctx, orderID)
		})
}

func (h *OrderHandler) handleFailure(ctx context.Context, orderID, reason string) error {
	return h.deps.once(ctx, orderConsumerName,
		fmt.Sprintf("order:cancel:%s", orderID),
		func(ctx context.Context) error {
			return h.deps.OrderService.CancelOrder(ctx, orderID, reason)
		})
}

func failureReason(reason, fallback string) string {
	if reason != "" {
		return reason
	}

	return fallback
}
