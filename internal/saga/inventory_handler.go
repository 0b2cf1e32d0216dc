package saga

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

const inventoryConsumerName = "inventory-saga"

// Ensure InventoryHandler implements the MessageHandler interface
var _ ports.MessageHandler = (*InventoryHandler)(nil)

// InventoryHandler owns q.inventory.events: reservations when an order
// enters the saga, releases when it fails, consumption when it settles.
type InventoryHandler struct {
	deps Deps
}

func NewInventoryHandler(deps Deps) *InventoryHandler {
	return &InventoryHandler{deps: deps}
}

type inventoryEventPayload struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *InventoryHandler) ProcessMessage(ctx context.Context, msg queue.Message, _ *queue.MsgController) error {
	var payload inventoryEventPayload
	if err := msg.Unmarshal(&payload); err != nil {
		return domain.NewPermanentError("failed to unmarshal inventory event", err)
	}

	eventType := domain.EventType(msg.Envelope.Type)

	switch eventType {
	case domain.EventOrderCreated, domain.EventReserve:
		return h.handleReserve(ctx, msg.Envelope.Metadata.CorrelationID, payload)

	case domain.EventRelease:
		return h.handleRelease(ctx, payload.OrderID)

	case domain.EventPaymentSucceeded:
		return h.handleConsume(ctx, payload.OrderID)

	case domain.EventRestock:
		if payload.ProductID == "" || payload.Quantity <= 0 {
			return domain.NewPermanentError("restock event without productId or quantity", nil)
		}

		return h.deps.InventoryService.Restock(ctx, payload.ProductID, payload.Quantity)

	default:
		h.deps.Logger.Debug().
			Str("event_type", string(eventType)).
			Msg("ignoring event type not handled by the inventory saga")

		return nil
	}
}

// handleReserve claims the business-derived key before touching stock,
// so a redelivered ORDER_CREATED cannot double-reserve. A failed attempt
// releases the claim for the retry.
func (h *InventoryHandler) handleReserve(ctx context.Context, correlationID string, payload inventoryEventPayload) error {
	if payload.OrderID == "" || payload.ProductID == "" || payload.Quantity <= 0 {
		return domain.NewPermanentError("reserve event missing orderId, productId, or quantity", nil)
	}

	return h.deps.once(ctx, inventoryConsumerName,
		fmt.Sprintf("order:resv:%s", payload.OrderID),
		func(ctx context.Context) error {
			return h.deps.InventoryService.ReserveStock(ctx, correlationID, payload.OrderID, payload.ProductID, payload.Quantity)
		})
}

func (h *InventoryHandler) handleRelease(ctx context.Context, orderID string) error {
	if orderID == "" {
		return domain.NewPermanentError("release event without orderId", nil)
	}

	// Release is naturally idempotent: settling an already-settled
	// reservation is a no-op in the repository.
	return h.deps.InventoryService.ReleaseStock(ctx, orderID)
}

func (h *InventoryHandler) handleConsume(ctx context.Context, orderID string) error {
	if orderID == "" {
		return domain.NewPermanentError("payment event without orderId", nil)
	}

	return h.deps.InventoryService.ConsumeStock(ctx, orderID)
}
