package saga

import (
	"context"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

// Ensure ProductHandler implements the MessageHandler interface
var _ ports.MessageHandler = (*ProductHandler)(nil)

// ProductHandler mirrors catalog changes from q.products into the stock
// table, so reservations always have a row to decrement.
type ProductHandler struct {
	deps Deps
}

func NewProductHandler(deps Deps) *ProductHandler {
	return &ProductHandler{deps: deps}
}

type productEventPayload struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

func (h *ProductHandler) ProcessMessage(ctx context.Context, msg queue.Message, _ *queue.MsgController) error {
	var payload productEventPayload
	if err := msg.Unmarshal(&payload); err != nil {
		return domain.NewPermanentError("failed to unmarshal product event", err)
	}

	if payload.ProductID == "" {
		return domain.NewPermanentError("product event without productId", nil)
	}

	eventType := domain.EventType(msg.Envelope.Type)

	switch eventType {
	case domain.EventProductCreated:
		return h.deps.InventoryService.SyncProductCreated(ctx, payload.ProductID, payload.Stock)

	case domain.EventProductDeleted:
		return h.deps.InventoryService.SyncProductDeleted(ctx, payload.ProductID)

	default:
		h.deps.Logger.Debug().
			Str("event_type", string(eventType)).
			Msg("ignoring event type not handled by the product sync")

		return nil
	}
}
