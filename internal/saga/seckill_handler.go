package saga

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/internal/service"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

const seckillConsumerName = "seckill-saga"

// Ensure SeckillHandler implements the MessageHandler interface
var _ ports.MessageHandler = (*SeckillHandler)(nil)

// SeckillHandler turns flash-sale wins into orders. The win carries
// pre-validated intent, so no availability check happens here; the order
// joins the normal saga from ORDER_CREATED onward.
type SeckillHandler struct {
	deps Deps
}

func NewSeckillHandler(deps Deps) *SeckillHandler {
	return &SeckillHandler{deps: deps}
}

func (h *SeckillHandler) ProcessMessage(ctx context.Context, msg queue.Message, _ *queue.MsgController) error {
	if domain.EventType(msg.Envelope.Type) != domain.EventSeckillOrderWon {
		h.deps.Logger.Debug().
			Str("event_type", msg.Envelope.Type).
			Msg("ignoring event type not handled by the seckill saga")

		return nil
	}

	var win domain.SeckillWin
	if err := msg.Unmarshal(&win); err != nil {
		return domain.NewPermanentError("failed to unmarshal seckill win", err)
	}

	if win.UserID == "" || win.ProductID == "" {
		return domain.NewPermanentError("seckill win missing userId or productId", nil)
	}

	// Duplicate wins for the same user and product collapse even when
	// their envelope ids differ upstream. A failed conversion releases
	// the claim so the redelivery tries again.
	return h.deps.once(ctx, seckillConsumerName,
		fmt.Sprintf("seckill:%s:%s:%d", win.UserID, win.ProductID, win.Timestamp),
		func(ctx context.Context) error {
			quantity := win.Quantity
			if quantity == 0 {
				quantity = 1
			}

			order, err := h.deps.OrderService.CreateOrder(ctx, service.CreateOrderCommand{
				CorrelationID: msg.Envelope.Metadata.CorrelationID,
				UserID:        win.UserID,
				ProductID:     win.ProductID,
				Quantity:      quantity,
				Amount:        win.Price * float64(quantity),
				Source:        domain.SourceSeckill,
			})
			if err != nil {
				return err
			}

			h.deps.Logger.Info().
				Str("order_id", order.ID).
				Str("user_id", win.UserID).
				Str("product_id", win.ProductID).
				Msg("seckill win converted to order")

			return nil
		})
}
