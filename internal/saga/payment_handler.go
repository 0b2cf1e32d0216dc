package saga

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

const paymentConsumerName = "payment-saga"

// Ensure PaymentHandler implements the MessageHandler interface
var _ ports.MessageHandler = (*PaymentHandler)(nil)

// PaymentHandler owns q.payment.events: charging reserved orders and
// cancelling charges when the payment leg is compensated.
type PaymentHandler struct {
	deps Deps
}

func NewPaymentHandler(deps Deps) *PaymentHandler {
	return &PaymentHandler{deps: deps}
}

type paymentEventPayload struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

func (h *PaymentHandler) ProcessMessage(ctx context.Context, msg queue.Message, _ *queue.MsgController) error {
	var payload paymentEventPayload
	if err := msg.Unmarshal(&payload); err != nil {
		return domain.NewPermanentError("failed to unmarshal payment event", err)
	}

	if payload.OrderID == "" {
		return domain.NewPermanentError("payment event without orderId", nil)
	}

	eventType := domain.EventType(msg.Envelope.Type)

	switch eventType {
	case domain.EventPaymentInitiated:
		return h.handleCharge(ctx, msg.Envelope.Metadata.CorrelationID, payload)

	case domain.EventPaymentCancel:
		return h.deps.PaymentService.CancelPayment(ctx, payload.OrderID)

	default:
		h.deps.Logger.Debug().
			Str("event_type", string(eventType)).
			Msg("ignoring event type not handled by the payment saga")

		return nil
	}
}

// handleCharge claims the charge key up front so a redelivered
// PAYMENT_INITIATED cannot double-charge the customer. A failed charge
// releases the claim, so the retry gets another attempt.
func (h *PaymentHandler) handleCharge(ctx context.Context, correlationID string, payload paymentEventPayload) error {
	return h.deps.once(ctx, paymentConsumerName,
		fmt.Sprintf("payment:charge:%s", payload.OrderID),
		func(ctx context.Context) error {
			return h.deps.PaymentService.ProcessPayment(ctx, correlationID, payload.OrderID, payload.Amount)
		})
}
