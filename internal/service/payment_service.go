package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type (
	// PaymentGateway is the synchronous charge surface, wrapped in a
	// circuit breaker by its adapter.
	PaymentGateway interface {
		Charge(ctx context.Context, orderID string, amount float64) (paymentID string, err error)
		Cancel(ctx context.Context, orderID string) error
	}

	// PaymentService attempts the charge for a reserved order and stages
	// the saga answer. A declined charge is a business outcome and
	// becomes PAYMENT_FAILED; a breaker-open or transport failure is
	// surfaced for redelivery instead.
	PaymentService interface {
		ProcessPayment(ctx context.Context, correlationID, orderID string, amount float64) error
		CancelPayment(ctx context.Context, orderID string) error
	}

	paymentService struct {
		gateway    PaymentGateway
		outboxRepo ports.OutboxRepository
		transactor ports.Transactor
		logger     infrastructure.Logger
	}
)

func NewPaymentService(
	gateway PaymentGateway,
	outboxRepo ports.OutboxRepository,
	transactor ports.Transactor,
	logger infrastructure.Logger,
) PaymentService {
	return paymentService{
		gateway:    gateway,
		outboxRepo: outboxRepo,
		transactor: transactor,
		logger:     logger,
	}
}

// ProcessPayment charges the order through the gateway and stages the
// outcome event.
func (s paymentService) ProcessPayment(ctx context.Context, correlationID, orderID string, amount float64) error {
	paymentID, chargeErr := s.gateway.Charge(ctx, orderID, amount)
	if chargeErr != nil {
		var permanent *domain.PermanentError
		if !errors.As(chargeErr, &permanent) {
			// Breaker open or transport trouble; redelivery may succeed.
			return fmt.Errorf("failed to charge order %s: %w", orderID, chargeErr)
		}

		s.logger.Warn().
			Str("order_id", orderID).
			Str("reason", permanent.Reason).
			Msg("charge declined")

		return s.stageAnswer(ctx, correlationID, domain.EventPaymentFailed, map[string]any{
			"orderId": orderID,
			"reason":  permanent.Reason,
		})
	}

	if paymentID == "" {
		paymentID = uuid.NewString()
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("payment_id", paymentID).
		Float64("amount", amount).
		Msg("payment succeeded")

	return s.stageAnswer(ctx, correlationID, domain.EventPaymentSucceeded, map[string]any{
		"orderId":   orderID,
		"paymentId": paymentID,
		"amount":    amount,
	})
}

// CancelPayment aborts an in-flight charge, typically after the payment
// leg timed out. Cancelling an unknown charge is a no-op at the gateway.
func (s paymentService) CancelPayment(ctx context.Context, orderID string) error {
	if err := s.gateway.Cancel(ctx, orderID); err != nil {
		return fmt.Errorf("failed to cancel payment for order %s: %w", orderID, err)
	}

	s.logger.Info().Str("order_id", orderID).Msg("payment cancelled")

	return nil
}

func (s paymentService) stageAnswer(ctx context.Context, correlationID string, eventType domain.EventType, payload map[string]any) error {
	return s.transactor.WithinTx(ctx, func(tx *sqlx.Tx) error {
		event := domain.NewOutboxEvent(correlationID, eventType, string(eventType), payload)

		return s.outboxRepo.SaveInTx(ctx, tx, event)
	})
}
