package service

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type (
	// CreateOrderCommand carries the order intent entering the saga.
	CreateOrderCommand struct {
		OrderID       string
		CorrelationID string
		UserID        string
		ProductID     string
		Quantity      int
		Amount        float64
		Source        string
	}

	// OrderService drives the order side of the saga: create the order,
	// advance its state as saga answers arrive, and cancel it when a
	// step fails or times out. Every emitted event is staged in the same
	// transaction as the state change it announces.
	OrderService interface {
		CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
		MarkStockReserved(ctx context.Context, orderID string) error
		ConfirmOrder(ctx context.Context, orderID string) error
		CancelOrder(ctx context.Context, orderID, reason string) error
	}

	orderService struct {
		orderRepo     ports.OrderRepository
		outboxRepo    ports.OutboxRepository
		transactor    ports.Transactor
		timeoutConfig config.TimeoutWorkerConfig
		logger        infrastructure.Logger
	}
)

func NewOrderService(
	orderRepo ports.OrderRepository,
	outboxRepo ports.OutboxRepository,
	transactor ports.Transactor,
	timeoutConfig config.TimeoutWorkerConfig,
	logger infrastructure.Logger,
) OrderService {
	return orderService{
		orderRepo:     orderRepo,
		outboxRepo:    outboxRepo,
		transactor:    transactor,
		timeoutConfig: timeoutConfig,
		logger:        logger,
	}
}

// CreateOrder persists the order and stages ORDER_CREATED in one commit.
// The staged event carries the saga deadline, so a saga that never hears
// back is compensated by the timeout worker.
func (s orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if cmd.OrderID == "" {
		cmd.OrderID = uuid.NewString()
	}

	if cmd.CorrelationID == "" {
		cmd.CorrelationID = uuid.NewString()
	}

	order := &domain.Order{
		ID:            cmd.OrderID,
		CorrelationID: cmd.CorrelationID,
		UserID:        cmd.UserID,
		ProductID:     cmd.ProductID,
		Quantity:      cmd.Quantity,
		Amount:        cmd.Amount,
		Status:        domain.OrderStatusCreated,
		Source:        cmd.Source,
		CreatedAt:     time.Now().UTC(),
	}

	err := s.transactor.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.CreateInTx(ctx, tx, order); err != nil {
			return err
		}

		event := domain.NewOutboxEvent(order.CorrelationID, domain.EventOrderCreated, string(domain.EventOrderCreated), map[string]any{
			"orderId":   order.ID,
			"userId":    order.UserID,
			"productId": order.ProductID,
			"quantity":  order.Quantity,
			"amount":    order.Amount,
			"source":    order.Source,
		}).
			WithExpiry(time.Now().UTC().Add(s.timeoutConfig.SagaTTL)).
			WithCompensationData(map[string]any{
				"orderId": order.ID,
				"reason":  "saga timed out",
			})

		return s.outboxRepo.SaveInTx(ctx, tx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order %s: %w", order.ID, err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("correlation_id", order.CorrelationID).
		Str("source", order.Source).
		Msg("order created")

	return order, nil
}

// MarkStockReserved advances the saga after inventory confirms and
// stages PAYMENT_INITIATED for the payment leg, deadline armed. The
// status flip, the settled ORDER_CREATED leg, and the new event share
// one commit.
func (s orderService) MarkStockReserved(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.Find(ctx, orderID)
	if err != nil {
		return err
	}

	return s.transactor.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.UpdateStatusInTx(ctx, tx, orderID, domain.OrderStatusCreated, domain.OrderStatusStockReserved); err != nil {
			return err
		}

		// The inventory answer arrived; disarm the ORDER_CREATED deadline.
		if err := s.outboxRepo.SettleInTx(ctx, tx, order.CorrelationID, domain.EventOrderCreated); err != nil {
			return err
		}

		event := domain.NewOutboxEvent(order.CorrelationID, domain.EventPaymentInitiated, string(domain.EventPaymentInitiated), map[string]any{
			"orderId": orderID,
			"amount":  order.Amount,
		}).
			WithExpiry(time.Now().UTC().Add(s.timeoutConfig.SagaTTL)).
			WithCompensationData(map[string]any{
				"orderId": orderID,
				"reason":  "payment leg timed out",
			})

		return s.outboxRepo.SaveInTx(ctx, tx, event)
	})
}

// ConfirmOrder finishes the happy path once payment settles.
func (s orderService) ConfirmOrder(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.Find(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.transactor.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.UpdateStatusInTx(ctx, tx, orderID, domain.OrderStatusStockReserved, domain.OrderStatusPaymentSucceeded); err != nil {
			return err
		}

		if err := s.orderRepo.UpdateStatusInTx(ctx, tx, orderID, domain.OrderStatusPaymentSucceeded, domain.OrderStatusConfirmed); err != nil {
			return err
		}

		// The payment answer arrived; disarm the payment-leg deadline.
		if err := s.outboxRepo.SettleInTx(ctx, tx, order.CorrelationID, domain.EventPaymentInitiated); err != nil {
			return err
		}

		event := domain.NewOutboxEvent(order.CorrelationID, domain.EventOrderConfirmed, string(domain.EventOrderConfirmed), map[string]any{
			"orderId": orderID,
		})

		return s.outboxRepo.SaveInTx(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("correlation_id", order.CorrelationID).
		Msg("order confirmed")

	return nil
}

// CancelOrder terminates the saga after a failure or timeout. When the
// order had already reached STOCK_RESERVED, a RELEASE compensation is
// staged in the same commit as the cancellation event.
func (s orderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	order, err := s.orderRepo.Find(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status.IsTerminal() {
		// A redelivered failure event lands here; cancelling twice is a
		// no-op.
		return nil
	}

	stockWasReserved := order.Status == domain.OrderStatusStockReserved ||
		order.Status == domain.OrderStatusPaymentSucceeded

	err = s.transactor.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.UpdateStatusInTx(ctx, tx, orderID, order.Status, domain.OrderStatusCancelled); err != nil {
			return err
		}

		// The saga is over; disarm every leg still awaiting a reply.
		for _, leg := range []domain.EventType{domain.EventOrderCreated, domain.EventPaymentInitiated} {
			if err := s.outboxRepo.SettleInTx(ctx, tx, order.CorrelationID, leg); err != nil {
				return err
			}
		}

		cancelled := domain.NewOutboxEvent(order.CorrelationID, domain.EventOrderCancelled, string(domain.EventOrderCancelled), map[string]any{
			"orderId": orderID,
			"reason":  reason,
		})

		if err := s.outboxRepo.SaveInTx(ctx, tx, cancelled); err != nil {
			return err
		}

		if !stockWasReserved {
			return nil
		}

		release := domain.NewOutboxEvent(order.CorrelationID, domain.EventRelease, string(domain.EventRelease), map[string]any{
			"orderId": orderID,
			"reason":  reason,
		})

		return s.outboxRepo.SaveInTx(ctx, tx, release)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("correlation_id", order.CorrelationID).
		Str("reason", reason).
		Msg("order cancelled")

	return nil
}
