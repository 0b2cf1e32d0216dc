package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/jmoiron/sqlx"
)

type (
	// InventoryService handles the stock side of the saga. A shortage is
	// a business outcome, not a transport failure: it becomes an
	// INVENTORY_RESERVE_FAILED event and the delivery is acknowledged.
	InventoryService interface {
		ReserveStock(ctx context.Context, correlationID, orderID, productID string, quantity int) error
		ReleaseStock(ctx context.Context, orderID string) error
		ConsumeStock(ctx context.Context, orderID string) error
		Restock(ctx context.Context, productID string, quantity int) error
		SyncProductCreated(ctx context.Context, productID string, stock int) error
		SyncProductDeleted(ctx context.Context, productID string) error
	}

	inventoryService struct {
		inventoryRepo ports.InventoryRepository
		outboxRepo    ports.OutboxRepository
		transactor    ports.Transactor
		logger        infrastructure.Logger
	}
)

func NewInventoryService(
	inventoryRepo ports.InventoryRepository,
	outboxRepo ports.OutboxRepository,
	transactor ports.Transactor,
	logger infrastructure.Logger,
) InventoryService {
	return inventoryService{
		inventoryRepo: inventoryRepo,
		outboxRepo:    outboxRepo,
		transactor:    transactor,
		logger:        logger,
	}
}

// ReserveStock attempts the reservation and stages the saga answer,
// INVENTORY_RESERVED or INVENTORY_RESERVE_FAILED, for the order side.
// The stock mutation and the answer share one commit; a shortage mutates
// nothing, so staging the failure in the same transaction is safe.
func (s inventoryService) ReserveStock(ctx context.Context, correlationID, orderID, productID string, quantity int) error {
	return s.transactor.WithinTx(ctx, func(tx *sqlx.Tx) error {
		reserveErr := s.inventoryRepo.ReserveInTx(ctx, tx, orderID, productID, quantity)
		if reserveErr != nil && !errors.Is(reserveErr, domain.ErrInsufficientStock) {
			return fmt.Errorf("failed to reserve stock for order %s: %w", orderID, reserveErr)
		}

		if reserveErr != nil {
			s.logger.Warn().
				Str("order_id", orderID).
				Str("product_id", productID).
				Int("quantity", quantity).
				Msg("insufficient stock, rejecting reservation")

			return s.stageAnswerInTx(ctx, tx, correlationID, domain.EventInventoryReserveFailed, map[string]any{
				"orderId": orderID,
				"reason":  reserveErr.Error(),
			})
		}

		s.logger.Info().
			Str("order_id", orderID).
			Str("product_id", productID).
			Int("quantity", quantity).
			Msg("stock reserved")

		return s.stageAnswerInTx(ctx, tx, correlationID, domain.EventInventoryReserved, map[string]any{
			"orderId":   orderID,
			"productId": productID,
			"quantity":  quantity,
		})
	})
}

// ReleaseStock returns a reservation to the pool; redeliveries no-op.
func (s inventoryService) ReleaseStock(ctx context.Context, orderID string) error {
	if err := s.inventoryRepo.Release(ctx, orderID); err != nil {
		return fmt.Errorf("failed to release stock for order %s: %w", orderID, err)
	}

	s.logger.Info().Str("order_id", orderID).Msg("reservation released")

	return nil
}

// ConsumeStock finalizes the reservation after payment settles.
func (s inventoryService) ConsumeStock(ctx context.Context, orderID string) error {
	if err := s.inventoryRepo.Consume(ctx, orderID); err != nil {
		return fmt.Errorf("failed to consume stock for order %s: %w", orderID, err)
	}

	s.logger.Info().Str("order_id", orderID).Msg("reservation consumed")

	return nil
}

// Restock adds quantity back to available stock.
func (s inventoryService) Restock(ctx context.Context, productID string, quantity int) error {
	if err := s.inventoryRepo.Restock(ctx, productID, quantity); err != nil {
		return err
	}

	s.logger.Info().
		Str("product_id", productID).
		Int("quantity", quantity).
		Msg("stock replenished")

	return nil
}

// SyncProductCreated mirrors a product catalog creation into stock.
func (s inventoryService) SyncProductCreated(ctx context.Context, productID string, stock int) error {
	if err := s.inventoryRepo.CreateProduct(ctx, productID, stock); err != nil {
		return err
	}

	s.logger.Info().
		Str("product_id", productID).
		Int("stock", stock).
		Msg("product stock registered")

	return nil
}

// SyncProductDeleted drops the stock row of a deleted product.
func (s inventoryService) SyncProductDeleted(ctx context.Context, productID string) error {
	if err := s.inventoryRepo.DeleteProduct(ctx, productID); err != nil {
		return err
	}

	s.logger.Info().Str("product_id", productID).Msg("product stock removed")

	return nil
}

func (s inventoryService) stageAnswerInTx(ctx context.Context, tx *sqlx.Tx, correlationID string, eventType domain.EventType, payload map[string]any) error {
	event := domain.NewOutboxEvent(correlationID, eventType, string(eventType), payload)

	return s.outboxRepo.SaveInTx(ctx, tx, event)
}
