package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/jmoiron/sqlx"
)

const (
	inventoryTable    = "inventory"
	reservationsTable = "reservations"
)

// InventoryRepository persists stock levels and the reservations held
// against them while a saga is in flight.
type InventoryRepository struct {
	conn *sqlx.DB
}

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{
		conn: db,
	}
}

// Available returns the currently available quantity for a product.
func (r *InventoryRepository) Available(ctx context.Context, productID string) (int, error) {
	query, args, err := psql.Select("available").
		From(inventoryTable).
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select query: %w", err)
	}

	var available int
	if err := r.conn.GetContext(ctx, &available, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
		}

		return 0, fmt.Errorf("failed to read availability for %s: %w", productID, err)
	}

	return available, nil
}

// ReserveInTx moves quantity from available to reserved in one guarded
// statement inside the caller's transaction, so the reservation commits
// together with the saga answer it stages. A short row means the stock
// check and the decrement raced; the guard makes overselling impossible.
func (r *InventoryRepository) ReserveInTx(ctx context.Context, tx *sqlx.Tx, orderID, productID string, quantity int) error {
	query, args, err := psql.Update(inventoryTable).
		Set("available", sq.Expr("available - ?", quantity)).
		Set("reserved", sq.Expr("reserved + ?", quantity)).
		Where(sq.And{
			sq.Eq{"product_id": productID},
			sq.Expr("available >= ?", quantity),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to reserve stock for %s: %w", productID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("product %s quantity %d: %w", productID, quantity, domain.ErrInsufficientStock)
	}

	query, args, err = psql.Insert(reservationsTable).
		Columns("order_id", "product_id", "quantity", "status", "created_at").
		Values(orderID, productID, quantity, domain.ReservationStatusReserved, sq.Expr("NOW()")).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record reservation for order %s: %w", orderID, err)
	}

	return nil
}

// Release returns a reservation to available stock. Releasing an
// already-released or consumed reservation is a no-op, so compensation
// events can be redelivered safely.
func (r *InventoryRepository) Release(ctx context.Context, orderID string) error {
	return r.settle(ctx, orderID, domain.ReservationStatusReleased, true)
}

// Consume finalizes a reservation after successful payment; the held
// quantity leaves the reserved pool for good.
func (r *InventoryRepository) Consume(ctx context.Context, orderID string) error {
	return r.settle(ctx, orderID, domain.ReservationStatusConsumed, false)
}

// Restock adds quantity back to available stock.
func (r *InventoryRepository) Restock(ctx context.Context, productID string, quantity int) error {
	query, args, err := psql.Update(inventoryTable).
		Set("available", sq.Expr("available + ?", quantity)).
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err = r.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to restock %s: %w", productID, err)
	}

	return nil
}

// CreateProduct registers a product with its initial stock. A replayed
// creation resets availability instead of failing on the key.
func (r *InventoryRepository) CreateProduct(ctx context.Context, productID string, stock int) error {
	query, args, err := psql.Insert(inventoryTable).
		Columns("product_id", "available", "reserved").
		Values(productID, stock, 0).
		Suffix("ON CONFLICT (product_id) DO UPDATE SET available = EXCLUDED.available").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err = r.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create product %s: %w", productID, err)
	}

	return nil
}

// DeleteProduct drops a product's stock row.
func (r *InventoryRepository) DeleteProduct(ctx context.Context, productID string) error {
	query, args, err := psql.Delete(inventoryTable).
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err = r.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", productID, err)
	}

	return nil
}

func (r *InventoryRepository) settle(ctx context.Context, orderID string, to domain.ReservationStatus, restoreAvailable bool) error {
	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Update(reservationsTable).
		Set("status", to).
		Where(sq.Eq{
			"order_id": orderID,
			"status":   domain.ReservationStatusReserved,
		}).
		Suffix("RETURNING product_id, quantity").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	var settled []struct {
		ProductID string `db:"product_id"`
		Quantity  int    `db:"quantity"`
	}
	if err := tx.SelectContext(ctx, &settled, query, args...); err != nil {
		return fmt.Errorf("failed to settle reservation for order %s: %w", orderID, err)
	}

	// Nothing reserved means the reservation was already settled or
	// never existed; both are fine under redelivery.
	if len(settled) == 0 {
		return tx.Commit()
	}

	for _, row := range settled {
		builder := psql.Update(inventoryTable).
			Set("reserved", sq.Expr("reserved - ?", row.Quantity)).
			Where(sq.Eq{"product_id": row.ProductID})

		if restoreAvailable {
			builder = builder.Set("available", sq.Expr("available + ?", row.Quantity))
		}

		query, args, err = builder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update query: %w", err)
		}

		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to adjust stock for %s: %w", row.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	return nil
}
