package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/jmoiron/sqlx"
)

const ordersTable = "orders"

type (
	// OrderRepository persists the order saga state.
	OrderRepository struct {
		conn *sqlx.DB
	}

	orderRow struct {
		ID            string    `db:"id"`
		CorrelationID string    `db:"correlation_id"`
		UserID        string    `db:"user_id"`
		ProductID     string    `db:"product_id"`
		Quantity      int       `db:"quantity"`
		Amount        float64   `db:"amount"`
		Status        string    `db:"status"`
		Source        string    `db:"source"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
)

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{
		conn: db,
	}
}

// CreateInTx inserts the order inside the caller's transaction, next to
// its ORDER_CREATED outbox row.
func (r *OrderRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
	query, args, err := psql.Insert(ordersTable).
		Columns("id", "correlation_id", "user_id", "product_id", "quantity", "amount", "status", "source", "created_at", "updated_at").
		Values(order.ID, order.CorrelationID, order.UserID, order.ProductID, order.Quantity, order.Amount,
			order.Status, order.Source, order.CreatedAt, order.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// Find loads an order by id.
func (r *OrderRepository) Find(ctx context.Context, orderID string) (*domain.Order, error) {
	query, args, err := psql.Select("id", "correlation_id", "user_id", "product_id", "quantity", "amount", "status", "source", "created_at", "updated_at").
		From(ordersTable).
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var row orderRow
	if err := r.conn.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to find order %s: %w", orderID, err)
	}

	return row.toDomain(), nil
}

// UpdateStatusInTx applies a saga transition inside the caller's
// transaction, next to the events the transition stages. The expected
// current status in the predicate turns a lost race into
// ErrConcurrentModification instead of a silent overwrite.
func (r *OrderRepository) UpdateStatusInTx(ctx context.Context, tx *sqlx.Tx, orderID string, from, to domain.OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return &domain.InvalidStateTransitionError{From: string(from), To: string(to)}
	}

	query, args, err := psql.Update(ordersTable).
		Set("status", to).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":     orderID,
			"status": from,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order %s status: %w", orderID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("order %s not in status %s: %w", orderID, from, domain.ErrConcurrentModification)
	}

	return nil
}

func (row *orderRow) toDomain() *domain.Order {
	return &domain.Order{
		ID:            row.ID,
		CorrelationID: row.CorrelationID,
		UserID:        row.UserID,
		ProductID:     row.ProductID,
		Quantity:      row.Quantity,
		Amount:        row.Amount,
		Status:        domain.OrderStatus(row.Status),
		Source:        row.Source,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
