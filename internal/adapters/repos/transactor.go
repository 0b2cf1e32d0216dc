package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Transactor runs a function inside a database transaction. The outbox
// stage call enlists through the same *sqlx.Tx as the business write,
// which is the whole point of the pattern.
type Transactor struct {
	conn *sqlx.DB
}

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{
		conn: db,
	}
}

// WithinTx begins a transaction, runs fn, and commits. Any error from fn
// rolls the whole unit back, the staged outbox rows included.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := t.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
