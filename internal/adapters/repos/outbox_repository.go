package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const outboxEventsTable = "outbox_events"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var outboxColumns = []string{
	"id", "event_id", "correlation_id", "event_type", "destination",
	"payload", "status", "attempt_count", "last_error",
	"created_at", "published_at", "expires_at", "compensation_data",
}

type (
	OutboxRepository struct {
		conn *sqlx.DB
	}

	outboxEventRow struct {
		ID               string     `db:"id"`
		EventID          string     `db:"event_id"`
		CorrelationID    string     `db:"correlation_id"`
		EventType        string     `db:"event_type"`
		Destination      string     `db:"destination"`
		Payload          []byte     `db:"payload"`
		Status           string     `db:"status"`
		AttemptCount     int        `db:"attempt_count"`
		LastError        *string    `db:"last_error"`
		CreatedAt        time.Time  `db:"created_at"`
		PublishedAt      *time.Time `db:"published_at"`
		ExpiresAt        *time.Time `db:"expires_at"`
		CompensationData []byte     `db:"compensation_data"`
	}
)

func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{
		conn: db,
	}
}

// SaveInTx stages an outbox event inside the caller's transaction so the
// business mutation and the event share one commit.
func (r *OutboxRepository) SaveInTx(ctx context.Context, tx *sqlx.Tx, event *domain.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var compensationJSON []byte
	if event.CompensationData != nil {
		compensationJSON, err = json.Marshal(event.CompensationData)
		if err != nil {
			return fmt.Errorf("failed to marshal compensation data: %w", err)
		}
	}

	query, args, err := psql.Insert(outboxEventsTable).
		Columns(outboxColumns...).
		Values(event.ID, event.EventID, event.CorrelationID, event.EventType, event.Destination,
			payloadJSON, event.Status, event.AttemptCount, event.LastError,
			event.CreatedAt, event.PublishedAt, event.ExpiresAt, compensationJSON).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

// ClaimPending returns pending events oldest first. Concurrent
// publishers may pick up the same batch; the status guard in
// MarkPublished keeps double delivery to at-least-once, which consumers
// absorb through idempotency keys.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	query, args, err := psql.Select(outboxColumns...).
		From(outboxEventsTable).
		Where(sq.Eq{"status": domain.OutboxStatusPending}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var rows []outboxEventRow
	if err := r.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query pending outbox events: %w", err)
	}

	return toDomainEvents(rows)
}

// MarkPublished moves a pending event to PUBLISHED. The status guard
// keeps the publisher and the timeout worker from both owning the row.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	query, args, err := psql.Update(outboxEventsTable).
		Set("status", domain.OutboxStatusPublished).
		Set("published_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"event_id": eventID,
			"status":   domain.OutboxStatusPending,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}

	return requireRowAffected(result, eventID)
}

// MarkFailed records a publish failure. The attempt count is bumped in
// the same statement, and the row is promoted to FAILED once the attempt
// budget is spent; otherwise it stays PENDING for the next poll.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, errorDetails string, maxAttempts int) error {
	query, args, err := psql.Update(outboxEventsTable).
		Set("attempt_count", sq.Expr("attempt_count + 1")).
		Set("last_error", errorDetails).
		Set("status", sq.Expr(
			fmt.Sprintf("CASE WHEN attempt_count + 1 >= ? THEN '%s' ELSE '%s' END",
				domain.OutboxStatusFailed, domain.OutboxStatusPending),
			maxAttempts)).
		Where(sq.Eq{
			"event_id": eventID,
			"status":   domain.OutboxStatusPending,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}

	return requireRowAffected(result, eventID)
}

// SettleInTx flips the awaited legs matching the correlation and event
// type to COMPLETED, inside the transaction that applies the reply. A
// settled leg is invisible to the expiry scan, so the reply disarms the
// deadline atomically with the state change it causes. Zero rows is fine:
// the leg was already settled or timed out.
func (r *OutboxRepository) SettleInTx(ctx context.Context, tx *sqlx.Tx, correlationID string, eventType domain.EventType) error {
	query, args, err := psql.Update(outboxEventsTable).
		Set("status", domain.OutboxStatusCompleted).
		Where(sq.Eq{
			"correlation_id": correlationID,
			"event_type":     eventType,
			"status":         expiryClaimableStatuses,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build settle query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to settle outbox leg %s/%s: %w", correlationID, eventType, err)
	}

	return nil
}

// expiryClaimableStatuses are the states in which a deadline-armed leg is
// still waiting for its reply. A successful publish does not disarm the
// deadline; only the reply settling the leg does.
var expiryClaimableStatuses = []domain.OutboxStatus{
	domain.OutboxStatusPending,
	domain.OutboxStatusPublished,
}

// ClaimExpired atomically flips unsettled events whose deadline has
// strictly passed to TIMEOUT and returns them, oldest first. The single
// UPDATE makes a rescan after a crash idempotent.
func (r *OutboxRepository) ClaimExpired(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	subQuery := fmt.Sprintf(
		"id IN (SELECT id FROM %s WHERE status IN ('%s', '%s') AND expires_at IS NOT NULL AND expires_at < ? ORDER BY created_at ASC LIMIT ? FOR UPDATE SKIP LOCKED)",
		outboxEventsTable, expiryClaimableStatuses[0], expiryClaimableStatuses[1])

	query, args, err := psql.Update(outboxEventsTable).
		Set("status", domain.OutboxStatusTimeout).
		Set("last_error", "saga deadline expired before terminal event").
		Where(sq.Expr(subQuery, now, limit)).
		Suffix("RETURNING " + strings.Join(outboxColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	var rows []outboxEventRow
	if err := r.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to claim expired outbox events: %w", err)
	}

	return toDomainEvents(rows)
}

// DeletePublishedBefore prunes delivered events older than the retention
// cutoff and reports how many rows went away. Settled legs are pruned on
// the same schedule.
func (r *OutboxRepository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.Delete(outboxEventsTable).
		Where(sq.And{
			sq.Eq{"status": []domain.OutboxStatus{domain.OutboxStatusPublished, domain.OutboxStatusCompleted}},
			sq.Lt{"published_at": cutoff},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published outbox events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func requireRowAffected(result sqlxResult, eventID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("event %s: %w", eventID, domain.ErrOutboxEventNotFound)
	}

	return nil
}

type sqlxResult interface {
	RowsAffected() (int64, error)
}

func toDomainEvents(rows []outboxEventRow) ([]*domain.OutboxEvent, error) {
	events := make([]*domain.OutboxEvent, 0, len(rows))

	for i := range rows {
		event, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, nil
}

func (row *outboxEventRow) toDomain() (*domain.OutboxEvent, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse outbox event id %q: %w", row.ID, err)
	}

	var payload map[string]any
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for event %s: %w", row.EventID, err)
		}
	}

	var compensation map[string]any
	if len(row.CompensationData) > 0 {
		if err := json.Unmarshal(row.CompensationData, &compensation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal compensation data for event %s: %w", row.EventID, err)
		}
	}

	return &domain.OutboxEvent{
		ID:               id,
		EventID:          row.EventID,
		CorrelationID:    row.CorrelationID,
		EventType:        domain.EventType(row.EventType),
		Destination:      row.Destination,
		Payload:          payload,
		Status:           domain.OutboxStatus(row.Status),
		AttemptCount:     row.AttemptCount,
		LastError:        row.LastError,
		CreatedAt:        row.CreatedAt,
		PublishedAt:      row.PublishedAt,
		ExpiresAt:        row.ExpiresAt,
		CompensationData: compensation,
	}, nil
}
