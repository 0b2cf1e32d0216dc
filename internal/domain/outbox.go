package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus tracks the lifecycle of a staged event. Progression is
// one-way. PUBLISHED is not terminal for deadline-armed events: the row
// stays claimable by the timeout worker until the awaited reply settles
// it to COMPLETED.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	OutboxStatusCompleted OutboxStatus = "COMPLETED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
	OutboxStatusTimeout   OutboxStatus = "TIMEOUT"
)

// IsTerminal reports whether no further transition is allowed.
func (s OutboxStatus) IsTerminal() bool {
	return s == OutboxStatusCompleted || s == OutboxStatusFailed || s == OutboxStatusTimeout
}

// CanTransitionTo enforces the one-way lifecycle. A reply may settle a
// row that is still PENDING when the publish raced the status flip.
func (s OutboxStatus) CanTransitionTo(next OutboxStatus) bool {
	switch s {
	case OutboxStatusPending:
		return next == OutboxStatusPublished || next.IsTerminal()
	case OutboxStatusPublished:
		return next == OutboxStatusCompleted || next == OutboxStatusTimeout
	default:
		return false
	}
}

type (
	// OutboxEvent is staged in the same transaction as the business
	// mutation it describes and published asynchronously afterwards.
	OutboxEvent struct {
		ID               uuid.UUID
		EventID          string
		CorrelationID    string
		EventType        EventType
		Destination      string
		Payload          map[string]any
		Status           OutboxStatus
		AttemptCount     int
		LastError        *string
		CreatedAt        time.Time
		PublishedAt      *time.Time
		ExpiresAt        *time.Time
		CompensationData map[string]any
	}

	PublishOutboxEventResult struct {
		Published bool
		Error     string
	}
)

// NewOutboxEvent stages an event in PENDING with a fresh event id.
func NewOutboxEvent(correlationID string, eventType EventType, destination string, payload map[string]any) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		EventType:     eventType,
		Destination:   destination,
		Payload:       payload,
		Status:        OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// WithExpiry arms the saga-leg timeout deadline for this event.
func (e *OutboxEvent) WithExpiry(deadline time.Time) *OutboxEvent {
	e.ExpiresAt = &deadline

	return e
}

// WithCompensationData snapshots the data needed to reverse this step.
func (e *OutboxEvent) WithCompensationData(data map[string]any) *OutboxEvent {
	e.CompensationData = data

	return e
}

// IsExpired reports whether the saga-leg deadline has passed. A deadline
// exactly equal to now is not yet expired.
func (e *OutboxEvent) IsExpired(now time.Time) bool {
	if e.ExpiresAt == nil {
		return false
	}

	return e.ExpiresAt.Before(now)
}
