package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOutboxEventNotFound    = errors.New("outbox event not found")
	ErrTransportNotConnected  = errors.New("transport not connected")
	ErrCircuitOpen            = errors.New("circuit breaker open")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrOrderNotFound          = errors.New("order not found")
	ErrIdempotencyUnavailable = errors.New("idempotency store unavailable")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

type (
	// ValidationError marks a payload that failed schema validation.
	// On publish it is a programmer error; on consume it routes the
	// message to the DLQ, never to retry.
	ValidationError struct {
		EventType EventType
		Reasons   []string
	}

	// TransientError marks a failure the outer loop may retry with
	// backoff: broker nack, connection loss, timeouts.
	TransientError struct {
		Op    string
		Cause error
	}

	// PermanentError marks a failure redelivery cannot fix; the message
	// is dead-lettered.
	PermanentError struct {
		Reason string
		Cause  error
	}

	InvalidStateTransitionError struct {
		From string
		To   string
	}

	MaxAttemptsExceededError struct {
		EventID     string
		Attempts    int
		MaxAttempts int
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event %s failed schema validation: %v", e.EventType, e.Reasons)
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent failure: %s: %v", e.Reason, e.Cause)
	}

	return fmt.Sprintf("permanent failure: %s", e.Reason)
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func (e *MaxAttemptsExceededError) Error() string {
	return fmt.Sprintf("max publish attempts exceeded for event %s: %d/%d", e.EventID, e.Attempts, e.MaxAttempts)
}

// NewTransientError wraps a retryable transport or store failure.
func NewTransientError(op string, cause error) *TransientError {
	return &TransientError{Op: op, Cause: cause}
}

// NewPermanentError wraps a failure that must go to the DLQ.
func NewPermanentError(reason string, cause error) *PermanentError {
	return &PermanentError{Reason: reason, Cause: cause}
}

// IsRetryable reports whether the consumer framework should redeliver.
func IsRetryable(err error) bool {
	var p *PermanentError
	if errors.As(err, &p) {
		return false
	}

	var v *ValidationError
	if errors.As(err, &v) {
		return false
	}

	return true
}
