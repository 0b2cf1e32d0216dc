package service

import (
	"context"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

type (
	// TimeoutService expires stranded saga legs and publishes their
	// compensations, so a saga never waits forever on an event that
	// will not arrive.
	TimeoutService interface {
		ExpireBatch(ctx context.Context) (int, error)
	}

	timeoutService struct {
		outboxRepo    ports.OutboxRepository
		queue         queue.Queue
		queueConfig   config.QueueConfig
		timeoutConfig config.TimeoutWorkerConfig
		logger        infrastructure.Logger
		metrics       infrastructure.Metrics
	}
)

func NewTimeoutService(
	outboxRepo ports.OutboxRepository,
	q queue.Queue,
	queueConfig config.QueueConfig,
	timeoutConfig config.TimeoutWorkerConfig,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) TimeoutService {
	return timeoutService{
		outboxRepo:    outboxRepo,
		queue:         q,
		queueConfig:   queueConfig,
		timeoutConfig: timeoutConfig,
		logger:        logger,
		metrics:       metrics,
	}
}

// ExpireBatch claims events whose deadline passed, marks them TIMEOUT,
// and publishes the mapped compensation for each. One event failing
// never aborts the rest of the batch.
func (s timeoutService) ExpireBatch(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.outboxRepo.ClaimExpired(ctx, now, s.timeoutConfig.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, event := range expired {
		s.metrics.RecordSagaTimeout(ctx, string(event.EventType))

		s.logger.Warn().
			Str("event_id", event.EventID).
			Str("event_type", string(event.EventType)).
			Str("correlation_id", event.CorrelationID).
			Time("expires_at", derefTime(event.ExpiresAt)).
			Msg("saga leg expired")

		compensationType, ok := domain.CompensationFor(event.EventType)
		if !ok {
			s.logger.Info().
				Str("event_id", event.EventID).
				Str("event_type", string(event.EventType)).
				Msg("no compensation mapped, skipping")

			continue
		}

		if err := s.publishCompensation(ctx, event, compensationType, now); err != nil {
			s.logger.Error().
				Err(err).
				Str("event_id", event.EventID).
				Str("compensation_type", string(compensationType)).
				Msg("failed to publish compensation")
		}
	}

	return len(expired), nil
}

func (s timeoutService) publishCompensation(ctx context.Context, event *domain.OutboxEvent, compensationType domain.EventType, now time.Time) error {
	// The compensation snapshot taken when the step was staged wins over
	// the original payload, which may carry fields the reversal does not
	// understand.
	payload := event.CompensationData
	if payload == nil {
		payload = event.Payload
	}

	envelope := queue.Envelope{
		Type: string(compensationType),
		Data: payload,
		Metadata: queue.Metadata{
			EventID:       domain.TimeoutCompensationID(event.EventID),
			CorrelationID: event.CorrelationID,
			Timestamp:     now,
		},
	}

	if err := s.queue.Publish(ctx, s.queueConfig.ExchangeName, string(compensationType), envelope); err != nil {
		return err
	}

	s.logger.Info().
		Str("event_id", envelope.Metadata.EventID).
		Str("event_type", string(compensationType)).
		Str("correlation_id", event.CorrelationID).
		Msg("published compensation event")

	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}

	return *t
}
