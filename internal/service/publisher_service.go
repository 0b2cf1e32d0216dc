package service

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

type (
	// PublisherService drains the outbox: claim a batch of pending
	// events, publish each to the broker, and record the outcome.
	PublisherService interface {
		FetchPendingEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error)
		PublishEvent(ctx context.Context, event *domain.OutboxEvent) (*domain.PublishOutboxEventResult, error)
		CleanupPublished(ctx context.Context) (int64, error)
	}

	publisherService struct {
		outboxRepo   ports.OutboxRepository
		queue        queue.Queue
		queueConfig  config.QueueConfig
		outboxConfig config.OutboxConfig
		logger       infrastructure.Logger
		metrics      infrastructure.Metrics
	}
)

func NewPublisherService(
	outboxRepo ports.OutboxRepository,
	q queue.Queue,
	queueConfig config.QueueConfig,
	outboxConfig config.OutboxConfig,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) PublisherService {
	return publisherService{
		outboxRepo:   outboxRepo,
		queue:        q,
		queueConfig:  queueConfig,
		outboxConfig: outboxConfig,
		logger:       logger,
		metrics:      metrics,
	}
}

func (s publisherService) FetchPendingEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error) {
	return s.outboxRepo.ClaimPending(ctx, batchSize)
}

// PublishEvent pushes one outbox event to the broker and settles its
// status. The broker publish happens before the status flip, so a crash
// between the two yields a duplicate delivery, not a lost one.
func (s publisherService) PublishEvent(ctx context.Context, event *domain.OutboxEvent) (*domain.PublishOutboxEventResult, error) {
	envelope := queue.Envelope{
		Type: string(event.EventType),
		Data: event.Payload,
		Metadata: queue.Metadata{
			EventID:       event.EventID,
			CorrelationID: event.CorrelationID,
			Timestamp:     event.CreatedAt,
		},
	}

	if err := s.queue.Publish(ctx, s.queueConfig.ExchangeName, event.Destination, envelope); err != nil {
		s.metrics.RecordOutboxEvent(ctx, false, string(event.EventType))

		if markErr := s.outboxRepo.MarkFailed(ctx, event.EventID, err.Error(), s.outboxConfig.MaxAttempts); markErr != nil {
			s.logger.Error().
				Err(markErr).
				Str("event_id", event.EventID).
				Msg("failed to record publish failure")
		}

		return &domain.PublishOutboxEventResult{
			Published: false,
			Error:     fmt.Sprintf("failed to publish to queue: %v", err),
		}, nil
	}

	if err := s.outboxRepo.MarkPublished(ctx, event.EventID); err != nil {
		// The publish went out; losing the status flip means the row is
		// retried and the consumer sees a duplicate, which idempotency
		// keys absorb.
		s.logger.Warn().
			Err(err).
			Str("event_id", event.EventID).
			Msg("published but failed to mark as published")

		return &domain.PublishOutboxEventResult{
			Published: false,
			Error:     fmt.Sprintf("failed to mark as published: %v", err),
		}, nil
	}

	s.metrics.RecordOutboxEvent(ctx, true, string(event.EventType))

	s.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", string(event.EventType)).
		Str("destination", event.Destination).
		Msg("successfully published outbox event")

	return &domain.PublishOutboxEventResult{Published: true}, nil
}

// CleanupPublished prunes published rows older than the retention window.
func (s publisherService) CleanupPublished(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.outboxConfig.Retention())

	deleted, err := s.outboxRepo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune published outbox events: %w", err)
	}

	if deleted > 0 {
		s.logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("pruned published outbox events")
	}

	return deleted, nil
}
