package outbox

import (
	"context"
	"math/rand"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/internal/service"
)

// Ensure Publisher implements the BackgroundProcessor interface
var _ ports.BackgroundProcessor = (*Publisher)(nil)

// Publisher polls the outbox and pushes pending events to the broker.
// The poll interval is jittered so replicas do not wake in lockstep.
type Publisher struct {
	svc    service.PublisherService
	config config.OutboxConfig
	logger infrastructure.Logger
}

func NewPublisher(
	svc service.PublisherService,
	cfg config.OutboxConfig,
	logger infrastructure.Logger,
) *Publisher {
	return &Publisher{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
}

func (p *Publisher) Start(ctx context.Context) error {
	p.logger.Info().
		Dur("poll_interval", p.config.PollInterval).
		Int("batch_size", p.config.BatchSize).
		Msg("starting outbox publisher")

	timer := time.NewTimer(p.jitteredInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher shutting down")

			return ctx.Err()

		case <-timer.C:
			if err := p.drainBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to drain outbox batch")
			}

			timer.Reset(p.jitteredInterval())
		}
	}
}

func (p *Publisher) drainBatch(ctx context.Context) error {
	events, err := p.svc.FetchPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	p.logger.Debug().Int("count", len(events)).Msg("publishing pending outbox events")

	// Sequential on purpose: events staged in one commit, like a
	// cancellation and its RELEASE compensation, must reach the broker
	// in the order they were staged.
	for _, event := range events {
		result, err := p.svc.PublishEvent(ctx, event)
		if err != nil {
			p.logger.Error().
				Err(err).
				Str("event_id", event.EventID).
				Msg("failed to publish outbox event")

			continue
		}

		if !result.Published {
			p.logger.Debug().
				Str("event_id", event.EventID).
				Str("error", result.Error).
				Msg("outbox event not published")
		}
	}

	return nil
}

// jitteredInterval spreads polls across +-20% of the configured interval.
func (p *Publisher) jitteredInterval() time.Duration {
	jitter := 1 + 0.2*(rand.Float64()*2-1)

	return time.Duration(float64(p.config.PollInterval) * jitter)
}
