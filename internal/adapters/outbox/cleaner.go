package outbox

import (
	"context"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/internal/service"
)

// Ensure Cleaner implements the BackgroundProcessor interface
var _ ports.BackgroundProcessor = (*Cleaner)(nil)

// Cleaner prunes published outbox rows past the retention window so the
// table does not grow without bound.
type Cleaner struct {
	svc    service.PublisherService
	config config.OutboxConfig
	logger infrastructure.Logger
}

func NewCleaner(
	svc service.PublisherService,
	cfg config.OutboxConfig,
	logger infrastructure.Logger,
) *Cleaner {
	return &Cleaner{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
}

func (c *Cleaner) Start(ctx context.Context) error {
	c.logger.Info().
		Dur("interval", c.config.CleanupEvery).
		Int("retention_days", c.config.RetentionDays).
		Msg("starting outbox cleaner")

	ticker := time.NewTicker(c.config.CleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("outbox cleaner shutting down")

			return ctx.Err()

		case <-ticker.C:
			if _, err := c.svc.CleanupPublished(ctx); err != nil {
				c.logger.Error().Err(err).Msg("failed to prune outbox")
			}
		}
	}
}
