package outbox

import (
	"context"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/internal/service"
)

// Ensure TimeoutWorker implements the BackgroundProcessor interface
var _ ports.BackgroundProcessor = (*TimeoutWorker)(nil)

// TimeoutWorker periodically expires saga legs whose deadline passed and
// triggers their compensations.
type TimeoutWorker struct {
	svc    service.TimeoutService
	config config.TimeoutWorkerConfig
	logger infrastructure.Logger
}

func NewTimeoutWorker(
	svc service.TimeoutService,
	cfg config.TimeoutWorkerConfig,
	logger infrastructure.Logger,
) *TimeoutWorker {
	return &TimeoutWorker{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
}

func (w *TimeoutWorker) Start(ctx context.Context) error {
	w.logger.Info().
		Dur("scan_interval", w.config.ScanInterval).
		Int("batch_size", w.config.BatchSize).
		Msg("starting timeout worker")

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("timeout worker shutting down")

			return ctx.Err()

		case <-ticker.C:
			expired, err := w.svc.ExpireBatch(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("failed to expire outbox batch")

				continue
			}

			if expired > 0 {
				w.logger.Info().Int("expired", expired).Msg("expired saga legs")
			}
		}
	}
}
