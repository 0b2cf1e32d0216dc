package runtime

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/internal/service"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

type (
	TracerShutdownFunc func(ctx context.Context) error

	InfrastructureDeps struct {
		StorageClient *infrastructure.Storage
		QueueClient   queue.Queue
		CacheClient   *infrastructure.KeydbClient
		Metrics       infrastructure.Metrics
	}

	Repos struct {
		OutboxRepo    ports.OutboxRepository
		OrderRepo     ports.OrderRepository
		InventoryRepo ports.InventoryRepository
		Idempotency   ports.IdempotencyStore
		Transactor    ports.Transactor
	}

	Services struct {
		Publisher service.PublisherService
		Timeout   service.TimeoutService
		Order     service.OrderService
		Inventory service.InventoryService
		Payment   service.PaymentService
	}

	ApplicationWorkers struct {
		OutboxPublisher ports.BackgroundProcessor
		OutboxCleaner   ports.BackgroundProcessor
		TimeoutWorker   ports.BackgroundProcessor

		// SagaHandlers maps each queue to its consumer handler.
		SagaHandlers map[string]ports.MessageHandler
	}

	Dependencies struct {
		cfg    *config.ServiceConfig
		logger infrastructure.Logger

		Infra    InfrastructureDeps
		Repos    Repos
		Services Services
		Workers  ApplicationWorkers

		tracerShutdownFunc TracerShutdownFunc
	}
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*Dependencies, error) {
	cfg, err := config.Init()
	if err != nil {
		return nil, fmt.Errorf("unable to load service configuration: %w", err)
	}

	appLogger := infrastructure.New(cfg.Logging)

	appLogger.Info().Msg("initializing dependencies...")

	deps := &Dependencies{
		cfg:    cfg,
		logger: appLogger,
	}

	// Start with default options and append any additional options.
	options := append(defaultOptions(ctx), opts...)

	for _, opt := range options {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	deps.logger.Info().Msg("dependencies initialized successfully")

	return deps, nil
}

// cleanup releases infrastructure resources in reverse dependency order.
func (d *Dependencies) cleanup() {
	d.logger.Info().Msg("cleaning up resources...")

	ctx := context.Background()

	if d.Infra.QueueClient != nil {
		if err := d.Infra.QueueClient.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close queue")
		}
	}

	if d.Infra.CacheClient != nil {
		if err := d.Infra.CacheClient.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close idempotency store")
		}
	}

	if d.Infra.StorageClient != nil {
		if err := d.Infra.StorageClient.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close storage")
		}
	}

	if d.Infra.Metrics != nil {
		if err := d.Infra.Metrics.Shutdown(ctx); err != nil {
			d.logger.Error().Err(err).Msg("failed to shut down metrics")
		}
	}

	if d.tracerShutdownFunc != nil {
		if err := d.tracerShutdownFunc(ctx); err != nil {
			d.logger.Error().Err(err).Msg("failed to shut down tracer")
		}
	}

	d.logger.Info().Msg("cleanup completed")
}
