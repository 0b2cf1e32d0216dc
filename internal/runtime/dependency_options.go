package runtime

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/adapters"
	"github.com/architeacher/svc-commerce-saga/internal/adapters/outbox"
	"github.com/architeacher/svc-commerce-saga/internal/adapters/repos"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/saga"
	"github.com/architeacher/svc-commerce-saga/internal/schema"
	"github.com/architeacher/svc-commerce-saga/internal/service"
	"github.com/architeacher/svc-commerce-saga/internal/shared/backoff"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

type (
	DependencyOption func(*Dependencies) error
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithStorage(),
		WithCache(ctx),
		WithDataRepos(),
		WithMetrics(ctx),
		WithTracing(ctx),
	}
}

func WithStorage() DependencyOption {
	return func(d *Dependencies) error {
		storage, err := infrastructure.NewStorage(d.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}

		if _, err := storage.GetDB(); err != nil {
			return fmt.Errorf("failed to get database connection: %w", err)
		}

		d.Infra.StorageClient = storage

		return nil
	}
}

func WithCache(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		cacheClient := infrastructure.NewKeyDBClient(d.cfg.Cache, d.logger)

		cacheCtx, cancel := context.WithTimeout(ctx, d.cfg.Cache.DialTimeout)
		defer cancel()

		if err := cacheClient.Ping(cacheCtx); err != nil {
			// The idempotency store is load-bearing; without it duplicate
			// deliveries would double-apply.
			return fmt.Errorf("failed to connect to idempotency store: %w", err)
		}

		d.logger.Info().Msg("idempotency store connection established")
		d.Infra.CacheClient = cacheClient

		return nil
	}
}

func WithDataRepos() DependencyOption {
	return func(d *Dependencies) error {
		db, err := d.Infra.StorageClient.GetDB()
		if err != nil {
			return fmt.Errorf("failed to get database connection: %w", err)
		}

		d.Repos.OutboxRepo = repos.NewOutboxRepository(db)
		d.Repos.OrderRepo = repos.NewOrderRepository(db)
		d.Repos.InventoryRepo = repos.NewInventoryRepository(db)
		d.Repos.Idempotency = repos.NewIdempotencyRepository(d.Infra.CacheClient.Client())
		d.Repos.Transactor = repos.NewTransactor(db)

		return nil
	}
}

func WithMetrics(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		metrics, err := infrastructure.NewMetrics(ctx, *d.cfg, d.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		d.Infra.Metrics = metrics

		return nil
	}
}

func WithTracing(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Telemetry.Traces.Enabled {
			d.tracerShutdownFunc = func(_ context.Context) error {
				return nil
			}

			return nil
		}

		tracerShutdownFunc, err := infrastructure.InitGlobalTracer(ctx, d.cfg.Telemetry, d.cfg.AppConfig)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to initialize global tracer")

			return err
		}

		d.tracerShutdownFunc = tracerShutdownFunc

		return nil
	}
}

// WithQueue connects to the broker, installs the schema registry as the
// transport validator, and declares the exchange, queues, and DLQs.
func WithQueue() DependencyOption {
	return func(d *Dependencies) error {
		registry, err := schema.NewRegistry()
		if err != nil {
			return fmt.Errorf("failed to build schema registry: %w", err)
		}

		queueClient := queue.NewRabbitMQQueue(
			queue.Config{
				Scheme:   d.cfg.Queue.Scheme,
				Username: d.cfg.Queue.Username,
				Password: d.cfg.Queue.Password,
				Host:     d.cfg.Queue.Host,
				Port:     d.cfg.Queue.Port,
				Vhost:    d.cfg.Queue.VirtualHost,
			},
			queue.WithLogger(queue.NewZerologAdapter(d.logger.Logger)),
			queue.WithValidator(registry),
			queue.WithReconnectDelay(d.cfg.Queue.ReconnectDelay),
			queue.WithReconnectMaxDelay(d.cfg.Queue.ReconnectMaxDelay),
			queue.WithReconnectAttempts(d.cfg.Queue.ReconnectAttempts),
		)

		if err := queueClient.Connect(); err != nil {
			return fmt.Errorf("failed to connect to queue: %w", err)
		}

		if err := queueClient.DeclareTopology(d.cfg.Queue.ExchangeName, saga.Bindings()); err != nil {
			return fmt.Errorf("failed to declare topology: %w", err)
		}

		d.Infra.QueueClient = queueClient

		return nil
	}
}

// WithPublisher wires the outbox publisher loop and the retention
// cleaner.
func WithPublisher() DependencyOption {
	return func(d *Dependencies) error {
		if err := WithQueue()(d); err != nil {
			return err
		}

		d.Services.Publisher = service.NewPublisherService(
			d.Repos.OutboxRepo,
			d.Infra.QueueClient,
			d.cfg.Queue,
			d.cfg.Outbox,
			d.logger.Component("outbox-publisher"),
			d.Infra.Metrics,
		)

		d.Workers.OutboxPublisher = outbox.NewPublisher(
			d.Services.Publisher,
			d.cfg.Outbox,
			d.logger.Component("outbox-publisher"),
		)

		d.Workers.OutboxCleaner = outbox.NewCleaner(
			d.Services.Publisher,
			d.cfg.Outbox,
			d.logger.Component("outbox-cleaner"),
		)

		return nil
	}
}

// WithTimeoutWorker wires the saga-deadline scanner.
func WithTimeoutWorker() DependencyOption {
	return func(d *Dependencies) error {
		if err := WithQueue()(d); err != nil {
			return err
		}

		d.Services.Timeout = service.NewTimeoutService(
			d.Repos.OutboxRepo,
			d.Infra.QueueClient,
			d.cfg.Queue,
			d.cfg.Timeout,
			d.logger.Component("timeout-worker"),
			d.Infra.Metrics,
		)

		d.Workers.TimeoutWorker = outbox.NewTimeoutWorker(
			d.Services.Timeout,
			d.cfg.Timeout,
			d.logger.Component("timeout-worker"),
		)

		return nil
	}
}

// WithSagaWorkers wires the per-queue saga handlers and the services
// they drive.
func WithSagaWorkers() DependencyOption {
	return func(d *Dependencies) error {
		if err := WithQueue()(d); err != nil {
			return err
		}

		d.Services.Order = service.NewOrderService(
			d.Repos.OrderRepo,
			d.Repos.OutboxRepo,
			d.Repos.Transactor,
			d.cfg.Timeout,
			d.logger.Component("order-service"),
		)

		d.Services.Inventory = service.NewInventoryService(
			d.Repos.InventoryRepo,
			d.Repos.OutboxRepo,
			d.Repos.Transactor,
			d.logger.Component("inventory-service"),
		)

		paymentClient := adapters.NewServiceClient(
			"payment-gateway",
			d.cfg.Gateway.PaymentBaseURL,
			d.cfg.Breaker,
			d.logger.Component("payment-gateway"),
		)

		d.Services.Payment = service.NewPaymentService(
			adapters.NewPaymentGateway(paymentClient),
			d.Repos.OutboxRepo,
			d.Repos.Transactor,
			d.logger.Component("payment-service"),
		)

		d.Workers.SagaHandlers = saga.Handlers(saga.Deps{
			OrderService:     d.Services.Order,
			InventoryService: d.Services.Inventory,
			PaymentService:   d.Services.Payment,
			Idempotency:      d.Repos.Idempotency,
			IdempotencyTTL:   d.cfg.Cache.IdempotencyTTL,
			Logger:           d.logger.Component("saga"),
			Metrics:          d.Infra.Metrics,
		})

		return nil
	}
}

// consumerOptions are shared by every saga consumer.
func (d *Dependencies) consumerOptions() []queue.ConsumerOption {
	return []queue.ConsumerOption{
		queue.WithConsumingLogger(queue.NewZerologAdapter(d.logger.Logger)),
		queue.WithPrefetch(d.cfg.Queue.PrefetchCount),
		queue.WithMaxRetries(d.cfg.Queue.MaxRetries),
		queue.WithRetryBackoff(backoff.NewExponentialStrategy(d.cfg.Backoff).Backoff),
		queue.WithRetryClassifier(domain.IsRetryable),
		queue.WithErrorHandler(func(err error) {
			d.logger.Error().Err(err).Msg("consumer error")
		}),
	}
}
