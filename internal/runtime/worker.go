package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SagaWorkerCtx runs one consumer per saga queue in a single process.
type SagaWorkerCtx struct {
	deps *Dependencies

	shutdownChannel chan os.Signal

	backgroundActorCtx      context.Context
	backgroundActorStopFunc context.CancelFunc
}

func NewSagaWorker(opt ...WorkerOption) *SagaWorkerCtx {
	wCtx := &SagaWorkerCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for i := range opt {
		opt[i](wCtx)
	}

	return wCtx
}

func (c *SagaWorkerCtx) Run() {
	c.build()
	c.start()
	c.shutdownHook()
	c.shutdown()
}

func (c *SagaWorkerCtx) build() {
	c.backgroundActorCtx, c.backgroundActorStopFunc = context.WithCancel(context.Background())

	deps, err := initializeDependencies(c.backgroundActorCtx, WithSagaWorkers())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	c.deps = deps
}

func (c *SagaWorkerCtx) start() {
	c.deps.logger.Info().
		Int("queues", len(c.deps.Workers.SagaHandlers)).
		Msg("starting saga worker service")

	for queueName, handler := range c.deps.Workers.SagaHandlers {
		queueName, handler := queueName, handler

		go func() {
			err := c.deps.Infra.QueueClient.Consume(
				c.backgroundActorCtx,
				queueName,
				queueName,
				handler.ProcessMessage,
				c.deps.consumerOptions()...,
			)

			if err != nil && !errors.Is(err, context.Canceled) {
				c.deps.logger.Fatal().Err(err).Str("queue", queueName).Msg("saga consumer failed")
			}
		}()
	}

	startMetricsServer(c.backgroundActorCtx, c.deps)
}

func (c *SagaWorkerCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *SagaWorkerCtx) shutdown() {
	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.backgroundActorCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	c.deps.logger.Info().Msg("received shutdown signal")

	c.backgroundActorStopFunc()

	c.deps.cleanup()

	c.deps.logger.Info().Msg("saga worker service stopped")
}
