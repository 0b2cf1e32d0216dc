package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// PublisherCtx runs the outbox publisher loop and the retention cleaner
// in one process.
type PublisherCtx struct {
	deps *Dependencies

	shutdownChannel chan os.Signal

	backgroundActorCtx      context.Context
	backgroundActorStopFunc context.CancelFunc
}

func NewPublisher(opt ...PublisherOption) *PublisherCtx {
	pCtx := &PublisherCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for i := range opt {
		opt[i](pCtx)
	}

	return pCtx
}

func (c *PublisherCtx) Run() {
	c.build()
	c.start()
	c.shutdownHook()
	c.shutdown()
}

func (c *PublisherCtx) build() {
	c.backgroundActorCtx, c.backgroundActorStopFunc = context.WithCancel(context.Background())

	deps, err := initializeDependencies(c.backgroundActorCtx, WithPublisher())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	c.deps = deps
}

func (c *PublisherCtx) start() {
	go func() {
		c.deps.logger.Info().Msg("starting outbox publisher service")

		if err := c.deps.Workers.OutboxPublisher.Start(c.backgroundActorCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.deps.logger.Fatal().Err(err).Msg("outbox publisher failed")
		}
	}()

	go func() {
		if err := c.deps.Workers.OutboxCleaner.Start(c.backgroundActorCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.deps.logger.Fatal().Err(err).Msg("outbox cleaner failed")
		}
	}()

	startMetricsServer(c.backgroundActorCtx, c.deps)
}

func (c *PublisherCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *PublisherCtx) shutdown() {
	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.backgroundActorCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	c.deps.logger.Info().Msg("received shutdown signal")

	// Cancel context that underlying processes would start cleanup
	c.backgroundActorStopFunc()

	c.deps.cleanup()

	c.deps.logger.Info().Msg("outbox publisher service stopped")
}
