package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// TimeoutWorkerCtx runs the saga-deadline scanner in its own process.
type TimeoutWorkerCtx struct {
	deps *Dependencies

	shutdownChannel chan os.Signal

	backgroundActorCtx      context.Context
	backgroundActorStopFunc context.CancelFunc
}

func NewTimeoutWorker(opt ...TimeoutOption) *TimeoutWorkerCtx {
	tCtx := &TimeoutWorkerCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for i := range opt {
		opt[i](tCtx)
	}

	return tCtx
}

func (c *TimeoutWorkerCtx) Run() {
	c.build()
	c.start()
	c.shutdownHook()
	c.shutdown()
}

func (c *TimeoutWorkerCtx) build() {
	c.backgroundActorCtx, c.backgroundActorStopFunc = context.WithCancel(context.Background())

	deps, err := initializeDependencies(c.backgroundActorCtx, WithTimeoutWorker())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	c.deps = deps
}

func (c *TimeoutWorkerCtx) start() {
	go func() {
		c.deps.logger.Info().Msg("starting timeout worker service")

		if err := c.deps.Workers.TimeoutWorker.Start(c.backgroundActorCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.deps.logger.Fatal().Err(err).Msg("timeout worker failed")
		}
	}()

	startMetricsServer(c.backgroundActorCtx, c.deps)
}

func (c *TimeoutWorkerCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *TimeoutWorkerCtx) shutdown() {
	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.backgroundActorCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	c.deps.logger.Info().Msg("received shutdown signal")

	c.backgroundActorStopFunc()

	c.deps.cleanup()

	c.deps.logger.Info().Msg("timeout worker service stopped")
}
