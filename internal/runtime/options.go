package runtime

import (
	"os"
)

type (
	PublisherOption func(*PublisherCtx)

	WorkerOption func(*SagaWorkerCtx)

	TimeoutOption func(*TimeoutWorkerCtx)
)

func WithPublisherTermination(ch chan os.Signal) PublisherOption {
	return func(ctx *PublisherCtx) {
		ctx.shutdownChannel = ch
	}
}

func WithWorkerTermination(ch chan os.Signal) WorkerOption {
	return func(ctx *SagaWorkerCtx) {
		ctx.shutdownChannel = ch
	}
}

func WithTimeoutTermination(ch chan os.Signal) TimeoutOption {
	return func(ctx *TimeoutWorkerCtx) {
		ctx.shutdownChannel = ch
	}
}
