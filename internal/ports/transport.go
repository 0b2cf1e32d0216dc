package ports

import (
	"context"

	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

type (
	// EventPublisher publishes canonical envelopes onto the event bus.
	EventPublisher interface {
		Publish(ctx context.Context, exchange, routingKey string, envelope queue.Envelope, opts ...queue.PublisherOption) error
	}

	// MessageHandler defines the interface for processing queue messages
	MessageHandler interface {
		ProcessMessage(ctx context.Context, msg queue.Message, ctrl *queue.MsgController) error
	}
)
