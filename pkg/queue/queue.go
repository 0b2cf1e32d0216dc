package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultReconnectDelay    = 5 * time.Second
	defaultReconnectMaxDelay = 60 * time.Second
	defaultReconnectAttempts = 5
)

// ErrNotConnected is returned for operations attempted before Connect.
var ErrNotConnected = errors.New("not connected to RabbitMQ")

type (
	// Queue represents the main queue interface for publishing and consuming messages.
	Queue interface {
		// Publisher operations
		Publish(ctx context.Context, exchange, routingKey string, envelope Envelope, opts ...PublisherOption) error

		// Consumer operations
		Consume(ctx context.Context, queue, consumer string, handler MessageHandler, opts ...ConsumerOption) error
		StartConsumer(ctx context.Context, queue, consumer string, handler MessageHandler, opts ...ConsumerOption) (<-chan error, error)

		// Infrastructure operations
		DeclareTopology(exchange string, bindings []QueueBinding) error

		// Connection management
		Connect() error
		Close() error
		IsConnected() bool
	}

	// MessageHandler defines the function signature for message processing.
	// The consume loop applies the acknowledgement disposition based on the
	// returned error and the configured retry classifier.
	MessageHandler func(ctx context.Context, msg Message, ctrl *MsgController) error

	// QueueBinding declares a durable queue, its DLQ, and the routing
	// keys binding it to the events exchange.
	QueueBinding struct {
		Queue       string
		RoutingKeys []string
	}

	// RabbitMQQueue implements the Queue interface using RabbitMQ.
	RabbitMQQueue struct {
		config            Config
		conn              *amqp.Connection
		channel           *ChannelWrapper
		logger            Logger
		validator         Validator
		mutex             sync.RWMutex
		reconnectDelay    time.Duration
		reconnectMaxDelay time.Duration
		reconnectAttempts int
		closed            bool
	}
)

// NewRabbitMQQueue creates a new RabbitMQ queue implementation.
func NewRabbitMQQueue(config Config, opts ...ConnectionOption) *RabbitMQQueue {
	options := &connectionOptions{
		reconnectDelay:    &[]time.Duration{defaultReconnectDelay}[0],
		reconnectMaxDelay: &[]time.Duration{defaultReconnectMaxDelay}[0],
		reconnectAttempts: &[]int{defaultReconnectAttempts}[0],
	}

	for _, opt := range opts {
		opt(options)
	}

	return &RabbitMQQueue{
		config:            config,
		reconnectDelay:    *options.reconnectDelay,
		reconnectMaxDelay: *options.reconnectMaxDelay,
		reconnectAttempts: *options.reconnectAttempts,
		logger:            options.logger,
		validator:         options.validator,
	}
}

// Connect establishes a connection to RabbitMQ with bounded exponential
// backoff. After the attempt budget is spent the error is fatal and the
// process should exit for supervisor restart.
func (q *RabbitMQQueue) Connect() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		return nil // Already connected
	}

	if err := q.config.Validate(); err != nil {
		return err
	}

	var lastErr error
	delay := q.reconnectDelay

	for attempt := 0; attempt < q.reconnectAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)

			delay *= 2
			if delay > q.reconnectMaxDelay {
				delay = q.reconnectMaxDelay
			}
		}

		conn, err := amqp.Dial(getURL(q.config))
		if err != nil {
			lastErr = err
			if q.logger != nil {
				q.logger.Error().Err(err).Int("attempt", attempt+1).Msg("failed to connect to RabbitMQ")
			}

			continue
		}

		amqpCh, err := conn.Channel()
		if err != nil {
			conn.Close()
			lastErr = err

			continue
		}

		wrapper, err := newChannelWrapper(amqpCh, q.logger, q.reconnectDelay)
		if err != nil {
			conn.Close()
			lastErr = err

			continue
		}

		q.conn = conn
		q.channel = wrapper

		if q.logger != nil {
			q.logger.Info().Msg("Successfully connected to RabbitMQ")
		}

		return nil
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", q.reconnectAttempts, lastErr)
}

// Close closes the connection to RabbitMQ.
func (q *RabbitMQQueue) Close() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.closed = true

	if q.channel != nil {
		q.channel.Close()
	}

	if q.conn != nil && !q.conn.IsClosed() {
		return q.conn.Close()
	}

	return nil
}

// IsConnected returns true if connected to RabbitMQ.
func (q *RabbitMQQueue) IsConnected() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.conn != nil && !q.conn.IsClosed()
}

// DeclareTopology declares the durable events exchange, then for each
// binding a durable queue, its paired DLQ and delay queue, and the
// routing-key bindings. The delay queue has no consumers: retries parked
// there with a per-message TTL dead-letter back to the origin queue.
func (q *RabbitMQQueue) DeclareTopology(exchange string, bindings []QueueBinding) error {
	if !q.IsConnected() {
		return ErrNotConnected
	}

	if err := q.channel.exchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	for _, binding := range bindings {
		if _, err := q.channel.queueDeclare(binding.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", binding.Queue, err)
		}

		if _, err := q.channel.queueDeclare(DLQName(binding.Queue), true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare DLQ for %s: %w", binding.Queue, err)
		}

		retryArgs := amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": binding.Queue,
		}
		if _, err := q.channel.queueDeclare(RetryQueueName(binding.Queue), true, false, false, false, retryArgs); err != nil {
			return fmt.Errorf("failed to declare retry queue for %s: %w", binding.Queue, err)
		}

		for _, key := range binding.RoutingKeys {
			if err := q.channel.queueBind(binding.Queue, key, exchange, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue %s to %s: %w", binding.Queue, key, err)
			}
		}
	}

	return nil
}

// Publish validates, serializes, and publishes the envelope as a
// persistent message with the trace context injected into its headers.
// The broker's publisher confirm is awaited before returning.
func (q *RabbitMQQueue) Publish(ctx context.Context, exchange, routingKey string, envelope Envelope, opts ...PublisherOption) error {
	if !q.IsConnected() {
		return ErrNotConnected
	}

	options := defaultPublisherOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if q.validator != nil {
		if err := q.validator.Validate(envelope.Type, envelope.Data); err != nil {
			return fmt.Errorf("refusing to publish invalid event %s: %w", envelope.Type, err)
		}
	}

	headers := amqp.Table{}
	InjectTraceContext(ctx, headers)

	if traceparent, ok := headers["traceparent"].(string); ok {
		envelope.Metadata.Traceparent = traceparent
	}

	body, err := envelope.marshal()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
		Headers:       headers,
		MessageId:     envelope.Metadata.EventID,
		CorrelationId: envelope.Metadata.CorrelationID,
	}

	return q.channel.publish(ctx, exchange, routingKey, false, false, publishing)
}

// Consume consumes messages from a queue (blocking).
func (q *RabbitMQQueue) Consume(ctx context.Context, queue, consumer string, handler MessageHandler, opts ...ConsumerOption) error {
	errChan, err := q.StartConsumer(ctx, queue, consumer, handler, opts...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// StartConsumer starts consuming messages from a queue (non-blocking).
//
// For each delivery: the trace context is restored from the headers, the
// body is normalized into the canonical envelope, validated if a schema
// validator is installed, and handed to the handler. Handler results map
// to dispositions: nil acks; a retryable error requeues with backoff up
// to the retry budget; anything else is dead-lettered.
func (q *RabbitMQQueue) StartConsumer(ctx context.Context, queue, consumer string, handler MessageHandler, opts ...ConsumerOption) (<-chan error, error) {
	if !q.IsConnected() {
		return nil, ErrNotConnected
	}

	options := defaultConsumerOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if err := q.channel.qos(options.prefetch); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries := q.channel.consume(queue, consumer, false, false, false, false, nil)
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		msgCtrl := &MsgController{
			ch:           q.channel,
			queueName:    queue,
			maxRetries:   options.maxRetries,
			retryBackoff: options.retryBackoff,
		}

		for {
			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				q.handleDelivery(ctx, delivery, queue, handler, msgCtrl, options)
			}
		}
	}()

	return errChan, nil
}

func (q *RabbitMQQueue) handleDelivery(
	ctx context.Context,
	delivery amqp.Delivery,
	queueName string,
	handler MessageHandler,
	msgCtrl *MsgController,
	options consumerOptions,
) {
	msgCtx := ExtractTraceContext(ctx, delivery.Headers)

	envelope, err := Normalize(delivery.Body)
	if err != nil {
		// Malformed payloads cannot be fixed by redelivery.
		q.deadLetterRaw(ctx, delivery, queueName, "malformed payload", err, options)

		return
	}

	msg := Message{
		Envelope:     envelope,
		amqpDelivery: NewAmqpDeliveryAdapter(delivery),
	}

	if q.validator != nil {
		if err := q.validator.Validate(envelope.Type, envelope.Data); err != nil {
			if dlqErr := msgCtrl.DeadLetter(ctx, msg, "schema validation failed", err); dlqErr != nil {
				options.errHandler(dlqErr)
			}

			return
		}
	}

	err = handler(msgCtx, msg, msgCtrl)
	if err == nil {
		if ackErr := msg.amqpDelivery.Ack(false); ackErr != nil {
			options.errHandler(ackErr)
		}

		return
	}

	if options.logger != nil {
		options.logger.Error().Err(err).Str("queue", queueName).Str("event_type", envelope.Type).Msg("message handler failed")
	}
	options.errHandler(err)

	if !options.retryable(err) {
		if dlqErr := msgCtrl.DeadLetter(ctx, msg, "permanent handler failure", err); dlqErr != nil {
			options.errHandler(dlqErr)
		}

		return
	}

	if requeueErr := msgCtrl.Requeue(ctx, msg); requeueErr != nil {
		if errors.Is(requeueErr, ErrRetryCountExceeded) {
			if dlqErr := msgCtrl.DeadLetter(ctx, msg, "max retries exceeded", err); dlqErr != nil {
				options.errHandler(dlqErr)
			}

			return
		}

		options.errHandler(requeueErr)
		// Redelivery via broker as a last resort.
		if nackErr := msg.amqpDelivery.Nack(false, true); nackErr != nil {
			options.errHandler(nackErr)
		}
	}
}

// deadLetterRaw routes a delivery that never parsed into an envelope.
func (q *RabbitMQQueue) deadLetterRaw(ctx context.Context, delivery amqp.Delivery, queueName, reason string, cause error, options consumerOptions) {
	headers := amqp.Table{
		dlqReasonHeader: reason,
		origQueueHeader: queueName,
	}
	if cause != nil {
		headers[errorHeader] = cause.Error()
	}

	err := q.channel.publish(ctx, "", DLQName(queueName), false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		Body:         delivery.Body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      headers,
	})
	if err != nil {
		options.errHandler(err)
		_ = delivery.Nack(false, false)

		return
	}

	if err := delivery.Ack(false); err != nil {
		options.errHandler(err)
	}
}
