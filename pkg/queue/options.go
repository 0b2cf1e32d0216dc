package queue

import (
	"time"
)

// Validator checks an event payload against its declared schema. The
// schema registry plugs in here; a nil validator skips validation.
type Validator interface {
	Validate(eventType string, data map[string]any) error
}

type connectionOptions struct {
	reconnectDelay    *time.Duration
	reconnectMaxDelay *time.Duration
	reconnectAttempts *int
	logger            Logger
	validator         Validator
}

type ConnectionOption func(options *connectionOptions)

// WithLogger returns a ConnectionOption which sets the logger when a connection is created.
func WithLogger(l Logger) ConnectionOption {
	return func(o *connectionOptions) {
		o.logger = l
	}
}

// WithReconnectDelay returns a ConnectionOption which sets the initial delay between reconnection attempts.
func WithReconnectDelay(delay time.Duration) ConnectionOption {
	return func(o *connectionOptions) {
		o.reconnectDelay = &delay
	}
}

// WithReconnectMaxDelay returns a ConnectionOption which caps the backoff between reconnection attempts.
func WithReconnectMaxDelay(delay time.Duration) ConnectionOption {
	return func(o *connectionOptions) {
		o.reconnectMaxDelay = &delay
	}
}

// WithReconnectAttempts returns a ConnectionOption which bounds the number of reconnection attempts.
func WithReconnectAttempts(attempts int) ConnectionOption {
	return func(o *connectionOptions) {
		o.reconnectAttempts = &attempts
	}
}

// WithValidator returns a ConnectionOption which installs a schema
// validator applied on publish and on consume.
func WithValidator(v Validator) ConnectionOption {
	return func(o *connectionOptions) {
		o.validator = v
	}
}

// publisherOptions configure a publish call.
type publisherOptions struct {
	timeout time.Duration
}

type PublisherOption func(options *publisherOptions)

const (
	publishingTimeout = 3 * time.Second
)

// WithPublishingTimeout returns a PublisherOption which sets the timeout used when
// publishing the message.
func WithPublishingTimeout(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		o.timeout = d
	}
}

func defaultPublisherOptions() publisherOptions {
	return publisherOptions{
		timeout: publishingTimeout,
	}
}

type consumerOptions struct {
	errHandler   func(error)
	logger       Logger
	prefetch     int
	maxRetries   int
	retryable    func(error) bool
	retryBackoff func(retries int) time.Duration
}

type ConsumerOption func(*consumerOptions)

// WithErrorHandler returns a ConsumerOption which sets a handler for errors that occur when consuming messages.
func WithErrorHandler(handler func(error)) ConsumerOption {
	return func(o *consumerOptions) {
		o.errHandler = handler
	}
}

// WithConsumingLogger returns a ConsumerOption which sets the logger when consuming messages.
func WithConsumingLogger(logger Logger) ConsumerOption {
	return func(o *consumerOptions) {
		o.logger = logger
	}
}

// WithPrefetch returns a ConsumerOption which bounds unacknowledged
// deliveries in flight for this consumer.
func WithPrefetch(count int) ConsumerOption {
	return func(o *consumerOptions) {
		o.prefetch = count
	}
}

// WithMaxRetries returns a ConsumerOption which bounds handler retries
// before a message is dead-lettered.
func WithMaxRetries(n int) ConsumerOption {
	return func(o *consumerOptions) {
		o.maxRetries = n
	}
}

// WithRetryBackoff returns a ConsumerOption which delays each retry by
// the returned duration for the given retry count. Retries are parked in
// the queue's delay queue and dead-letter back when the delay expires.
// Without a schedule, retries republish immediately.
func WithRetryBackoff(f func(retries int) time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.retryBackoff = f
	}
}

// WithRetryClassifier returns a ConsumerOption which decides whether a
// handler error is retryable. Non-retryable errors go straight to the DLQ.
func WithRetryClassifier(f func(error) bool) ConsumerOption {
	return func(o *consumerOptions) {
		o.retryable = f
	}
}

func defaultConsumerOptions() consumerOptions {
	return consumerOptions{
		errHandler: func(_ error) {},
		prefetch:   10,
		maxRetries: defaultMaxRetryCount,
		retryable:  func(_ error) bool { return true },
	}
}
