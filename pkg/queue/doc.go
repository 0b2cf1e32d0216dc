// Package queue provides a resilient RabbitMQ transport for the event
// bus binding the commerce services together.
//
// # Overview
//
// The package wraps the amqp091-go client with the behaviors every
// service in the platform needs and none should reimplement:
//
//   - Canonical event envelope {type, data, metadata} with a
//     normalization pre-pass accepting the legacy flat form
//   - Publisher confirms on every publish; persistent deliveries
//   - W3C trace-context propagation through message headers
//   - Durable queue + dead-letter-queue topology declaration
//   - Per-message retry with an x-retry-count header and bounded
//     redelivery before dead-lettering
//   - Connection management with bounded exponential reconnect backoff
//   - Optional schema validation on publish and consume
//
// # Basic Usage
//
// Creating a new queue instance:
//
//	config := queue.Config{
//		Scheme:   "amqp",
//		Username: "guest",
//		Password: "guest",
//		Host:     "localhost",
//		Port:     5672,
//		Vhost:    "/",
//	}
//
//	q := queue.NewRabbitMQQueue(config)
//	if err := q.Connect(); err != nil {
//		log.Fatal(err)
//	}
//	defer q.Close()
//
// Publishing an event:
//
//	envelope := queue.Envelope{
//		Type: "ORDER_CREATED",
//		Data: map[string]any{"orderId": "o-123"},
//		Metadata: queue.Metadata{
//			EventID:       uuid.NewString(),
//			CorrelationID: "c-456",
//			Timestamp:     time.Now().UTC(),
//		},
//	}
//
//	err := q.Publish(ctx, "commerce.events", "ORDER_CREATED", envelope)
//
// Consuming events:
//
//	handler := func(ctx context.Context, msg queue.Message, ctrl *queue.MsgController) error {
//		var payload OrderCreated
//		if err := msg.Unmarshal(&payload); err != nil {
//			return err
//		}
//
//		return process(ctx, payload)
//	}
//
//	err := q.Consume(ctx, "q.order.events", "order-service", handler,
//		queue.WithPrefetch(10),
//		queue.WithMaxRetries(3),
//	)
//
// The consume loop applies acknowledgement dispositions from the
// handler's returned error: nil acknowledges, a retryable error requeues
// with an incremented retry count, and a permanent error (or a spent
// retry budget) routes the message to the queue's DLQ. Handlers must not
// acknowledge deliveries themselves.
//
// # Thread Safety
//
// All operations are thread-safe and can be called concurrently from
// multiple goroutines.
package queue
