package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultMaxRetryCount = 3

	retryCountHeader = "x-retry-count"
	dlqReasonHeader  = "x-dlq-reason"
	errorHeader      = "x-error"
	origQueueHeader  = "x-orig-queue"
)

var (
	// ErrRetryCountExceeded describes that a message has reached the maximum allowed retry count.
	ErrRetryCountExceeded = errors.New("retries count exceeded")
)

// delivery interface for testing purposes
type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
	GetHeaders() amqp.Table
	GetBody() []byte
}

// amqpDeliveryAdapter adapts amqp.Delivery to our delivery interface
type amqpDeliveryAdapter struct {
	amqp.Delivery
}

func (a *amqpDeliveryAdapter) GetHeaders() amqp.Table {
	return a.Headers
}

func (a *amqpDeliveryAdapter) GetBody() []byte {
	return a.Body
}

// NewAmqpDeliveryAdapter creates a new adapter for amqp.Delivery
func NewAmqpDeliveryAdapter(d amqp.Delivery) delivery {
	return &amqpDeliveryAdapter{Delivery: d}
}

// Message represents a consumed event in canonical envelope form.
type Message struct {
	Envelope Envelope

	amqpDelivery delivery
}

// Unmarshal parses the envelope data of the receiver message and stores
// the result in the value pointed to by target.
func (m *Message) Unmarshal(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("target must be a non-nil pointer")
	}

	data, err := json.Marshal(m.Envelope.Data)
	if err != nil {
		return fmt.Errorf("could not marshal message data: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("could not unmarshal into target: %w", err)
	}

	return nil
}

// RetryCount returns the current number of retries for the receiver message.
func (m *Message) RetryCount() (int, error) {
	headers := m.amqpDelivery.GetHeaders()
	val, ok := headers[retryCountHeader]
	if !ok {
		return 0, nil // No retry count header means first attempt
	}

	strVal, ok := val.(string)
	if !ok {
		return 0, errors.New("custom header 'x-retry-count' does not contain a string")
	}

	intVal, err := strconv.Atoi(strVal)
	if err != nil {
		return 0, errors.New("could not convert value to integer")
	}

	return intVal, nil
}

// MsgController controls the positive or negative acknowledgement of consumed messages.
type MsgController struct {
	ch           channel
	queueName    string
	maxRetries   int
	retryBackoff func(retries int) time.Duration
}

// Ack is used to positively acknowledge a consumed message.
func (ctrl *MsgController) Ack(m Message) error {
	return m.amqpDelivery.Ack(false)
}

// Nack is used to negatively acknowledge a consumed message without requeueing.
func (ctrl *MsgController) Nack(m Message) error {
	return m.amqpDelivery.Nack(false, false)
}

// Requeue republishes the message with an incremented retry count and
// acknowledges the original delivery. With a backoff schedule the retry
// is parked in the delay queue for the scheduled duration and
// dead-letters back to the queue when it expires; without one it goes
// straight back. When the retry budget is spent it returns
// ErrRetryCountExceeded and the caller must dead-letter.
func (ctrl *MsgController) Requeue(ctx context.Context, m Message) error {
	retryCount, err := m.RetryCount()
	if err != nil {
		return fmt.Errorf("failed to get retry count: %w", err)
	}

	if retryCount >= ctrl.maxRetries {
		return ErrRetryCountExceeded
	}

	body, err := m.Envelope.marshal()
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			retryCountHeader: strconv.Itoa(retryCount + 1),
		},
	}

	routingKey := ctrl.queueName
	if ctrl.retryBackoff != nil {
		if delay := ctrl.retryBackoff(retryCount); delay > 0 {
			routingKey = RetryQueueName(ctrl.queueName)
			publishing.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
		}
	}

	err = ctrl.ch.publish(
		ctx,
		"", // default exchange
		routingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to re-publish message: %w", err)
	}

	if err := m.amqpDelivery.Ack(false); err != nil {
		return fmt.Errorf("failed to ack the message: %w", err)
	}

	return nil
}

// DeadLetter routes the message to the queue's DLQ with headers recording
// the failure reason, then acknowledges the original delivery.
func (ctrl *MsgController) DeadLetter(ctx context.Context, m Message, reason string, cause error) error {
	body, err := m.Envelope.marshal()
	if err != nil {
		return err
	}

	headers := amqp.Table{
		dlqReasonHeader: reason,
		origQueueHeader: ctrl.queueName,
	}
	if cause != nil {
		headers[errorHeader] = cause.Error()
	}

	err = ctrl.ch.publish(
		ctx,
		"",
		DLQName(ctrl.queueName),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	if err := m.amqpDelivery.Ack(false); err != nil {
		return fmt.Errorf("failed to ack the message: %w", err)
	}

	return nil
}

// DLQName returns the dead-letter queue name paired with a queue.
func DLQName(queueName string) string {
	return queueName + ".dlq"
}

// RetryQueueName returns the delay queue name paired with a queue. Retries
// scheduled with a backoff wait there until their per-message TTL expires
// and the broker dead-letters them back to the origin queue.
func RetryQueueName(queueName string) string {
	return queueName + ".retry"
}
