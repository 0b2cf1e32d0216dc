package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publish reliability window for confirm-mode publishes.
const confirmWait = 5 * time.Second

// channel is used mainly to be able to generate mocks for the Channel behavior.
type channel interface {
	io.Closer

	exchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	queueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	queueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	qos(prefetchCount int) error

	publish(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) <-chan amqp.Delivery

	cancel(consumer string, noWait bool) error
}

// amqpChannel is used mainly to be able to generate mocks for the AMQP behavior.
type amqpChannel interface {
	io.Closer

	Cancel(consumer string, noWait bool) error
	Confirm(noWait bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
}

// ChannelWrapper is a wrapper around amqp091-go.Channel, providing
// confirm-mode publishing and a reconnecting consume loop.
type ChannelWrapper struct {
	amqpChan amqpChannel

	logger Logger

	mutex    *sync.Mutex
	canceled atomic.Bool
	closed   atomic.Bool

	confirms <-chan amqp.Confirmation

	reconnectDelay time.Duration
}

func newChannelWrapper(amqpChan amqpChannel, logger Logger, reconnectDelay time.Duration) (*ChannelWrapper, error) {
	// Publisher confirms must be enabled before NotifyPublish registration.
	if err := amqpChan.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to put channel into confirm mode: %w", err)
	}

	return &ChannelWrapper{
		amqpChan:       amqpChan,
		logger:         logger,
		mutex:          &sync.Mutex{},
		confirms:       amqpChan.NotifyPublish(make(chan amqp.Confirmation, 32)),
		reconnectDelay: reconnectDelay,
	}, nil
}

// Close is a wrapper around amqp091-go.Channel.Close method, which closes a channel.
func (ch *ChannelWrapper) Close() error {
	defer ch.mutex.Unlock()
	ch.mutex.Lock()

	if ch.isClosed() {
		return amqp.ErrClosed
	}

	ch.closed.Store(true)

	return ch.amqpChan.Close()
}

func (ch *ChannelWrapper) cancel(consumer string, noWait bool) error {
	defer ch.mutex.Unlock()
	ch.mutex.Lock()

	err := ch.amqpChan.Cancel(consumer, noWait)
	if err != nil {
		return err
	}

	ch.canceled.Store(true)

	return nil
}

//nolint:revive // This method uses same number of arguments as amqp091 Channel.Consume.
func (ch *ChannelWrapper) consume(
	queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table,
) <-chan amqp.Delivery {
	deliveries := make(chan amqp.Delivery)

	go func() {
		for {
			ch.mutex.Lock()
			d, err := ch.amqpChan.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
			ch.mutex.Unlock()
			if err != nil {
				if ch.logger != nil {
					ch.logger.Error().Err(err).Str("queue", queue).Msg("failed to consume messages")
				}
				time.Sleep(ch.reconnectDelay)

				continue
			}

			for msg := range d {
				deliveries <- msg
			}

			// sleep before IsClose call. closed flag may not set before sleep.
			time.Sleep(ch.reconnectDelay)

			if ch.isClosed() || ch.isCanceled() {
				close(deliveries)

				return
			}
		}
	}()

	return deliveries
}

//nolint:revive // This method has the same arguments as Channel.ExchangeDeclare from amqp091-go lib.
func (ch *ChannelWrapper) exchangeDeclare(
	name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table,
) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

// publish sends the message and waits for the broker's publisher confirm.
// A nack, a missing confirm within the window, or an expired context is
// reported as an error so the outbox loop can retry.
func (ch *ChannelWrapper) publish(
	ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing,
) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if err := ch.amqpChan.Publish(exchange, key, mandatory, immediate, msg); err != nil {
		return err
	}

	select {
	case confirmation, ok := <-ch.confirms:
		if !ok {
			return errors.New("confirm channel closed before ack")
		}
		if !confirmation.Ack {
			return fmt.Errorf("broker nacked publish (delivery tag %d)", confirmation.DeliveryTag)
		}

		return nil

	case <-ctx.Done():
		return fmt.Errorf("waiting for publisher confirm: %w", ctx.Err())

	case <-time.After(confirmWait):
		return errors.New("timed out waiting for publisher confirm")
	}
}

func (ch *ChannelWrapper) queueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	defer ch.mutex.Unlock()
	ch.mutex.Lock()

	return ch.amqpChan.QueueBind(name, key, exchange, noWait, args)
}

func (ch *ChannelWrapper) queueDeclare(
	name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table,
) (amqp.Queue, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (ch *ChannelWrapper) qos(prefetchCount int) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.Qos(prefetchCount, 0, false)
}

func (ch *ChannelWrapper) isClosed() bool {
	return ch.closed.Load()
}

func (ch *ChannelWrapper) isCanceled() bool {
	return ch.canceled.Load()
}
