package queue

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAmqpChannel struct {
	confirms chan amqp.Confirmation

	published []amqp.Publishing
}

func (c *fakeAmqpChannel) Close() error { return nil }

func (c *fakeAmqpChannel) Cancel(consumer string, noWait bool) error { return nil }

func (c *fakeAmqpChannel) Confirm(noWait bool) error { return nil }

func (c *fakeAmqpChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return nil, nil
}

func (c *fakeAmqpChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return nil
}

func (c *fakeAmqpChannel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error { return ch }

func (c *fakeAmqpChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	c.confirms = confirm

	return confirm
}

func (c *fakeAmqpChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.published = append(c.published, msg)

	return nil
}

func (c *fakeAmqpChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return nil
}

func (c *fakeAmqpChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return amqp.Queue{Name: name}, nil
}

func (c *fakeAmqpChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func TestChannelWrapper_PublishAckedConfirm(t *testing.T) {
	t.Parallel()

	amqpCh := &fakeAmqpChannel{}
	wrapper, err := newChannelWrapper(amqpCh, nil, time.Millisecond)
	require.NoError(t, err)

	go func() {
		amqpCh.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	}()

	require.NoError(t, wrapper.publish(context.Background(), "commerce.events", "order.created", false, false, amqp.Publishing{}))
	assert.Len(t, amqpCh.published, 1)
}

func TestChannelWrapper_PublishNackedConfirm(t *testing.T) {
	t.Parallel()

	amqpCh := &fakeAmqpChannel{}
	wrapper, err := newChannelWrapper(amqpCh, nil, time.Millisecond)
	require.NoError(t, err)

	go func() {
		amqpCh.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: false}
	}()

	assert.ErrorContains(t,
		wrapper.publish(context.Background(), "commerce.events", "order.created", false, false, amqp.Publishing{}),
		"nacked")
}

func TestChannelWrapper_PublishHonorsContextDeadline(t *testing.T) {
	t.Parallel()

	amqpCh := &fakeAmqpChannel{}
	wrapper, err := newChannelWrapper(amqpCh, nil, time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// No confirm ever arrives; the deadline must bound the wait instead
	// of the fixed confirm window.
	start := time.Now()
	err = wrapper.publish(ctx, "commerce.events", "order.created", false, false, amqp.Publishing{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), confirmWait)
}
