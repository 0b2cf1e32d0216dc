package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	headers amqp.Table
	body    []byte

	acked    bool
	nacked   bool
	rejected bool
}

func (d *fakeDelivery) Ack(multiple bool) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(multiple, requeue bool) error {
	d.nacked = true
	return nil
}

func (d *fakeDelivery) Reject(requeue bool) error {
	d.rejected = true
	return nil
}

func (d *fakeDelivery) GetHeaders() amqp.Table {
	return d.headers
}

func (d *fakeDelivery) GetBody() []byte {
	return d.body
}

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published  []publishedMessage
	publishErr error
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) exchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return nil
}

func (c *fakeChannel) queueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) queueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return nil
}

func (c *fakeChannel) qos(prefetchCount int) error { return nil }

func (c *fakeChannel) publish(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}

	c.published = append(c.published, publishedMessage{exchange: exchange, key: key, msg: msg})

	return nil
}

func (c *fakeChannel) consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) <-chan amqp.Delivery {
	return nil
}

func (c *fakeChannel) cancel(consumer string, noWait bool) error { return nil }

func testMessage(headers amqp.Table) (Message, *fakeDelivery) {
	d := &fakeDelivery{headers: headers}

	return Message{
		Envelope: Envelope{
			Type: "ORDER_CREATED",
			Data: map[string]any{"orderId": "ord-1"},
			Metadata: Metadata{
				EventID:       "evt-1",
				CorrelationID: "corr-1",
			},
		},
		amqpDelivery: d,
	}, d
}

func TestMessage_Unmarshal(t *testing.T) {
	t.Parallel()

	msg, _ := testMessage(nil)

	var target struct {
		OrderID string `json:"orderId"`
	}

	require.NoError(t, msg.Unmarshal(&target))
	assert.Equal(t, "ord-1", target.OrderID)

	assert.Error(t, msg.Unmarshal(nil))

	var notPointer struct{}
	assert.Error(t, msg.Unmarshal(notPointer))
}

func TestMessage_RetryCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers amqp.Table
		want    int
		wantErr bool
	}{
		{
			name:    "no header means first attempt",
			headers: nil,
			want:    0,
		},
		{
			name:    "header with count",
			headers: amqp.Table{"x-retry-count": "2"},
			want:    2,
		},
		{
			name:    "non string header",
			headers: amqp.Table{"x-retry-count": 2},
			wantErr: true,
		},
		{
			name:    "non numeric header",
			headers: amqp.Table{"x-retry-count": "two"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, _ := testMessage(tt.headers)

			got, err := msg.RetryCount()
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMsgController_RequeueIncrementsRetryCount(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	ctrl := &MsgController{ch: ch, queueName: "q.order.events", maxRetries: 3}

	msg, d := testMessage(amqp.Table{"x-retry-count": "1"})

	require.NoError(t, ctrl.Requeue(context.Background(), msg))
	require.Len(t, ch.published, 1)

	republished := ch.published[0]
	assert.Equal(t, "", republished.exchange)
	assert.Equal(t, "q.order.events", republished.key)
	assert.Equal(t, "2", republished.msg.Headers["x-retry-count"])
	assert.Empty(t, republished.msg.Expiration)
	assert.True(t, d.acked)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(republished.msg.Body, &envelope))
	assert.Equal(t, "ORDER_CREATED", envelope.Type)
}

func TestMsgController_RequeueWithBackoffParksInRetryQueue(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	ctrl := &MsgController{
		ch:         ch,
		queueName:  "q.payment.events",
		maxRetries: 3,
		retryBackoff: func(retries int) time.Duration {
			return time.Duration(retries+1) * 2 * time.Second
		},
	}

	msg, d := testMessage(amqp.Table{"x-retry-count": "1"})

	require.NoError(t, ctrl.Requeue(context.Background(), msg))
	require.Len(t, ch.published, 1)

	parked := ch.published[0]
	assert.Equal(t, "", parked.exchange)
	assert.Equal(t, "q.payment.events.retry", parked.key)
	assert.Equal(t, "4000", parked.msg.Expiration)
	assert.Equal(t, "2", parked.msg.Headers["x-retry-count"])
	assert.True(t, d.acked)
}

func TestMsgController_RequeueZeroDelayRepublishesDirectly(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	ctrl := &MsgController{
		ch:           ch,
		queueName:    "q.payment.events",
		maxRetries:   3,
		retryBackoff: func(int) time.Duration { return 0 },
	}

	msg, _ := testMessage(nil)

	require.NoError(t, ctrl.Requeue(context.Background(), msg))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "q.payment.events", ch.published[0].key)
	assert.Empty(t, ch.published[0].msg.Expiration)
}

func TestMsgController_RequeueExhaustsBudget(t *testing.T) {
	t.Parallel()

	ctrl := &MsgController{ch: &fakeChannel{}, queueName: "q.order.events", maxRetries: 3}

	msg, d := testMessage(amqp.Table{"x-retry-count": "3"})

	assert.ErrorIs(t, ctrl.Requeue(context.Background(), msg), ErrRetryCountExceeded)
	assert.False(t, d.acked)
}

func TestMsgController_DeadLetter(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	ctrl := &MsgController{ch: ch, queueName: "q.payment.events", maxRetries: 3}

	msg, d := testMessage(nil)

	require.NoError(t, ctrl.DeadLetter(context.Background(), msg, "validation_failed", errors.New("missing orderId")))
	require.Len(t, ch.published, 1)

	deadLettered := ch.published[0]
	assert.Equal(t, "q.payment.events.dlq", deadLettered.key)
	assert.Equal(t, "validation_failed", deadLettered.msg.Headers["x-dlq-reason"])
	assert.Equal(t, "q.payment.events", deadLettered.msg.Headers["x-orig-queue"])
	assert.Equal(t, "missing orderId", deadLettered.msg.Headers["x-error"])
	assert.True(t, d.acked)
}

func TestMsgController_DeadLetterPublishFailureLeavesDeliveryUnacked(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	ctrl := &MsgController{ch: ch, queueName: "q.payment.events", maxRetries: 3}

	msg, d := testMessage(nil)

	assert.Error(t, ctrl.DeadLetter(context.Background(), msg, "validation_failed", nil))
	assert.False(t, d.acked)
}

func TestDLQName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "q.inventory.events.dlq", DLQName("q.inventory.events"))
}

func TestRetryQueueName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "q.inventory.events.retry", RetryQueueName("q.inventory.events"))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{Scheme: "amqp", Host: "rabbitmq", Port: 5672}
	assert.NoError(t, valid.Validate())

	badScheme := Config{Scheme: "http", Host: "rabbitmq"}
	assert.Error(t, badScheme.Validate())

	noHost := Config{Scheme: "amqps", Host: "  "}
	assert.Error(t, noHost.Validate())
}
