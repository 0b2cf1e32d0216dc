package saga

import (
	"testing"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlersCoverEveryQueue(t *testing.T) {
	t.Parallel()

	handlers := Handlers(newTestDeps().deps)

	for _, queueName := range []string{
		domain.QueueOrderEvents,
		domain.QueueInventoryEvents,
		domain.QueuePaymentEvents,
		domain.QueueProducts,
		domain.QueueOrderSeckill,
	} {
		assert.Contains(t, handlers, queueName)
	}

	assert.Len(t, handlers, 5)
}

func TestBindingsRouteSagaAnswersAndCommands(t *testing.T) {
	t.Parallel()

	bindings := Bindings()

	byQueue := make(map[string][]string, len(bindings))
	for _, binding := range bindings {
		byQueue[binding.Queue] = binding.RoutingKeys
	}

	require.Len(t, byQueue, 5)

	// Every answer and failure converges on the order queue.
	assert.ElementsMatch(t, []string{
		"INVENTORY_RESERVED",
		"INVENTORY_RESERVE_FAILED",
		"STOCK_RESERVED",
		"PAYMENT_SUCCEEDED",
		"PAYMENT_FAILED",
		"ORDER_TIMEOUT",
	}, byQueue[domain.QueueOrderEvents])

	assert.Contains(t, byQueue[domain.QueueInventoryEvents], "ORDER_CREATED")
	assert.Contains(t, byQueue[domain.QueueInventoryEvents], "RELEASE")
	assert.Contains(t, byQueue[domain.QueuePaymentEvents], "PAYMENT_INITIATED")
	assert.Contains(t, byQueue[domain.QueuePaymentEvents], "PAYMENT_CANCEL")
	assert.Contains(t, byQueue[domain.QueueProducts], "PRODUCT_CREATED")
	assert.Equal(t, []string{"seckill.order.won"}, byQueue[domain.QueueOrderSeckill])
}

func TestCompensationRoutingKeysAreBound(t *testing.T) {
	t.Parallel()

	bound := make(map[string]bool)
	for _, binding := range Bindings() {
		for _, key := range binding.RoutingKeys {
			bound[key] = true
		}
	}

	// A compensation the timeout worker publishes must land somewhere.
	for _, original := range []domain.EventType{
		domain.EventReserve,
		domain.EventOrderCreated,
		domain.EventPaymentInitiated,
	} {
		compensation, ok := domain.CompensationFor(original)
		require.True(t, ok)
		assert.True(t, bound[string(compensation)], "compensation %s has no queue binding", compensation)
	}
}
