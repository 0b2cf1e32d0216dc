package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to created", OrderStatusPending, OrderStatusCreated, true},
		{"created to stock reserved", OrderStatusCreated, OrderStatusStockReserved, true},
		{"stock reserved to payment succeeded", OrderStatusStockReserved, OrderStatusPaymentSucceeded, true},
		{"payment succeeded to confirmed", OrderStatusPaymentSucceeded, OrderStatusConfirmed, true},
		{"created cancellable", OrderStatusCreated, OrderStatusCancelled, true},
		{"stock reserved cancellable", OrderStatusStockReserved, OrderStatusCancelled, true},
		{"payment succeeded cancellable", OrderStatusPaymentSucceeded, OrderStatusCancelled, true},
		{"no skipping payment", OrderStatusCreated, OrderStatusPaymentSucceeded, false},
		{"no skipping reservation", OrderStatusCreated, OrderStatusConfirmed, false},
		{"no backward move", OrderStatusStockReserved, OrderStatusCreated, false},
		{"confirmed is terminal", OrderStatusConfirmed, OrderStatusCancelled, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusCreated, false},
		{"cancelled stays cancelled", OrderStatusCancelled, OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, OrderStatusConfirmed.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusStockReserved.IsTerminal())
}
