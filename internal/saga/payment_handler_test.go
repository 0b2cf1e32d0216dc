package saga

import (
	"context"
	"testing"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentHandlerChargesOnPaymentInitiated(t *testing.T) {
	t.Parallel()

	td := newTestDeps()
	handler := NewPaymentHandler(td.deps)

	msg := eventMessage("PAYMENT_INITIATED", map[string]any{"orderId": "ord-1", "amount": 49.99})

	require.NoError(t, handler.ProcessMessage(context.Background(), msg, nil))

	require.Len(t, td.payments.processed, 1)
	call := td.payments.processed[0]
	assert.Equal(t, "corr-1", call.correlationID)
	assert.Equal(t, "ord-1", call.orderID)
	assert.Equal(t, 49.99, call.amount)
}

func TestPaymentHandlerNeverDoubleCharges(t *testing.T) {
	t.Parallel()

	td := newTestDeps()
	handler := NewPaymentHandler(td.deps)

	msg := eventMessage("PAYMENT_INITIATED", map[string]any{"orderId": "ord-1", "amount": 49.99})

	require.NoError(t, handler.ProcessMessage(context.Background(), msg, nil))
	require.NoError(t, handler.ProcessMessage(context.Background(), msg, nil))

	assert.Len(t, td.payments.processed, 1)
}

func TestPaymentHandlerRetriesChargeAfterTransientFailure(t *testing.T) {
	t.Parallel()

	td := newTestDeps()
	td.payments.errs = []error{domain.NewTransientError("payment gateway unavailable", nil)}
	handler := NewPaymentHandler(td.deps)

	msg := eventMessage("PAYMENT_INITIATED", map[string]any{"orderId": "ord-1", "amount": 49.99})

	// The first attempt fails in flight; the claim must be released so
	// the redelivery is not mistaken for a processed duplicate.
	err := handler.ProcessMessage(context.Background(), msg, nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, []string{"payment-saga:payment:charge:ord-1"}, td.idem.released)

	require.NoError(t, handler.ProcessMessage(context.Background(), msg, nil))
	assert.Len(t, td.payments.processed, 2)
}

func TestPaymentHandlerCancelsCharge(t *testing.T) {
	t.Parallel()

	td := newTestDeps()
	handler := NewPaymentHandler(td.deps)

	msg := eventMessage("PAYMENT_CANCEL", map[string]any{"orderId": "ord-1"})

	require.NoError(t, handler.ProcessMessage(context.Background(), msg, nil))
	assert.Equal(t, []string{"ord-1"}, td.payments.cancelled)
}

func TestPaymentHandlerRejectsMissingOrderID(t *testing.T) {
	t.Parallel()

	td := newTestDeps()
	handler := NewPaymentHandler(td.deps)

	err := handler.ProcessMessage(context.Background(),
		eventMessage("PAYMENT_INITIATED", map[string]any{"amount": 10.0}), nil)

	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
	assert.Empty(t, td.payments.processed)
}
