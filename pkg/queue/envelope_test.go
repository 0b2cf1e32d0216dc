package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CanonicalEnvelope(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"type": "ORDER_CREATED",
		"data": {"orderId": "ord-1", "quantity": 2},
		"metadata": {
			"eventId": "evt-1",
			"correlationId": "corr-1",
			"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			"timestamp": "2025-06-01T10:00:00Z"
		}
	}`)

	envelope, err := Normalize(body)
	require.NoError(t, err)

	assert.Equal(t, "ORDER_CREATED", envelope.Type)
	assert.Equal(t, "ord-1", envelope.Data["orderId"])
	assert.Equal(t, "evt-1", envelope.Metadata.EventID)
	assert.Equal(t, "corr-1", envelope.Metadata.CorrelationID)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", envelope.Metadata.Traceparent)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), envelope.Metadata.Timestamp)
}

func TestNormalize_LegacyFlatForm(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"eventType": "PAYMENT_INITIATED",
		"eventId": "evt-7",
		"correlationId": "corr-7",
		"orderId": "ord-7",
		"amount": 19.99
	}`)

	envelope, err := Normalize(body)
	require.NoError(t, err)

	assert.Equal(t, "PAYMENT_INITIATED", envelope.Type)
	assert.Equal(t, "evt-7", envelope.Metadata.EventID)
	assert.Equal(t, "corr-7", envelope.Metadata.CorrelationID)

	// Identifier fields are lifted into metadata, the rest stays as data.
	assert.Equal(t, "ord-7", envelope.Data["orderId"])
	assert.Equal(t, 19.99, envelope.Data["amount"])
	assert.NotContains(t, envelope.Data, "eventType")
	assert.NotContains(t, envelope.Data, "eventId")
	assert.NotContains(t, envelope.Data, "correlationId")
	assert.False(t, envelope.Metadata.Timestamp.IsZero())
}

func TestNormalize_LegacyTypeField(t *testing.T) {
	t.Parallel()

	envelope, err := Normalize([]byte(`{"type": "RESERVE", "orderId": "ord-2"}`))
	require.NoError(t, err)

	assert.Equal(t, "RESERVE", envelope.Type)
	assert.Equal(t, "ord-2", envelope.Data["orderId"])
}

func TestNormalize_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing event type",
			body: `{"orderId": "ord-1"}`,
		},
		{
			name: "non string event type",
			body: `{"eventType": 42, "orderId": "ord-1"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Normalize([]byte(tt.body))
			assert.ErrorIs(t, err, ErrUnknownEnvelope)
		})
	}
}

func TestNormalize_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := Normalize([]byte(`{not json`))
	assert.Error(t, err)
}
