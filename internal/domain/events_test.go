package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompensationFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		original EventType
		want     EventType
		ok       bool
	}{
		{EventReserve, EventRelease, true},
		{EventOrderCreated, EventOrderTimeout, true},
		{EventPaymentInitiated, EventPaymentCancel, true},
		{EventOrderConfirmed, "", false},
		{EventRelease, "", false},
		{EventSeckillOrderWon, "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.original), func(t *testing.T) {
			t.Parallel()

			comp, ok := CompensationFor(tt.original)

			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, comp)
		})
	}
}

func TestTimeoutCompensationIDIsDeterministic(t *testing.T) {
	t.Parallel()

	first := TimeoutCompensationID("evt-1")
	second := TimeoutCompensationID("evt-1")

	assert.Equal(t, "evt-1-timeout-comp", first)
	assert.Equal(t, first, second)
}
