package reply

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clinic-voice-go/internal/types"
)

func TestCompose(t *testing.T) {
	require.Equal(t, Booking, Compose(types.IntentBooking))
	require.Equal(t, Insurance, Compose(types.IntentInsurance))
	require.Equal(t, CashPay, Compose(types.IntentCashPay))
	require.Equal(t, Default, Compose(types.IntentOther))
	require.Equal(t, Default, Compose(types.Intent("")))
}

func TestRepliesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, in := range []types.Intent{types.IntentBooking, types.IntentInsurance, types.IntentCashPay, types.IntentOther} {
		r := Compose(in)
		require.NotEmpty(t, r)
		require.False(t, seen[r], "duplicate reply for %s", in)
		seen[r] = true
	}
}
