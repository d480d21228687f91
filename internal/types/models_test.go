package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRecordingReferenceFormat(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://api.twilio.com/2010-04-01/Accounts/AC1/Recordings/RE1", "wav"},
		{"https://api.twilio.com/2010-04-01/Accounts/AC1/Recordings/RE1.mp3", "mp3"},
		{"https://example.com/rec.WAV?token=abc", "wav"},
		{"https://example.com/v1.2/rec", "wav"},
		{"", "wav"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NewRecordingReference(tc.url).Format, "url=%q", tc.url)
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", NewError(DownloadError, "recording.fetch", base))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, DownloadError, kind)
	require.True(t, IsKind(err, DownloadError))
	require.False(t, IsKind(err, ConversionError))
	require.ErrorIs(t, err, base)

	_, ok = KindOf(base)
	require.False(t, ok)
}

func TestTerminalStates(t *testing.T) {
	require.True(t, StateResponding.Terminal())
	require.True(t, StateFallback.Terminal())
	require.True(t, StateHandoff.Terminal())
	require.False(t, StateRecording.Terminal())
	require.False(t, StateGreeting.Terminal())
}

func TestParseIntent(t *testing.T) {
	got, ok := ParseIntent(" Booking ")
	require.True(t, ok)
	require.Equal(t, IntentBooking, got)

	got, ok = ParseIntent("self_pay")
	require.True(t, ok)
	require.Equal(t, IntentCashPay, got)

	_, ok = ParseIntent("refund")
	require.False(t, ok)
}
