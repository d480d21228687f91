package types

import (
	"path"
	"strings"
	"time"
)

// CallState is a step of the inbound call flow.
type CallState string

const (
	StateGreeting           CallState = "greeting"
	StateAwaitingMenuChoice CallState = "awaiting_menu_choice"
	StateRecording          CallState = "recording"
	StatePipelineRunning    CallState = "pipeline_running"
	StateResponding         CallState = "responding"
	StateFallback           CallState = "fallback"
	StateHandoff            CallState = "handoff"
)

// Terminal reports whether no further transition is allowed within the callback.
func (s CallState) Terminal() bool {
	switch s {
	case StateResponding, StateFallback, StateHandoff:
		return true
	}
	return false
}

// CallSession lives for exactly one callback; nothing is kept between callbacks.
type CallSession struct {
	CallID       string    `json:"call_id"`
	State        CallState `json:"state"`
	Digit        string    `json:"digit,omitempty"`
	RecordingURL string    `json:"recording_url,omitempty"`
	Transcript   string    `json:"transcript,omitempty"`
	Intent       Intent    `json:"intent,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

type RecordingReference struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// NewRecordingReference derives the container format from the URL extension,
// falling back to wav which is what the carrier serves for extensionless URLs.
func NewRecordingReference(rawURL string) RecordingReference {
	u := strings.TrimSpace(rawURL)
	p := u
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	format := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if format == "" || len(format) > 5 {
		format = "wav"
	}
	return RecordingReference{URL: u, Format: format}
}

// Waveform is mono 16 kHz linear PCM in a WAV container.
type Waveform struct {
	Data       []byte
	SampleRate int
	Channels   int
}

func (w Waveform) Empty() bool {
	return len(w.Data) == 0
}

type Transcript struct {
	Raw     string `json:"raw"`
	Cleaned string `json:"cleaned"`
}

type Intent string

const (
	IntentBooking   Intent = "booking"
	IntentInsurance Intent = "insurance"
	IntentCashPay   Intent = "cashpay"
	IntentOther     Intent = "other"
)

// ParseIntent accepts the lowercase names used in keyword workbooks.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentBooking:
		return IntentBooking, true
	case IntentInsurance:
		return IntentInsurance, true
	case IntentCashPay, "cash_pay", "selfpay", "self_pay":
		return IntentCashPay, true
	case IntentOther:
		return IntentOther, true
	}
	return "", false
}
