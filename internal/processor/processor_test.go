package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"clinic-voice-go/internal/intent"
	"clinic-voice-go/internal/reply"
	"clinic-voice-go/internal/textnorm"
	"clinic-voice-go/internal/types"
)

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
	got   types.RecordingReference
}

func (f *fakeFetcher) Fetch(_ context.Context, ref types.RecordingReference) ([]byte, error) {
	f.calls++
	f.got = ref
	return f.data, f.err
}

type fakeNormalizer struct {
	err    error
	calls  int
	format string
}

func (f *fakeNormalizer) Normalize(_ context.Context, raw []byte, format string) (types.Waveform, error) {
	f.calls++
	f.format = format
	if f.err != nil {
		return types.Waveform{}, f.err
	}
	return types.Waveform{Data: append([]byte("pcm:"), raw...), SampleRate: 16000, Channels: 1}, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, wf types.Waveform) (string, error) {
	f.calls++
	return f.text, f.err
}

func newPipeline(text string) (*Processor, *fakeFetcher, *fakeNormalizer, *fakeTranscriber) {
	f := &fakeFetcher{data: []byte("audio")}
	n := &fakeNormalizer{}
	tr := &fakeTranscriber{text: text}
	return New(f, n, tr), f, n, tr
}

func TestProcessBookingScenario(t *testing.T) {
	p, f, n, _ := newPipeline("予約をお願いします")
	ref := types.NewRecordingReference("https://api.twilio.test/Recordings/RE1.mp3")

	res, err := p.Process(context.Background(), ref)

	require.NoError(t, err)
	require.Equal(t, ref, f.got)
	require.Equal(t, "mp3", n.format)
	require.Equal(t, "予約をお願いします", res.RawTranscript)
	require.Equal(t, "予約をお願いします。", res.Transcript)
	require.Equal(t, types.IntentBooking, res.Intent)
	require.Equal(t, reply.Booking, res.Reply)
	require.Empty(t, res.Error)
}

func TestProcessNoSpeechScenario(t *testing.T) {
	p, _, _, _ := newPipeline("")

	res, err := p.Process(context.Background(), types.NewRecordingReference("https://x.test/RE2"))

	require.NoError(t, err)
	require.Empty(t, res.Transcript)
	require.Equal(t, types.IntentOther, res.Intent)
	require.Equal(t, reply.Default, res.Reply)
}

func TestProcessCleansBeforeClassifying(t *testing.T) {
	p, _, _, _ := newPipeline("ppo　の　じこふたん")

	res, err := p.Process(context.Background(), types.NewRecordingReference("https://x.test/RE3"))

	require.NoError(t, err)
	require.Equal(t, "PPO の 自己負担。", res.Transcript)
	require.Equal(t, types.IntentInsurance, res.Intent)
	require.Equal(t, reply.Insurance, res.Reply)
}

func TestProcessStopsAtFirstFailure(t *testing.T) {
	ref := types.NewRecordingReference("https://x.test/RE4")

	t.Run("download", func(t *testing.T) {
		p, f, n, tr := newPipeline("予約")
		f.err = types.NewError(types.DownloadError, "recording.fetch", errors.New("404"))

		res, err := p.Process(context.Background(), ref)

		require.True(t, types.IsKind(err, types.DownloadError))
		require.Equal(t, string(types.DownloadError), res.Error)
		require.Zero(t, n.calls)
		require.Zero(t, tr.calls)
	})

	t.Run("conversion", func(t *testing.T) {
		p, _, n, tr := newPipeline("予約")
		n.err = types.NewError(types.ConversionError, "audio.normalize", errors.New("exit status 1"))

		_, err := p.Process(context.Background(), ref)

		require.True(t, types.IsKind(err, types.ConversionError))
		require.Zero(t, tr.calls)
	})

	t.Run("transcription", func(t *testing.T) {
		p, _, _, tr := newPipeline("")
		tr.err = types.NewError(types.TranscriptionError, "transcription.transcribe", errors.New("500"))

		res, err := p.Process(context.Background(), ref)

		require.True(t, types.IsKind(err, types.TranscriptionError))
		require.Empty(t, res.Reply)
	})

	t.Run("config", func(t *testing.T) {
		p, _, _, tr := newPipeline("")
		tr.err = types.NewError(types.ConfigError, "transcription.transcribe", errors.New("no key"))

		_, err := p.Process(context.Background(), ref)
		require.True(t, types.IsKind(err, types.ConfigError))
	})

	t.Run("unclassified", func(t *testing.T) {
		p, f, _, _ := newPipeline("")
		f.err = errors.New("boom")

		res, err := p.Process(context.Background(), ref)
		require.Error(t, err)
		require.Equal(t, "unclassified", res.Error)
	})
}

func TestProcessUsesInjectedTables(t *testing.T) {
	cleaner, err := textnorm.New(append(textnorm.DefaultReplacements(), textnorm.Replacement{From: "みつもり", To: "見積"}))
	require.NoError(t, err)
	rules := intent.MergeRules(intent.DefaultRules(), map[types.Intent][]string{types.IntentCashPay: {"見積"}})

	p := New(&fakeFetcher{data: []byte("a")}, &fakeNormalizer{}, &fakeTranscriber{text: "みつもりをください"},
		WithCleaner(cleaner), WithClassifier(intent.NewClassifier(rules)))

	res, err := p.Process(context.Background(), types.NewRecordingReference("https://x.test/RE5"))
	require.NoError(t, err)
	require.Equal(t, "見積をください。", res.Transcript)
	require.Equal(t, types.IntentCashPay, res.Intent)
}
