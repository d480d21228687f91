package processor

import (
	"context"
	"time"

	"clinic-voice-go/internal/intent"
	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/reply"
	"clinic-voice-go/internal/textnorm"
	"clinic-voice-go/internal/types"
)

type Fetcher interface {
	Fetch(ctx context.Context, ref types.RecordingReference) ([]byte, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, raw []byte, format string) (types.Waveform, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wf types.Waveform) (string, error)
}

// Result is what one recording turns into.
type Result struct {
	RecordingURL  string       `json:"recording_url"`
	RawTranscript string       `json:"raw_transcript"`
	Transcript    string       `json:"transcript"`
	Intent        types.Intent `json:"intent"`
	Reply         string       `json:"reply"`
	DurationMs    int64        `json:"duration_ms"`
	Error         string       `json:"error,omitempty"`
}

type Processor struct {
	fetcher     Fetcher
	normalizer  Normalizer
	transcriber Transcriber
	cleaner     *textnorm.Normalizer
	classifier  *intent.Classifier
	log         *logger.Logger
}

type Option func(*Processor)

func WithCleaner(n *textnorm.Normalizer) Option {
	return func(p *Processor) {
		p.cleaner = n
	}
}

func WithClassifier(c *intent.Classifier) Option {
	return func(p *Processor) {
		p.classifier = c
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Processor) {
		p.log = l
	}
}

func New(f Fetcher, n Normalizer, t Transcriber, opts ...Option) *Processor {
	p := &Processor{
		fetcher:     f,
		normalizer:  n,
		transcriber: t,
		cleaner:     textnorm.Default(),
		classifier:  intent.Default(),
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one recording through fetch, normalize, transcribe, clean,
// classify and compose. Every returned error is a *types.Error from the
// step that failed; nothing produced by an earlier step is reused.
func (p *Processor) Process(ctx context.Context, ref types.RecordingReference) (Result, error) {
	start := time.Now()
	res := Result{RecordingURL: ref.URL}
	log := p.log.WithField("recording_url", ref.URL)

	fail := func(step string, err error) (Result, error) {
		kind, ok := types.KindOf(err)
		if !ok {
			kind = "unclassified"
		}
		res.Error = string(kind)
		res.DurationMs = time.Since(start).Milliseconds()
		log.WithField("step", step).WithField("kind", string(kind)).
			WithField("duration_ms", res.DurationMs).WithField("error", err.Error()).Warn("pipeline step failed")
		return res, err
	}

	t := time.Now()
	raw, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return fail("fetch", err)
	}
	log.WithField("bytes", len(raw)).WithField("duration_ms", time.Since(t).Milliseconds()).Info("recording fetched")

	t = time.Now()
	wf, err := p.normalizer.Normalize(ctx, raw, ref.Format)
	if err != nil {
		return fail("normalize", err)
	}
	log.WithField("bytes", len(wf.Data)).WithField("duration_ms", time.Since(t).Milliseconds()).Info("audio normalized")

	t = time.Now()
	text, err := p.transcriber.Transcribe(ctx, wf)
	if err != nil {
		return fail("transcribe", err)
	}
	log.WithField("chars", len([]rune(text))).WithField("duration_ms", time.Since(t).Milliseconds()).Info("audio transcribed")

	tr := types.Transcript{Raw: text, Cleaned: p.cleaner.Clean(text)}
	res.RawTranscript = tr.Raw
	res.Transcript = tr.Cleaned
	res.Intent = p.classifier.Classify(tr.Cleaned)
	res.Reply = reply.Compose(res.Intent)

	res.DurationMs = time.Since(start).Milliseconds()
	log.WithField("intent", string(res.Intent)).WithField("duration_ms", res.DurationMs).Info("pipeline complete")
	return res, nil
}
