// Package callflow drives the inbound call state machine. Each callback is
// handled with a fresh CallSession; nothing survives between callbacks.
package callflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/processor"
	"clinic-voice-go/internal/twiml"
	"clinic-voice-go/internal/types"
)

const (
	PathMenu       = "/menu"
	PathRecord     = "/record"
	PathTranscribe = "/transcribe"
)

// Pipeline turns a finished recording into a reply.
type Pipeline interface {
	Process(ctx context.Context, ref types.RecordingReference) (processor.Result, error)
}

type Settings struct {
	Language        string
	Voice           string
	MenuTimeoutSec  int
	MaxRecordingSec int
	// OperatorNumber is dialed after the handoff announcement when set.
	OperatorNumber string
	// PipelineTimeout bounds CompleteRecording so the apology is still
	// written before the server gives up on the request. Zero is unbounded.
	PipelineTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{Language: "ja-JP", MenuTimeoutSec: 5, MaxRecordingSec: 90}
}

// Callback carries what the telephony provider re-supplies on each request.
type Callback struct {
	CallID       string
	Digit        string
	RecordingURL string
	// BaseURL is the absolute origin callback targets are built from.
	BaseURL string
}

// Outcome is the markup to return plus the session it was produced from.
type Outcome struct {
	Session types.CallSession
	Markup  string
}

type Controller struct {
	pipeline Pipeline
	settings Settings
	log      *logger.Logger
	now      func() time.Time
}

func NewController(p Pipeline, s Settings, log *logger.Logger) *Controller {
	d := DefaultSettings()
	if s.Language == "" {
		s.Language = d.Language
	}
	if s.MenuTimeoutSec <= 0 {
		s.MenuTimeoutSec = d.MenuTimeoutSec
	}
	if s.MaxRecordingSec <= 0 {
		s.MaxRecordingSec = d.MaxRecordingSec
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{pipeline: p, settings: s, log: log.WithComponent("callflow"), now: time.Now}
}

// Start answers a new call with the single-digit menu. If the gather window
// closes without input the provider follows the redirect to the recording
// prompt.
func (c *Controller) Start(ctx context.Context, cb Callback) Outcome {
	s := c.session(cb, types.StateGreeting)
	c.advance(&s, types.StateAwaitingMenuChoice)

	r := c.response().
		Gather(twiml.GatherConfig{
			NumDigits: 1,
			Timeout:   c.settings.MenuTimeoutSec,
			Action:    target(cb.BaseURL, PathMenu),
			Prompt:    PromptGreeting,
		}).
		Redirect(target(cb.BaseURL, PathRecord))
	return Outcome{Session: s, Markup: r.String()}
}

// SelectMenu handles the digit-collection callback.
func (c *Controller) SelectMenu(ctx context.Context, cb Callback) Outcome {
	s := c.session(cb, types.StateAwaitingMenuChoice)
	digit := strings.TrimSpace(cb.Digit)
	s.Digit = digit

	r := c.response()
	if digit == "0" {
		c.advance(&s, types.StateHandoff)
		r.Say(PromptHandoff)
		if c.settings.OperatorNumber != "" {
			r.Dial(c.settings.OperatorNumber)
		}
		return Outcome{Session: s, Markup: r.String()}
	}

	prompt, ok := topicPrompts[digit]
	if !ok {
		prompt = PromptUnrecognized
	}
	c.advance(&s, types.StateRecording)
	r.Say(prompt)
	c.record(r, cb.BaseURL, beepPrompt(c.settings.MaxRecordingSec))
	return Outcome{Session: s, Markup: r.String()}
}

// PromptRecording is the no-input path out of the menu.
func (c *Controller) PromptRecording(ctx context.Context, cb Callback) Outcome {
	s := c.session(cb, types.StateAwaitingMenuChoice)
	c.advance(&s, types.StateRecording)

	r := c.response()
	c.record(r, cb.BaseURL, PromptGeneric)
	return Outcome{Session: s, Markup: r.String()}
}

// CompleteRecording runs the pipeline for the finished recording. Any
// pipeline failure is answered with the apology; error details are logged
// and never spoken.
func (c *Controller) CompleteRecording(ctx context.Context, cb Callback) Outcome {
	s := c.session(cb, types.StateRecording)
	ref := types.NewRecordingReference(cb.RecordingURL)
	s.RecordingURL = ref.URL
	c.advance(&s, types.StatePipelineRunning)

	log := c.log.WithCall(s.CallID)
	if c.settings.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.PipelineTimeout)
		defer cancel()
	}
	res, err := c.pipeline.Process(ctx, ref)
	if err != nil {
		c.advance(&s, types.StateFallback)
		log.WithField("kind", fallbackReason(err)).WithField("error", err.Error()).Warn("answering with fallback")
		return Outcome{Session: s, Markup: c.response().Say(PromptApology).String()}
	}

	c.advance(&s, types.StateResponding)
	s.Transcript = res.Transcript
	s.Intent = res.Intent
	log.WithField("intent", string(res.Intent)).WithField("duration_ms", res.DurationMs).Info("answering with reply")
	return Outcome{Session: s, Markup: c.response().Say(res.Reply).String()}
}

// fallbackReason names the failed step for the log line.
func fallbackReason(err error) string {
	kind, ok := types.KindOf(err)
	if !ok {
		return "unclassified"
	}
	switch kind {
	case types.ConfigError:
		return "missing speech credential"
	case types.DownloadError:
		return "recording download failed"
	case types.ConversionError:
		return "transcoding failed"
	case types.TranscriptionError:
		return "transcription failed"
	}
	return string(kind)
}

var transitions = map[types.CallState][]types.CallState{
	types.StateGreeting:           {types.StateAwaitingMenuChoice},
	types.StateAwaitingMenuChoice: {types.StateRecording, types.StateHandoff},
	types.StateRecording:          {types.StatePipelineRunning},
	types.StatePipelineRunning:    {types.StateResponding, types.StateFallback},
}

// Transition validates a single state change.
func Transition(from, to types.CallState) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("callflow: invalid transition %s -> %s", from, to)
}

func (c *Controller) advance(s *types.CallSession, to types.CallState) {
	if err := Transition(s.State, to); err != nil {
		// Only reachable through a programming error in this package.
		panic(err)
	}
	c.log.WithCall(s.CallID).WithField("from", string(s.State)).WithField("to", string(to)).Debug("call state changed")
	s.State = to
}

func (c *Controller) session(cb Callback, state types.CallState) types.CallSession {
	return types.CallSession{CallID: cb.CallID, State: state, StartedAt: c.now()}
}

func (c *Controller) response() *twiml.Response {
	return twiml.NewResponse(twiml.WithLanguage(c.settings.Language), twiml.WithVoice(c.settings.Voice))
}

func (c *Controller) record(r *twiml.Response, baseURL, prompt string) {
	r.Say(prompt).Record(twiml.RecordConfig{
		Action:    target(baseURL, PathTranscribe),
		MaxLength: c.settings.MaxRecordingSec,
		PlayBeep:  true,
	})
}

func target(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
