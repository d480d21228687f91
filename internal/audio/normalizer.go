// Package audio transcodes carrier recordings into the canonical waveform
// the transcription step expects: mono, 16 kHz, 16-bit linear PCM WAV.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"clinic-voice-go/internal/types"
)

const (
	SampleRate = 16000
	Channels   = 1
)

// Runner executes the transcoder. Tests substitute it.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command and keeps the tail of stderr for diagnostics.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

type Normalizer struct {
	ffmpeg string
	run    Runner
	tmpDir string
}

type Option func(*Normalizer)

func WithRunner(r Runner) Option {
	return func(n *Normalizer) {
		n.run = r
	}
}

// WithTempDir sets the parent directory for per-call scratch space.
func WithTempDir(dir string) Option {
	return func(n *Normalizer) {
		n.tmpDir = dir
	}
}

func NewNormalizer(ffmpegPath string, opts ...Option) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	n := &Normalizer{ffmpeg: ffmpegPath, run: ExecRunner}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize writes raw to a scratch directory, transcodes it and reads the
// result back. The scratch directory is removed on every return path.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, format string) (types.Waveform, error) {
	if len(raw) == 0 {
		return types.Waveform{}, types.NewError(types.ConversionError, "audio.normalize", errors.New("empty input"))
	}

	dir, err := os.MkdirTemp(n.tmpDir, "clinic-voice-*")
	if err != nil {
		return types.Waveform{}, types.NewError(types.ConversionError, "audio.normalize", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input."+inputExt(format))
	out := filepath.Join(dir, "output.wav")

	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return types.Waveform{}, types.NewError(types.ConversionError, "audio.normalize", err)
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		out,
	}
	if err := n.run(ctx, n.ffmpeg, args...); err != nil {
		return types.Waveform{}, types.NewError(types.ConversionError, "audio.normalize", fmt.Errorf("ffmpeg: %w", err))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return types.Waveform{}, types.NewError(types.ConversionError, "audio.normalize", err)
	}
	if len(data) == 0 {
		return types.Waveform{}, types.NewError(types.ConversionError, "audio.normalize", errors.New("ffmpeg produced no output"))
	}

	return types.Waveform{Data: data, SampleRate: SampleRate, Channels: Channels}, nil
}

func inputExt(format string) string {
	f := strings.Trim(strings.ToLower(format), ". ")
	if f == "" || strings.ContainsAny(f, `/\`) {
		return "in"
	}
	return f
}
