// Package recording downloads call recordings from the telephony carrier.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/retry"
	"clinic-voice-go/internal/types"
)

const (
	fallbackExt     = ".wav"
	maxRecordingLen = 64 << 20
)

// Fetcher issues at most two GETs per attempt: the reference URL, then the
// same URL with a .wav extension.
type Fetcher struct {
	httpClient *http.Client
	username   string
	password   string
	policy     retry.Policy
	retrier    *retry.Executor
	log        *logger.Logger
}

type Option func(*Fetcher)

// WithBasicAuth is used when the carrier protects recording media.
func WithBasicAuth(username, password string) Option {
	return func(f *Fetcher) {
		f.username = username
		f.password = password
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

func WithRetry(policy retry.Policy, ex *retry.Executor) Option {
	return func(f *Fetcher) {
		f.policy = policy
		if ex != nil {
			f.retrier = ex
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) {
		f.log = l
	}
}

func NewFetcher(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	f := &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
		retrier:    &retry.Executor{},
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the recording, retrying the primary+fallback pair under
// the retry policy. Every returned error is a types.DownloadError.
func (f *Fetcher) Fetch(ctx context.Context, ref types.RecordingReference) ([]byte, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return nil, types.NewError(types.DownloadError, "recording.fetch", errors.New("missing recording url"))
	}
	log := f.log.WithField("recording_url", ref.URL)

	ex := *f.retrier
	ex.Notify = func(attempt int, err error, wait time.Duration) {
		log.WithField("attempt", attempt).WithField("wait_ms", wait.Milliseconds()).
			WithField("error", err.Error()).Warn("recording download failed, retrying")
	}

	body, err := retry.Do(ctx, &ex, f.policy, func(ctx context.Context) ([]byte, error) {
		return f.fetchOnce(ctx, ref.URL)
	})
	if err != nil {
		// cancellation during a backoff wait surfaces as a bare ctx error
		if _, ok := types.KindOf(err); !ok {
			err = types.NewError(types.DownloadError, "recording.fetch", err)
		}
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, primary string) ([]byte, error) {
	body, err := f.get(ctx, primary)
	if err == nil {
		return body, nil
	}
	if isTimeout(err) {
		return nil, types.NewError(types.DownloadError, "recording.fetch", err)
	}

	alt := fallbackURL(primary)
	f.log.WithField("primary_error", err.Error()).WithField("fallback_url", alt).Debug("trying fallback recording url")

	body, altErr := f.get(ctx, alt)
	if altErr != nil {
		return nil, types.NewError(types.DownloadError, "recording.fetch",
			fmt.Errorf("primary: %v; fallback: %w", err, altErr))
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingLen))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("GET %s: empty body", target)
	}
	return body, nil
}

// fallbackURL appends .wav to the path, leaving any query or fragment in
// place.
func fallbackURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		if strings.HasSuffix(strings.ToLower(u), fallbackExt) {
			return u
		}
		return u + fallbackExt
	}
	if strings.HasSuffix(strings.ToLower(parsed.Path), fallbackExt) {
		return u
	}
	parsed.Path += fallbackExt
	if parsed.RawPath != "" {
		parsed.RawPath += fallbackExt
	}
	return parsed.String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
