package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/retry"
	"clinic-voice-go/internal/types"
)

const defaultBaseURL = "https://api.openai.com/v1"

// HTTPStatusError captures non-2xx responses from the speech API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("transcription: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type whisperResponse struct {
	Text string `json:"text"`
}

type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
	Policy   retry.Policy
}

// Client submits canonical waveforms to an OpenAI-compatible
// /audio/transcriptions endpoint with temperature 0.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	timeout    time.Duration
	policy     retry.Policy
	retrier    *retry.Executor
	httpClient *http.Client
	log        *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithExecutor(ex *retry.Executor) Option {
	return func(cl *Client) {
		cl.retrier = ex
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(cl *Client) {
		cl.log = l
	}
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		language:   cfg.Language,
		timeout:    cfg.Timeout,
		policy:     cfg.Policy,
		retrier:    &retry.Executor{},
		httpClient: &http.Client{},
		log:        logger.Discard(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = "whisper-1"
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if c.policy.MaxAttempts == 0 {
		c.policy = retry.DefaultPolicy()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func transcriptionsURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/audio/transcriptions"
	}
	return base + "/v1/audio/transcriptions"
}

// Transcribe returns the raw text for wf. An empty string means no speech
// was detected and is not an error.
func (c *Client) Transcribe(ctx context.Context, wf types.Waveform) (string, error) {
	if c.apiKey == "" {
		return "", types.NewError(types.ConfigError, "transcription.transcribe", errors.New("OPENAI_API_KEY is not set"))
	}
	if wf.Empty() {
		return "", types.NewError(types.TranscriptionError, "transcription.transcribe", errors.New("empty waveform"))
	}

	body, contentType, err := c.buildForm(wf)
	if err != nil {
		return "", types.NewError(types.TranscriptionError, "transcription.transcribe", err)
	}

	url := transcriptionsURL(c.baseURL)
	log := c.log.WithField("model", c.model).WithField("language", c.language)

	ex := *c.retrier
	ex.Notify = func(attempt int, err error, wait time.Duration) {
		log.WithField("attempt", attempt).WithField("wait_ms", wait.Milliseconds()).
			WithField("error", err.Error()).Warn("transcription request failed, retrying")
	}

	text, err := retry.Do(ctx, &ex, c.policy, func(ctx context.Context) (string, error) {
		return c.post(ctx, url, body, contentType)
	})
	if err != nil {
		return "", types.NewError(types.TranscriptionError, "transcription.transcribe", err)
	}

	log.WithField("chars", len(text)).Debug("transcription received")
	return text, nil
}

func (c *Client) buildForm(wf types.Waveform) ([]byte, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wf.Data); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"model", c.model},
		{"language", c.language},
		{"temperature", "0"},
		{"response_format", "json"},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return b.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	var out whisperResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("json decode error: %v body=%s", err, string(raw))
	}
	return out.Text, nil
}

// Static returns a fixed transcript; used for demos without a speech API.
type Static struct {
	Text string
}

func (s Static) Transcribe(_ context.Context, _ types.Waveform) (string, error) {
	return s.Text, nil
}
