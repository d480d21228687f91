package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/retry"
)

// Config is read once at startup and shared read-only afterwards.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Speech    SpeechConfig
	Telephony TelephonyConfig
	Pipeline  PipelineConfig
}

func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	telephony, err := loadTelephonyConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log: LogConfig{
			Environment: getEnvOrDefault("ENVIRONMENT", "local"),
			Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		},
		Speech:    speech,
		Telephony: telephony,
		Pipeline:  pipeline,
	}, nil
}

// Validate rejects configurations the service cannot run with. A missing
// speech credential is only fatal here; at request time it degrades to the
// fallback reply.
func (c *Config) Validate() error {
	var errs []error
	if !c.Speech.Mock && c.Speech.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY (or OPENAI_API_KEY_PARAM) is required unless USE_MOCK_TRANSCRIBE is set"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q", c.Log.Level))
	}
	if c.Telephony.MenuTimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("MENU_TIMEOUT_SEC must be positive, got %d", c.Telephony.MenuTimeoutSec))
	}
	if c.Telephony.MaxRecordingSec < 1 {
		errs = append(errs, fmt.Errorf("MAX_RECORDING_SEC must be positive, got %d", c.Telephony.MaxRecordingSec))
	}
	if c.Pipeline.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", c.Pipeline.RetryAttempts))
	}
	if c.Pipeline.DownloadTimeout <= 0 || c.Speech.Timeout <= 0 {
		errs = append(errs, errors.New("DOWNLOAD_TIMEOUT_SEC and TRANSCRIBE_TIMEOUT_SEC must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Environment: c.Log.Environment, Level: c.Log.Level}
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.Pipeline.RetryAttempts, BaseDelay: c.Pipeline.RetryBaseDelay}
}

// conversionAllowance covers the local ffmpeg run, which has no timeout of
// its own.
const conversionAllowance = 30 * time.Second

// PipelineBudget is the longest one recording may take end to end: every
// download attempt hitting both URLs at the download timeout, every
// transcription attempt at its timeout, and the waits between attempts.
func (c *Config) PipelineBudget() time.Duration {
	p := c.RetryPolicy()
	attempts := time.Duration(p.MaxAttempts)
	download := attempts*2*c.Pipeline.DownloadTimeout + p.TotalDelay()
	transcribe := attempts*c.Speech.Timeout + p.TotalDelay()
	return download + conversionAllowance + transcribe
}

// WriteTimeout leaves room after PipelineBudget to write the reply.
func (c *Config) WriteTimeout() time.Duration {
	return c.PipelineBudget() + 15*time.Second
}

type ServerConfig struct {
	Addr string
	// BaseURL is the externally reachable origin used for callback targets.
	// Empty means derive it from each inbound request.
	BaseURL string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5005"
	}
	baseURL := strings.TrimRight(getEnvOrDefault("BASE_URL", ""), "/")

	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port, BaseURL: baseURL}, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port, BaseURL: baseURL}, nil
}

type LogConfig struct {
	Environment string
	Level       string
}

type SpeechConfig struct {
	APIKey      string
	APIKeyParam string
	BaseURL     string
	Model       string
	Language    string
	Timeout     time.Duration

	Mock           bool
	MockTranscript string
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseIntEnv("TRANSCRIBE_TIMEOUT_SEC", 60)
	if err != nil {
		return SpeechConfig{}, err
	}
	mock, err := parseBoolEnv("USE_MOCK_TRANSCRIBE", false)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		APIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		APIKeyParam:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY_PARAM")),
		BaseURL:        getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:          getEnvOrDefault("WHISPER_MODEL", "whisper-1"),
		Language:       getEnvOrDefault("TRANSCRIBE_LANGUAGE", "ja"),
		Timeout:        time.Duration(timeout) * time.Second,
		Mock:           mock,
		MockTranscript: strings.TrimSpace(os.Getenv("MOCK_TRANSCRIPT")),
	}, nil
}

type TelephonyConfig struct {
	AccountSID      string
	AuthToken       string
	SayLanguage     string
	SayVoice        string
	MenuTimeoutSec  int
	MaxRecordingSec int
	OperatorNumber  string
}

func loadTelephonyConfig() (TelephonyConfig, error) {
	menuTimeout, err := parseIntEnv("MENU_TIMEOUT_SEC", 5)
	if err != nil {
		return TelephonyConfig{}, err
	}
	maxRecording, err := parseIntEnv("MAX_RECORDING_SEC", 90)
	if err != nil {
		return TelephonyConfig{}, err
	}

	return TelephonyConfig{
		AccountSID:      strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		AuthToken:       strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		SayLanguage:     getEnvOrDefault("SAY_LANGUAGE", "ja-JP"),
		SayVoice:        getEnvOrDefault("SAY_VOICE", ""),
		MenuTimeoutSec:  menuTimeout,
		MaxRecordingSec: maxRecording,
		OperatorNumber:  getEnvOrDefault("OPERATOR_NUMBER", ""),
	}, nil
}

type PipelineConfig struct {
	DownloadTimeout time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	FFmpegPath      string
	KeywordBook     string
}

func loadPipelineConfig() (PipelineConfig, error) {
	download, err := parseIntEnv("DOWNLOAD_TIMEOUT_SEC", 20)
	if err != nil {
		return PipelineConfig{}, err
	}
	attempts, err := parseIntEnv("RETRY_ATTEMPTS", 3)
	if err != nil {
		return PipelineConfig{}, err
	}
	baseDelay, err := parseIntEnv("RETRY_BASE_DELAY_MS", 800)
	if err != nil {
		return PipelineConfig{}, err
	}

	return PipelineConfig{
		DownloadTimeout: time.Duration(download) * time.Second,
		RetryAttempts:   attempts,
		RetryBaseDelay:  time.Duration(baseDelay) * time.Millisecond,
		FFmpegPath:      getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		KeywordBook:     getEnvOrDefault("KEYWORD_BOOK", ""),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return defaultValue, nil
	}
	return *v, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
