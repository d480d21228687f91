package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

// Options are resolved once by the config layer.
type Options struct {
	Environment string
	Level       string
	Output      io.Writer
}

func New(opts Options) *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	if opts.Environment == "" || opts.Environment == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     true,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	switch opts.Level {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard is a logger for tests and tools that should stay quiet.
func Discard() *Logger {
	return New(Options{Environment: "test", Level: "error", Output: io.Discard})
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithCall scopes the logger to one telephony call leg.
func (l *Logger) WithCall(callID string) *Logger {
	return &Logger{Entry: l.Entry.WithField("call_id", callID)}
}

// WithComponent mirrors WithCall for long-lived components.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
