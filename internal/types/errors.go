package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ConfigError        ErrorKind = "CONFIG_ERROR"
	DownloadError      ErrorKind = "DOWNLOAD_ERROR"
	ConversionError    ErrorKind = "CONVERSION_ERROR"
	TranscriptionError ErrorKind = "TRANSCRIPTION_ERROR"
)

// Error tags a pipeline failure with the step kind that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
