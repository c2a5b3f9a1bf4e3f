package domain

import (
	"errors"
	"fmt"
	"regexp"
)

// Domain const errors
var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidVideoID    = errors.New("invalid video id")
	ErrVideoNotFound     = errors.New("video not found")
	ErrCacheUnavailable  = errors.New("cache unavailable")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrMalformedMessage  = errors.New("malformed queue message")
	ErrExecutorBusy      = errors.New("resolution pool saturated")
	ErrNotFound          = errors.New("resource not found")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ResolutionError is a provider adapter failure surfaced to the caller.
// Provider error text is scrubbed of control sequences before it reaches
// logs or responses.
type ResolutionError struct {
	Source    Source
	Message   string
	Retryable bool
}

func (e ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed (%s): %s", e.Source, e.Message)
}

func NewResolutionError(source Source, message string, retryable bool) ResolutionError {
	return ResolutionError{
		Source:    source,
		Message:   ScrubControlSequences(message),
		Retryable: retryable,
	}
}

// ansiEscape matches terminal escape and other C1 control sequences that
// upstream extraction libraries leak into error text.
var ansiEscape = regexp.MustCompile(`(?:\x1B[@-_]|[\x80-\x9F])[0-?]*[ -/]*[@-~]`)

// ScrubControlSequences strips escape sequences from provider error text
// so it is safe to log and return.
func ScrubControlSequences(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}
