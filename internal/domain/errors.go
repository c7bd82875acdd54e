package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrGeneration     = errors.New("generation failed")
	ErrCancelled      = errors.New("cancelled")
	ErrCodec          = errors.New("malformed image container")
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// ValidationError reports input that cannot be turned into a job.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for the named field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError is the distinguished failure that aborts the remaining batch.
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "Rate limit exceeded! Please increase delay or wait."
	}
	return e.Message
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// GenerationError fails a single job and leaves the rest of the batch running.
type GenerationError struct {
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("API Error: %d", e.StatusCode)
	}
	return ErrGeneration.Error()
}

func (e *GenerationError) Unwrap() error { return ErrGeneration }

// IsRateLimit reports whether err belongs to the rate-limit class, either via
// the typed error or an HTTP 429 status carried by a GenerationError.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return false
}

// FailureReason renders err as the human-readable reason stored on a job.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRateLimit(err):
		return "rate limited: " + err.Error()
	case errors.Is(err, ErrCancelled):
		return ReasonCancelled
	default:
		return err.Error()
	}
}
