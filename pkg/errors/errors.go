package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the class of a scraping error
type ErrorType string

const (
	// ErrorTypeNetwork represents timeout or connection failures
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeHTTPStatus represents a 4xx/5xx response
	ErrorTypeHTTPStatus ErrorType = "http_status"
	// ErrorTypeParse represents extraction failures (missing mandatory field, malformed markup)
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeConfig represents source configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeDownload represents document download failures
	ErrorTypeDownload ErrorType = "download"
)

// ScrapeError is the error value carried through the pipeline
type ScrapeError struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the HTTP client may retry after this error.
// Only network-class failures are retryable; HTTP status errors surface immediately.
func (e *ScrapeError) IsRetryable() bool {
	return e.Type == ErrorTypeNetwork
}

// New creates a new ScrapeError
func New(errType ErrorType, source, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewHTTPStatus creates an error for a 4xx/5xx response
func NewHTTPStatus(source, url string, code int) *ScrapeError {
	e := New(ErrorTypeHTTPStatus, source, fmt.Sprintf("unexpected status %d for %s", code, url), nil)
	e.StatusCode = code
	return e
}

// NewParse creates a new parse error
func NewParse(source, message string, err error) *ScrapeError {
	return New(ErrorTypeParse, source, message, err)
}

// NewConfig creates a new configuration error
func NewConfig(message string, err error) *ScrapeError {
	return New(ErrorTypeConfig, "", message, err)
}

// NewDownload creates a new download error
func NewDownload(source, message string, err error) *ScrapeError {
	return New(ErrorTypeDownload, source, message, err)
}

// IsRetryable reports whether err may be retried. Non-ScrapeError values
// are treated as transport-level failures and retried.
func IsRetryable(err error) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return err != nil
}

// IsHTTPStatus reports whether err is a 4xx/5xx response error
func IsHTTPStatus(err error) bool {
	var se *ScrapeError
	return errors.As(err, &se) && se.Type == ErrorTypeHTTPStatus
}
