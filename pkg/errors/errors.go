package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeStatus represents a non-success HTTP status
	ErrorTypeStatus ErrorType = "status"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCanceled represents a session stopped by its context
	ErrorTypeCanceled ErrorType = "canceled"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeExport represents dataset export errors
	ErrorTypeExport ErrorType = "export"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ListingError represents an error raised outside the page loop
type ListingError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ListingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *ListingError) Unwrap() error {
	return e.Err
}

// New creates a new ListingError
func New(errType ErrorType, source, message string, err error) *ListingError {
	return &ListingError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *ListingError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *ListingError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewExport creates a new export error
func NewExport(source, message string, err error) *ListingError {
	return New(ErrorTypeExport, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *ListingError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ListingError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// FetchError is the page-level failure that ends a scrape session.
// Page is the 1-based index of the page that could not be retrieved.
type FetchError struct {
	Type       ErrorType
	Page       int
	URL        string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("[%s] page %d (%s)", e.Type, e.Page, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": unexpected status code: %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later session could reasonably succeed.
// Sessions never retry on their own; this is for callers that schedule runs.
func (e *FetchError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

func newFetch(errType ErrorType, page int, url string, status int, err error) *FetchError {
	return &FetchError{
		Type:       errType,
		Page:       page,
		URL:        url,
		StatusCode: status,
		Err:        err,
		Time:       time.Now(),
	}
}

// NewNetwork creates a fetch error for a transport failure or timeout
func NewNetwork(page int, url string, err error) *FetchError {
	return newFetch(ErrorTypeNetwork, page, url, 0, err)
}

// NewStatus creates a fetch error for a non-success HTTP status
func NewStatus(page int, url string, status int) *FetchError {
	return newFetch(ErrorTypeStatus, page, url, status, nil)
}

// NewParsing creates a fetch error for a body that could not be parsed
func NewParsing(page int, url string, err error) *FetchError {
	return newFetch(ErrorTypeParsing, page, url, 0, err)
}

// NewRateLimit creates a fetch error for a blocked or throttled host
func NewRateLimit(page int, url string, status int, duration time.Duration) *FetchError {
	return newFetch(ErrorTypeRateLimit, page, url, status, fmt.Errorf("rate limited for %v", duration))
}

// NewCanceled creates a fetch error for a session stopped before the page started
func NewCanceled(page int, url string, err error) *FetchError {
	return newFetch(ErrorTypeCanceled, page, url, 0, err)
}
