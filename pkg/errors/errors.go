package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeTimeout represents a request that exceeded its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeForbidden represents a 403 response
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeGone represents a 410 response
	ErrorTypeGone ErrorType = "gone"
	// ErrorTypeNotFound represents a 404 response
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRateLimit represents a 429 response
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeHTTP represents any other non-success HTTP status
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeDNS represents a name resolution failure
	ErrorTypeDNS ErrorType = "dns"
	// ErrorTypeConnRefused represents a refused connection
	ErrorTypeConnRefused ErrorType = "conn_refused"
	// ErrorTypeNetwork represents any other network-level failure
	ErrorTypeNetwork ErrorType = "network"
)

// FetchError is a classified failure from a single storefront fetch.
type FetchError struct {
	Type       ErrorType
	Brand      string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Brand, e.Message(), e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Brand, e.Message())
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Message returns the human-readable classification surfaced on scrape results.
func (e *FetchError) Message() string {
	switch e.Type {
	case ErrorTypeTimeout:
		return "Request timed out"
	case ErrorTypeForbidden:
		return "Website blocks automated requests"
	case ErrorTypeGone:
		return "Page permanently removed"
	case ErrorTypeNotFound:
		return "Page not found"
	case ErrorTypeRateLimit:
		return "Website rate-limited the request"
	case ErrorTypeHTTP:
		return fmt.Sprintf("Website returned HTTP %d", e.StatusCode)
	case ErrorTypeDNS:
		return "Could not resolve website address"
	case ErrorTypeConnRefused:
		return "Website refused the connection"
	default:
		return "Network error while contacting website"
	}
}

// IsBlocking reports whether the failure indicates the site actively rejects
// automated traffic, which is worth remembering across cycles.
func (e *FetchError) IsBlocking() bool {
	return e.Type == ErrorTypeForbidden || e.Type == ErrorTypeRateLimit
}

// New creates a new FetchError
func New(errType ErrorType, brand string, status int, err error) *FetchError {
	return &FetchError{
		Type:       errType,
		Brand:      brand,
		StatusCode: status,
		Err:        err,
		Time:       time.Now(),
	}
}

// NewConfiguration creates a configuration error
func NewConfiguration(message string, err error) error {
	if err != nil {
		return fmt.Errorf("configuration: %s: %w", message, err)
	}
	return fmt.Errorf("configuration: %s", message)
}

// Classify maps a transport error and/or HTTP status code into a FetchError.
// Status 0 means the request never produced a response.
func Classify(brand string, status int, err error) *FetchError {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return New(ErrorTypeTimeout, brand, 0, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return New(ErrorTypeTimeout, brand, 0, err)
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return New(ErrorTypeDNS, brand, 0, err)
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			if strings.Contains(opErr.Error(), "connection refused") {
				return New(ErrorTypeConnRefused, brand, 0, err)
			}
			return New(ErrorTypeNetwork, brand, 0, err)
		}
		return New(ErrorTypeNetwork, brand, 0, err)
	}

	switch status {
	case http.StatusForbidden:
		return New(ErrorTypeForbidden, brand, status, nil)
	case http.StatusGone:
		return New(ErrorTypeGone, brand, status, nil)
	case http.StatusNotFound:
		return New(ErrorTypeNotFound, brand, status, nil)
	case http.StatusTooManyRequests:
		return New(ErrorTypeRateLimit, brand, status, nil)
	default:
		return New(ErrorTypeHTTP, brand, status, nil)
	}
}
