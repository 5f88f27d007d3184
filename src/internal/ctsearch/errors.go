// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package ctsearch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrMalformedRecord indicates that a certificate object lacks a required field
	// or carries a value that cannot be interpreted.
	ErrMalformedRecord = errors.New("ctsearch: malformed certificate record")

	// ErrMalformedResponse indicates that the upstream body is not a JSON array of
	// certificate objects (nor an object wrapping one).
	ErrMalformedResponse = errors.New("ctsearch: malformed upstream response")
)

// InvalidArgumentError reports a request field that failed validation.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// UpstreamError reports a non-2xx response from the upstream API.
//
// Body holds at most [maxErrorBody] bytes of the response with the API key redacted.
type UpstreamError struct {
	Status      int
	Body        string
	RateLimited bool
	// RetryAfter is parsed from the Retry-After header when the upstream sends one.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	if e.RateLimited {
		msg := fmt.Sprintf("upstream rate limit exceeded (status %d)", e.Status)
		if e.RetryAfter > 0 {
			msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
		}
		return msg
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream error (status %d %s)", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Body)
}

// NotFound reports whether the upstream answered 404.
func (e *UpstreamError) NotFound() bool { return e.Status == http.StatusNotFound }

// NetworkError reports a transport failure after the single allowed retry.
type NetworkError struct {
	Cause   error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network error: request timed out: %v", e.Cause)
	}
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// IsRateLimited reports whether err is an [UpstreamError] caused by upstream rate limiting.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.RateLimited
}
