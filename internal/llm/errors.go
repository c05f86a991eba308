package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// RateLimitError indicates the provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 30s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 30
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// TransportError carries the provider HTTP status for classification.
type TransportError struct {
	Provider string
	Status   int
	Body     string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Body)
}

// InvocationError is the single error surfaced after retries are exhausted or a
// non-transient provider failure. Cause holds the last underlying error.
type InvocationError struct {
	Attempts int
	Cause    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("model invocation failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// transient reports whether err is worth retrying: rate limits, timeouts, and
// 5xx-equivalents. Auth and malformed-request failures are not.
func transient(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status >= 500 || te.Status == 408
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	// A per-attempt deadline that fired is transient; run-level cancellation is
	// handled by the invoker before classification.
	return errors.Is(err, context.DeadlineExceeded)
}
