package httpclient

import (
	"fmt"
	"time"
)

// RetryableError reports a request that failed after exhausting its retry
// budget. It keeps the rate-limit hints from the final response so callers
// can see how throttled the deployment was.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	RateLimit  RateLimitInfo
	Err        error
}

func (e *RetryableError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %v", e.RetryAfter)
	}
	if e.RateLimit.RequestsRemaining > 0 || e.RateLimit.TokensRemaining > 0 {
		msg += fmt.Sprintf(" (%d requests / %d tokens remaining)",
			e.RateLimit.RequestsRemaining, e.RateLimit.TokensRemaining)
	}
	return msg
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
