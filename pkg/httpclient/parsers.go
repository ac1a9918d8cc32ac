package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseAzureOpenAIHeaders extracts rate limit info from Azure OpenAI
// response headers. Azure returns Retry-After in seconds on 429s plus the
// x-ratelimit-remaining-* counters of the OpenAI API surface.
func ParseAzureOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	if remaining := headers.Get("x-ratelimit-remaining-requests"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			info.RequestsRemaining = n
		}
	}
	if remaining := headers.Get("x-ratelimit-remaining-tokens"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			info.TokensRemaining = n
		}
	}

	return info
}
