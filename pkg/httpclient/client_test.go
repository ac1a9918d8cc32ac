package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultRetryStrategy(t *testing.T) {
	tests := []struct {
		status int
		want   RetryStrategy
	}{
		{http.StatusOK, NoRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
		{http.StatusTooManyRequests, RateLimitRetry},
		{http.StatusServiceUnavailable, RateLimitRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
	}

	for _, tt := range tests {
		if got := DefaultRetryStrategy(tt.status); got != tt.want {
			t.Errorf("DefaultRetryStrategy(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not be retried)", got)
	}
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))

	payload := []byte(`{"hello":"world"}`)
	req, _ := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader(payload))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("attempts = %d, want 2", len(bodies))
	}
	for i, body := range bodies {
		if body != string(payload) {
			t.Errorf("attempt %d body = %q, want %q", i, body, payload)
		}
	}
}

func TestDoMaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.Header().Set("x-ratelimit-remaining-tokens", "150")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(
		WithMaxRetries(1),
		WithBaseDelay(time.Millisecond),
		WithHeaderParser(ParseAzureOpenAIHeaders),
	)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("error type = %T, want *RetryableError", err)
	}
	if retryErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", retryErr.StatusCode)
	}
	if retryErr.RateLimit.TokensRemaining != 150 {
		t.Errorf("TokensRemaining = %d, want 150", retryErr.RateLimit.TokensRemaining)
	}
	if want := "150 tokens remaining"; !strings.Contains(retryErr.Error(), want) {
		t.Errorf("Error() = %q, want it to mention %q", retryErr.Error(), want)
	}
}

type trackedBody struct {
	io.ReadCloser
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return b.ReadCloser.Close()
}

type closeTrackingTransport struct {
	rt     http.RoundTripper
	bodies []*trackedBody
}

func (t *closeTrackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.rt.RoundTrip(req)
	if resp != nil {
		tb := &trackedBody{ReadCloser: resp.Body}
		resp.Body = tb
		t.bodies = append(t.bodies, tb)
	}
	return resp, err
}

func TestDoClosesFailedResponseBodiesBetweenRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := &closeTrackingTransport{rt: http.DefaultTransport}
	client := New(
		WithMaxRetries(3),
		WithBaseDelay(time.Millisecond),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if len(transport.bodies) != 3 {
		t.Fatalf("attempts = %d, want 3", len(transport.bodies))
	}
	for i, body := range transport.bodies[:2] {
		if !body.closed {
			t.Errorf("failed response body %d was not closed before the retry", i)
		}
	}
	if transport.bodies[2].closed {
		t.Error("the returned response body must stay open for the caller")
	}
}

func TestRateLimitDelayIsJittered(t *testing.T) {
	client := New(WithBaseDelay(time.Second))

	base := 2 * time.Second // attempt 1, no header hints
	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		delay := client.calculateDelay(RateLimitRetry, 1, RateLimitInfo{})
		if delay < base || delay > base+base/4 {
			t.Fatalf("delay = %v, want within [%v, %v]", delay, base, base+base/4)
		}
		seen[delay] = true
	}
	if len(seen) == 1 {
		t.Error("delays never vary; jitter is not randomized")
	}
}

func TestParseAzureOpenAIHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	h.Set("x-ratelimit-remaining-requests", "12")
	h.Set("x-ratelimit-remaining-tokens", "3400")

	info := ParseAzureOpenAIHeaders(h)
	if info.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
	}
	if info.RequestsRemaining != 12 {
		t.Errorf("RequestsRemaining = %d, want 12", info.RequestsRemaining)
	}
	if info.TokensRemaining != 3400 {
		t.Errorf("TokensRemaining = %d, want 3400", info.TokensRemaining)
	}
}
