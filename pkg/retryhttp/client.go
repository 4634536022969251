// Package retryhttp wraps an outbound HTTP client with the proxy's retry
// policy: exponential backoff with jitter on 429/5xx, no retry on other
// 4xx, and no retry once a response has been handed back to the caller
// (streaming bodies are therefore never retried after their first byte).
package retryhttp

import (
	"io"
	"math/rand"
	"net/http"
	"time"
)

// HTTPDoer is the minimal outbound transport contract the orchestrator
// depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client retries outbound requests of any method on 429/5xx responses.
type Client struct {
	inner       HTTPDoer
	maxAttempts int
	baseDelay   time.Duration
}

// New wraps inner with retry policy. maxAttempts counts the first attempt
// (maxAttempts=1 disables retrying).
func New(inner HTTPDoer, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{inner: inner, maxAttempts: maxAttempts, baseDelay: 200 * time.Millisecond}
}

// Do dispatches req, retrying on 429/5xx up to maxAttempts times. req.Body
// must support GetBody (as set by http.NewRequest for []byte/bytes.Reader
// bodies) so it can be replayed across attempts.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				req.Body = body
			}
			time.Sleep(backoff(c.baseDelay, attempt))
		}

		resp, err := c.inner.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if !shouldRetry(resp.StatusCode) || attempt == c.maxAttempts-1 {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastResp = resp
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

// RoundTripper adapts a *Client to the http.RoundTripper interface so it
// can be used as an http.Client's Transport.
type RoundTripper struct {
	*Client
}

// RoundTrip implements http.RoundTripper by delegating to Client.Do.
func (rt RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.Client.Do(req)
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoff returns base * 2^(attempt-1) with +/-25% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	jitter := 0.75 + rand.Float64()*0.5 // [0.75, 1.25)
	return time.Duration(float64(d) * jitter)
}
