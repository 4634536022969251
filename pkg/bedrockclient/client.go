// Package bedrockclient dispatches SigV4-signed requests to the Bedrock
// runtime and control-plane hosts, giving the orchestrator (C7) and the
// model-resolution cache (C2) a single southbound entry point.
package bedrockclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/awssign"
)

// Client dispatches signed requests against the per-region Bedrock runtime
// and control-plane hosts.
type Client struct {
	httpClient     *http.Client
	signer         awssign.Signer
	region         string
	requestTimeout time.Duration
	modelsTimeout  time.Duration
}

// New returns a Client for the given region. requestTimeout bounds
// completions calls; modelsTimeout bounds control-plane calls.
func New(httpClient *http.Client, signer awssign.Signer, region string, requestTimeout, modelsTimeout time.Duration) *Client {
	return &Client{
		httpClient:     httpClient,
		signer:         signer,
		region:         region,
		requestTimeout: requestTimeout,
		modelsTimeout:  modelsTimeout,
	}
}

// RequestTimeout returns the total deadline a caller should give a chat
// completions call (dispatch plus, for streaming, the full body lifetime).
func (c *Client) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c *Client) runtimeURL(path string) string {
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com%s", c.region, path)
}

func (c *Client) controlPlaneURL(path string) string {
	return fmt.Sprintf("https://bedrock.%s.amazonaws.com%s", c.region, path)
}

// Accept header values for the two Invoke response shapes.
const (
	AcceptJSON        = "application/json"
	AcceptEventStream = "application/vnd.amazon.eventstream"
)

// Invoke dispatches a unary or streaming completion call and returns the
// raw response so the orchestrator can route it through C4 or C5/C6
// depending on which accept value was requested.
//
// Unlike Get, Invoke does not wrap ctx in its own timeout: for a streaming
// call the response body is consumed well after Invoke returns, and a
// context cancelled on return would tear down the connection before the
// orchestrator ever reads from it. The caller is expected to derive ctx
// from RequestTimeout so the deadline spans dispatch and body consumption
// together, per the total-deadline semantics a single request is given.
func (c *Client) Invoke(ctx context.Context, path string, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.runtimeURL(path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	if err := c.signer.Sign(ctx, req, body); err != nil {
		return nil, err
	}

	return c.httpClient.Do(req)
}

// Get implements modelcache.ControlPlaneClient against the Bedrock
// control-plane host.
func (c *Client) Get(ctx context.Context, path string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.modelsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.controlPlaneURL(path), nil)
	if err != nil {
		return 0, nil, err
	}

	if err := c.signer.Sign(ctx, req, nil); err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}
