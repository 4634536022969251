// Package proxy implements the chat-completions orchestrator: it decodes
// an OpenAI-shaped request, resolves and translates it to Bedrock's wire
// format, dispatches it through a SigV4-signed client, and translates the
// response (unary or streaming) back to the client.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/bedrockclient"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/eventstream"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm/provider/bedrock"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm/provider/openai"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/modelcache"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/sse"
)

// apiKeyHeader is the header clients present their static bearer in.
const apiKeyHeader = "Authorization"

const apiKeyPrefix = "Bearer "

// Proxy is the stateless OpenAI-to-Bedrock chat-completions proxy.
type Proxy struct {
	config Config
	cache  *modelcache.Cache
	client *bedrockclient.Client
	logger *zap.Logger
	server *fiber.App
}

// New creates a Proxy. It refuses to start without an API key, per the
// authentication contract on the northbound surface.
func New(config Config, cache *modelcache.Cache, client *bedrockclient.Client, logger *zap.Logger) (*Proxy, error) {
	if config.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	p := &Proxy{
		config: config,
		cache:  cache,
		client: client,
		logger: logger,
		server: app,
	}

	app.Get("/health", p.handleHealth)

	protected := app.Group("", p.requireAPIKey)
	protected.Get("/v1/models", p.handleListModels)
	protected.Get("/v1/models/:id", p.handleGetModel)
	protected.Post("/v1/chat/completions", p.handleChatCompletions)

	return p, nil
}

// Run starts the proxy's HTTP listener.
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server", zap.String("listen", p.config.ListenAddr))
	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy using a caller-supplied listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server", zap.String("listen", listener.Addr().String()))
	return p.server.Listener(listener)
}

// Close gracefully shuts down the HTTP listener.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// Test drives a request through the proxy's routing and middleware without
// a real listener, delegating to fiber's in-memory test harness.
func (p *Proxy) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return p.server.Test(req, msTimeout...)
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// requireAPIKey is the static API-key gate on every surface but /health.
func (p *Proxy) requireAPIKey(c *fiber.Ctx) error {
	got := c.Get(apiKeyHeader)
	got = trimBearer(got)
	if got == "" || got != p.config.APIKey {
		status, body := newAPIError(http.StatusUnauthorized, "invalid_request_error", "invalid_api_key", "Incorrect API key provided.")
		return c.Status(status).JSON(body)
	}
	return c.Next()
}

func trimBearer(v string) string {
	if len(v) > len(apiKeyPrefix) && v[:len(apiKeyPrefix)] == apiKeyPrefix {
		return v[len(apiKeyPrefix):]
	}
	return v
}

// modelsListResponse is the C8 /v1/models envelope. Field order matches
// the alphabetical key order it is serialized in: data, object.
type modelsListResponse struct {
	Data   []modelcache.Model `json:"data"`
	Object string             `json:"object"`
}

func (p *Proxy) handleListModels(c *fiber.Ctx) error {
	models, err := p.cache.List(c.Context())
	if err != nil {
		status, body := internalError(err.Error())
		return c.Status(status).JSON(body)
	}
	return c.JSON(modelsListResponse{Data: models, Object: "list"})
}

func (p *Proxy) handleGetModel(c *fiber.Ctx) error {
	id := c.Params("id")
	model, err := p.cache.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, modelcache.ErrModelNotFound) {
			status, body := modelNotFoundError(fmt.Sprintf("The model %q does not exist", id))
			return c.Status(status).JSON(body)
		}
		status, body := internalError(err.Error())
		return c.Status(status).JSON(body)
	}
	return c.JSON(model)
}

// handleChatCompletions implements the C7 pipeline (spec §4.6).
func (p *Proxy) handleChatCompletions(c *fiber.Ctx) error {
	body := c.Body()
	if int64(len(body)) > p.config.MaxBodyBytes {
		status, resp := invalidRequestError("request body exceeds the maximum allowed size")
		return c.Status(status).JSON(resp)
	}

	// Step 1-2: decode as a JSON object and require non-empty model/messages.
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		status, resp := invalidRequestError("invalid JSON body")
		return c.Status(status).JSON(resp)
	}
	modelName, _ := raw["model"].(string)
	messages, _ := raw["messages"].([]any)
	if modelName == "" || len(messages) == 0 {
		status, resp := invalidRequestError("request must include a non-empty \"model\" and non-empty \"messages\"")
		return c.Status(status).JSON(resp)
	}

	req, err := openai.New().ParseRequest(body)
	if err != nil {
		status, resp := invalidRequestError(err.Error())
		return c.Status(status).JSON(resp)
	}

	ctx := c.Context()

	// Step 3: resolve via C2.
	resolvedModel, err := p.cache.Resolve(ctx, req.Model)
	if err != nil {
		if errors.Is(err, modelcache.ErrModelNotFound) {
			status, resp := modelNotFoundError(fmt.Sprintf("The model %q does not exist", req.Model))
			return c.Status(status).JSON(resp)
		}
		status, resp := internalError(err.Error())
		return c.Status(status).JSON(resp)
	}

	// Step 4-5: translate via C3 and serialize.
	path, bedrockBody, err := bedrock.BuildRequest(req, resolvedModel)
	if err != nil {
		status, resp := invalidRequestError(err.Error())
		return c.Status(status).JSON(resp)
	}

	streaming := req.Stream != nil && *req.Stream

	// Steps 6-7: sign and dispatch. The request's own context is bounded
	// to the full lifetime of the call (dispatch plus, if streaming, body
	// consumption), per the request's total deadline.
	dispatchCtx, cancel := context.WithTimeout(context.Background(), p.config.RequestTimeout)

	accept := bedrockclient.AcceptJSON
	if streaming {
		accept = bedrockclient.AcceptEventStream
	}

	resp, err := p.client.Invoke(dispatchCtx, path, bedrockBody, accept)
	if err != nil {
		cancel()
		status, body := internalError(fmt.Sprintf("dispatching to bedrock: %s", err))
		return c.Status(status).JSON(body)
	}

	// Step 8: non-2xx status maps per the Bedrock-error taxonomy.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		message := extractBedrockErrorMessage(respBody)
		status, body := bedrockStatusError(resp.StatusCode, message)
		return c.Status(status).JSON(body)
	}

	if !streaming {
		defer cancel()
		defer resp.Body.Close()
		return p.writeUnaryResponse(c, resp.Body, req.Model)
	}

	return p.writeStreamingResponse(c, resp.Body, req.Model, req.IncludeUsage, cancel)
}

// extractBedrockErrorMessage pulls a human-readable message out of a
// Bedrock error body, preferring "message" then "Message".
func extractBedrockErrorMessage(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return string(body)
	}
	if m, ok := fields["message"].(string); ok && m != "" {
		return m
	}
	if m, ok := fields["Message"].(string); ok && m != "" {
		return m
	}
	return string(body)
}

// writeUnaryResponse implements step 9: decode via C4, serialize, 200.
func (p *Proxy) writeUnaryResponse(c *fiber.Ctx, body io.Reader, originalModel string) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		status, resp := internalError(fmt.Sprintf("reading bedrock response: %s", err))
		return c.Status(status).JSON(resp)
	}

	chatResp, err := bedrock.New().ParseResponse(raw)
	if err != nil {
		status, resp := internalError(fmt.Sprintf("decoding bedrock response: %s", err))
		return c.Status(status).JSON(resp)
	}

	out, err := openai.BuildResponse(chatResp, originalModel)
	if err != nil {
		status, resp := internalError(fmt.Sprintf("encoding response: %s", err))
		return c.Status(status).JSON(resp)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(out)
}

// writeStreamingResponse implements step 10: heartbeats until the first
// decoded event, then pipes C5 output through C6, terminating cleanly on
// any producer error. cancel is called once the stream completes.
func (p *Proxy) writeStreamingResponse(c *fiber.Ctx, upstreamBody io.ReadCloser, originalModel string, includeUsage bool, cancel context.CancelFunc) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	pr, pw := io.Pipe()

	go p.produceStream(upstreamBody, pw, originalModel, includeUsage, cancel)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (p *Proxy) produceStream(upstreamBody io.ReadCloser, pw *io.PipeWriter, originalModel string, includeUsage bool, cancel context.CancelFunc) {
	defer cancel()
	defer upstreamBody.Close()
	defer pw.Close()

	parser := eventstream.NewParser(upstreamBody)
	encoder := sse.NewEncoder(pw, originalModel, includeUsage)

	var stopped atomic.Bool
	heartbeatDone := make(chan struct{})
	firstEvent := make(chan struct{})
	heartbeatExited := make(chan struct{})
	go func() {
		defer close(heartbeatExited)
		p.heartbeat(pw, firstEvent, heartbeatDone, &stopped)
	}()
	defer close(heartbeatDone)

	first := true
	for {
		payload, err := parser.Next()
		if err != nil {
			if err == io.EOF {
				return
			}
			p.logger.Error("streaming producer error", zap.Error(err))
			return
		}

		if first {
			stopped.Store(true)
			close(firstEvent)
			<-heartbeatExited
			first = false
		}

		if err := encoder.WriteEvent(payload); err != nil {
			p.logger.Error("sse encode error", zap.Error(err))
			return
		}
	}
}

// heartbeat emits a ": processing\n\n" comment line every
// HeartbeatInterval until firstEvent fires or done is closed. stopped is
// set before firstEvent is closed, so a tick already selected at the
// moment of closure still checks it and skips the write, and produceStream
// waits for heartbeat to return before writing the first event, so a write
// already under way finishes first — guaranteeing no heartbeat line is ever
// emitted once the first decoded event has arrived.
func (p *Proxy) heartbeat(w io.Writer, firstEvent, done chan struct{}, stopped *atomic.Bool) {
	ticker := time.NewTicker(p.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-firstEvent:
			return
		case <-done:
			return
		case <-ticker.C:
			if stopped.Load() {
				return
			}
			if _, err := w.Write([]byte(": processing\n\n")); err != nil {
				return
			}
		}
	}
}

func (p *Proxy) heartbeatInterval() time.Duration {
	if p.config.HeartbeatInterval > 0 {
		return p.config.HeartbeatInterval
	}
	return defaultHeartbeatInterval
}
