package provider

import (
	"errors"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm"
)

// ErrStreamingNotImplemented is returned by ParseStreamChunk when a provider
// does not yet support streaming parsing.
var ErrStreamingNotImplemented = errors.New("streaming not implemented for this provider")

// Provider parses and serializes one side of the proxy's fixed translation
// direction: the client-facing OpenAI format or the upstream Bedrock format.
// Unlike a runtime format detector, a Provider here is bound at construction
// time to a single fixed role in the pipeline.
type Provider interface {
	// Name returns the canonical provider name ("openai" or "bedrock").
	Name() string

	// ParseRequest converts a provider-specific request into the internal format.
	// Returns an error if the payload cannot be parsed.
	ParseRequest(payload []byte) (*llm.ChatRequest, error)

	// ParseResponse converts a provider-specific response into the internal format.
	// Returns an error if the payload cannot be parsed.
	ParseResponse(payload []byte) (*llm.ChatResponse, error)

	// ParseStreamChunk converts a single streaming chunk into the internal format.
	// Returns ErrStreamingNotImplemented if the provider doesn't support streaming yet.
	// Returns (nil, nil) if the chunk should be skipped (e.g., keep-alive, comments).
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)
}
