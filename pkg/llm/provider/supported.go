package provider

import (
	"fmt"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm/provider/bedrock"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	OpenAI  = "openai"
	Bedrock = "bedrock"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{OpenAI, Bedrock}
}

// New creates a new Provider instance for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string) (Provider, error) {
	switch providerType {
	case OpenAI:
		return openai.New(), nil
	case Bedrock:
		return bedrock.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
