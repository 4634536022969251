// Package bedrock implements the Provider interface for AWS Bedrock's
// InvokeModel API with Anthropic Claude models.
//
// When using Bedrock's InvokeModel endpoint, the request body follows the
// Anthropic Messages API format with the model specified in the URL path
// rather than the request body, and an anthropic_version field in the body.
// The response format is identical to the native Anthropic Messages API.
package bedrock

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm"
)

// anthropicVersion is the fixed Bedrock request constant for Claude models
// invoked through the Messages-compatible wire format.
const anthropicVersion = "bedrock-2023-05-31"

// defaultMaxTokens applies when neither max_tokens nor max_completion_tokens
// is present on the client request.
const defaultMaxTokens = 8192

// Provider implements the Provider interface for AWS Bedrock.
type Provider struct{}

// New creates a new Bedrock provider.
func New() *Provider { return &Provider{} }

// Name returns the provider name.
func (p *Provider) Name() string {
	return "bedrock"
}

// DefaultStreaming returns false. Bedrock's InvokeModel does not stream by
// default; streaming requires InvokeModelWithResponseStream.
func (p *Provider) DefaultStreaming() bool {
	return false
}

func (p *Provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req bedrockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	system := parseBedrockSystem(req.System)
	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted := llm.Message{Role: msg.Role}

		switch content := msg.Content.(type) {
		case string:
			converted.Content = []llm.ContentBlock{{Type: "text", Text: content}}
		case []any:
			for _, item := range content {
				if block, ok := item.(map[string]any); ok {
					cb := llm.ContentBlock{}
					if t, ok := block["type"].(string); ok {
						cb.Type = t
					}
					if text, ok := block["text"].(string); ok {
						cb.Text = text
					}
					if source, ok := block["source"].(map[string]any); ok {
						if mt, ok := source["media_type"].(string); ok {
							cb.MediaType = mt
						}
						if data, ok := source["data"].(string); ok {
							cb.ImageBase64 = data
						}
					}

					// Tool use
					if id, ok := block["id"].(string); ok {
						cb.ToolUseID = id
					}
					if name, ok := block["name"].(string); ok {
						cb.ToolName = name
					}
					if input, ok := block["input"].(map[string]any); ok {
						cb.ToolInput = input
					}
					converted.Content = append(converted.Content, cb)
				}
			}
		}

		messages = append(messages, converted)
	}

	result := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      system,
		MaxTokens:   &req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Stop:        req.Stop,
		Stream:      req.Stream,
		RawRequest:  payload,
	}

	if req.AnthropicVersion != "" {
		result.Extra = map[string]any{
			"anthropic_version": req.AnthropicVersion,
		}
	}

	return result, nil
}

func parseBedrockSystem(system any) string {
	if system == nil {
		return ""
	}

	switch value := system.(type) {
	case string:
		return value
	case []any:
		var builder strings.Builder
		for _, item := range value {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			blockType, _ := block["type"].(string)
			text, _ := block["text"].(string)
			if blockType == "text" && text != "" {
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
				builder.WriteString(text)
			}
		}
		return builder.String()
	default:
		return ""
	}
}

func (p *Provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp bedrockResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	content := make([]llm.ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		cb := llm.ContentBlock{Type: block.Type}
		switch block.Type {
		case "text":
			cb.Text = block.Text
		case "tool_use":
			cb.ToolUseID = block.ID
			cb.ToolName = block.Name
			cb.ToolInput = block.Input
		}
		content = append(content, cb)
	}

	var usage *llm.Usage
	if resp.Usage != nil {
		usage = &llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}

	result := &llm.ChatResponse{
		Model: resp.Model,
		Message: llm.Message{
			Role:    resp.Role,
			Content: content,
		},
		Done:        true,
		StopReason:  resp.StopReason,
		Usage:       usage,
		CreatedAt:   time.Now(),
		RawResponse: payload,
		Extra: map[string]any{
			"id":   resp.ID,
			"type": resp.Type,
		},
	}

	return result, nil
}

func (p *Provider) ParseStreamChunk(_ []byte) (*llm.StreamChunk, error) {
	panic("not implemented")
}

// BuildRequest translates a validated client chat request into a Bedrock
// InvokeModel(-WithResponseStream) path and body for the given resolved
// Bedrock model id.
func BuildRequest(req *llm.ChatRequest, bedrockModelID string) (path string, body []byte, err error) {
	streaming := req.Stream != nil && *req.Stream
	if streaming {
		path = "/model/" + bedrockModelID + "/invoke-with-response-stream"
	} else {
		path = "/model/" + bedrockModelID + "/invoke"
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	var systemParts []string
	var bedrockMessages []bedrockMessage

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if text := msg.GetText(); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}

		blocks := translateContentBlocks(msg)

		role := msg.Role
		if role == "tool" {
			role = "user"
		}

		// Adjacent tool_result merge: if the preceding output message is a
		// user message whose content is solely tool_result blocks, append.
		if role == "user" && allToolResults(blocks) && len(bedrockMessages) > 0 {
			last := &bedrockMessages[len(bedrockMessages)-1]
			if last.Role == "user" {
				if lastBlocks, ok := last.Content.([]bedrockContentBlock); ok && allToolResults(lastBlocks) {
					last.Content = append(lastBlocks, blocks...)
					continue
				}
			}
		}

		var content any = blocks
		if role == "assistant" && len(blocks) == 0 {
			content = ""
		}

		bedrockMessages = append(bedrockMessages, bedrockMessage{
			Role:    role,
			Content: content,
		})
	}

	bedrockReq := bedrockRequest{
		AnthropicVersion: anthropicVersion,
		Messages:         bedrockMessages,
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		Stream:           req.Stream,
	}

	if len(systemParts) > 0 {
		bedrockReq.System = strings.Join(systemParts, "\n")
	}

	if len(req.Stop) > 0 {
		bedrockReq.Stop = req.Stop
	}

	if len(req.Tools) > 0 {
		tools := make([]bedrockToolDef, len(req.Tools))
		for i, t := range req.Tools {
			if t.Name == "" {
				return "", nil, fmt.Errorf("tool at index %d has no function definition", i)
			}
			tools[i] = bedrockToolDef{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.Parameters,
			}
		}
		bedrockReq.Tools = tools
	}

	if choice := translateToolChoice(req.ToolChoice); choice != nil {
		bedrockReq.ToolChoice = choice
	}

	body, err = json.Marshal(bedrockReq)
	return path, body, err
}

// translateContentBlocks converts a message's provider-agnostic content
// blocks into Bedrock content blocks, in their input order; image blocks
// are dropped. It returns an empty result when no block is produced;
// BuildRequest substitutes the empty string for an assistant message.
func translateContentBlocks(msg llm.Message) []bedrockContentBlock {
	var blocks []bedrockContentBlock

	for _, cb := range msg.Content {
		switch cb.Type {
		case "text":
			blocks = append(blocks, bedrockContentBlock{Type: "text", Text: cb.Text})
		case "image":
			// Non-goal in v1: image content is dropped, not translated.
		case "tool_use":
			blocks = append(blocks, bedrockContentBlock{
				Type:  "tool_use",
				ID:    cb.ToolUseID,
				Name:  cb.ToolName,
				Input: cb.ToolInput,
			})
		case "tool_result":
			blocks = append(blocks, bedrockContentBlock{
				Type:      "tool_result",
				ToolUseID: cb.ToolResultID,
				Content:   cb.ToolOutput,
				IsError:   cb.IsError,
			})
		}
	}

	return blocks
}

func allToolResults(blocks []bedrockContentBlock) bool {
	if len(blocks) == 0 {
		return false
	}
	for _, b := range blocks {
		if b.Type != "tool_result" {
			return false
		}
	}
	return true
}

// translateToolChoice maps the client's tool_choice value (string or
// {"type":"function","function":{"name":...}}) to Bedrock's {type, name}
// shape. Returns nil when no tool_choice was specified or it maps to
// "omitted" (the client asked for "none").
func translateToolChoice(choice any) *bedrockToolChoice {
	switch v := choice.(type) {
	case nil:
		return nil
	case string:
		switch v {
		case "auto":
			return &bedrockToolChoice{Type: "auto"}
		case "required":
			return &bedrockToolChoice{Type: "any"}
		default: // "none" and anything else: omitted
			return nil
		}
	case map[string]any:
		if fn, ok := v["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				return &bedrockToolChoice{Type: "tool", Name: name}
			}
		}
	}
	return nil
}
