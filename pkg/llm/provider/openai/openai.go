// Package openai
package openai

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/llm"
)

// parseToolArguments parses a tool call's JSON-encoded arguments string into
// a generic value. If it does not parse as JSON, the raw string is carried
// through unchanged.
func parseToolArguments(raw string) any {
	var input any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return raw
	}
	return input
}

// provider implements the Provider interface for OpenAI's Chat Completions API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "openai"
}

func (o *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req openaiRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted := llm.Message{Role: msg.Role}

		switch content := msg.Content.(type) {
		case string:
			converted.Content = []llm.ContentBlock{{Type: "text", Text: content}}
		case []any:
			// Multimodal content (e.g., vision)
			for _, item := range content {
				if part, ok := item.(map[string]any); ok {
					cb := llm.ContentBlock{}
					if t, ok := part["type"].(string); ok {
						cb.Type = t
					}
					if text, ok := part["text"].(string); ok {
						cb.Text = text
					}
					if imageURL, ok := part["image_url"].(map[string]any); ok {
						cb.Type = "image"
						if url, ok := imageURL["url"].(string); ok {
							cb.ImageURL = url
						}
					}
					converted.Content = append(converted.Content, cb)
				}
			}
		case nil:
			// Empty content (can happen with tool calls)
			converted.Content = []llm.ContentBlock{}
		}

		// Handle tool calls in assistant messages
		for _, tc := range msg.ToolCalls {
			converted.Content = append(converted.Content, llm.ContentBlock{
				Type:      "tool_use",
				ToolUseID: tc.ID,
				ToolName:  tc.Function.Name,
				ToolInput: parseToolArguments(tc.Function.Arguments),
			})
		}

		// Handle tool results
		if msg.Role == "tool" && msg.ToolCallID != "" {
			text := ""
			if s, ok := msg.Content.(string); ok {
				text = s
			}
			converted.Content = []llm.ContentBlock{{
				Type:         "tool_result",
				ToolResultID: msg.ToolCallID,
				ToolOutput:   text,
			}}
		}

		messages = append(messages, converted)
	}

	// Parse stop sequences
	var stop []string
	switch s := req.Stop.(type) {
	case string:
		stop = []string{s}
	case []any:
		for _, item := range s {
			if str, ok := item.(string); ok {
				stop = append(stop, str)
			}
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == nil {
		maxTokens = req.MaxCompletionTokens
	}

	result := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        stop,
		Seed:        req.Seed,
		Stream:      req.Stream,
		RawRequest:  payload,
	}

	if req.StreamOptions != nil {
		result.IncludeUsage = req.StreamOptions.IncludeUsage
	}

	if len(req.Tools) > 0 {
		tools := make([]llm.ToolDef, len(req.Tools))
		for i, t := range req.Tools {
			if t.Function == nil {
				return nil, fmt.Errorf("tool at index %d has no function definition", i)
			}
			tools[i] = llm.ToolDef{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			}
		}
		result.Tools = tools
	}
	result.ToolChoice = req.ToolChoice

	// Preserve OpenAI-specific fields
	if req.FrequencyPenalty != nil || req.PresencePenalty != nil || req.ResponseFormat != nil {
		result.Extra = make(map[string]any)
		if req.FrequencyPenalty != nil {
			result.Extra["frequency_penalty"] = *req.FrequencyPenalty
		}
		if req.PresencePenalty != nil {
			result.Extra["presence_penalty"] = *req.PresencePenalty
		}
		if req.ResponseFormat != nil {
			result.Extra["response_format"] = req.ResponseFormat
		}
	}

	return result, nil
}

func (o *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp openaiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		// Return empty response if no choices
		return &llm.ChatResponse{
			Model:       resp.Model,
			Done:        true,
			RawResponse: payload,
		}, nil
	}

	choice := resp.Choices[0]
	msg := choice.Message

	// Convert message content
	var content []llm.ContentBlock
	switch c := msg.Content.(type) {
	case string:
		content = []llm.ContentBlock{{Type: "text", Text: c}}
	case []any:
		for _, item := range c {
			if part, ok := item.(map[string]any); ok {
				cb := llm.ContentBlock{}
				if t, ok := part["type"].(string); ok {
					cb.Type = t
				}
				if text, ok := part["text"].(string); ok {
					cb.Text = text
				}
				content = append(content, cb)
			}
		}
	case nil:
		content = []llm.ContentBlock{}
	}

	// Handle tool calls
	for _, tc := range msg.ToolCalls {
		content = append(content, llm.ContentBlock{
			Type:      "tool_use",
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: parseToolArguments(tc.Function.Arguments),
		})
	}

	var usage *llm.Usage
	if resp.Usage != nil {
		usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	result := &llm.ChatResponse{
		Model: resp.Model,
		Message: llm.Message{
			Role:    msg.Role,
			Content: content,
		},
		Done:        true,
		StopReason:  choice.FinishReason,
		Usage:       usage,
		CreatedAt:   time.Unix(resp.Created, 0),
		RawResponse: payload,
		Extra: map[string]any{
			"id":     resp.ID,
			"object": resp.Object,
		},
	}

	return result, nil
}

func (o *provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	panic("Not yet implemented")
}

// stopReasonToFinishReason maps an upstream Anthropic stop_reason to the
// OpenAI finish_reason vocabulary. Unrecognized reasons pass through
// unchanged.
func stopReasonToFinishReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return stopReason
	}
}

// BuildResponse translates a parsed upstream chat response into an OpenAI
// chat.completion JSON body. originalModel is echoed back verbatim: the
// client must see the model string it requested, never the resolved
// upstream model id.
func BuildResponse(resp *llm.ChatResponse, originalModel string) ([]byte, error) {
	id := ""
	if resp.Extra != nil {
		if raw, ok := resp.Extra["id"].(string); ok {
			id = raw
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	var textBuilder string
	var toolCalls []openaiToolCall
	for _, block := range resp.Message.Content {
		switch block.Type {
		case "text":
			textBuilder += block.Text
		case "tool_use":
			args, err := json.Marshal(block.ToolInput)
			if err != nil {
				args = []byte("{}")
			}
			toolCalls = append(toolCalls, openaiToolCall{
				ID:   block.ToolUseID,
				Type: "function",
				Function: struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments"`
				}{Name: block.ToolName, Arguments: string(args)},
			})
		}
	}

	var content any
	hasText := false
	for _, block := range resp.Message.Content {
		if block.Type == "text" {
			hasText = true
			break
		}
	}
	if hasText {
		content = textBuilder
	} else {
		content = nil
	}

	message := map[string]any{
		"role":    "assistant",
		"content": content,
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	} else {
		message["tool_calls"] = nil
	}

	out := openaiResponseOut{
		ID:      "chatcmpl-" + id,
		Object:  "chat.completion",
		Created: resp.CreatedAt.Unix(),
		Model:   originalModel,
		Choices: []openaiChoiceOut{
			{
				Index:        0,
				Message:      message,
				FinishReason: stopReasonToFinishReason(resp.StopReason),
			},
		},
	}

	if resp.Usage != nil {
		out.Usage = &openaiUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		}
	}

	return json.Marshal(out)
}
