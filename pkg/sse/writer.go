// Package sse encodes the proxy's outbound stream of OpenAI-shaped
// chat-completion chunks as Server-Sent Events.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// sentinel is the terminal SSE line OpenAI streaming clients watch for.
const sentinel = "data: [DONE]\n\n"

// StreamState threads the per-call state an Encoder needs across events:
// the chunk id, echoed model, and created timestamp are fixed at
// message_start and repeated on every subsequent chunk; the remaining
// fields track the in-flight content block and accumulated token counts.
type StreamState struct {
	ChunkID      string
	Model        string
	Created      int64
	InputTokens  int
	OutputTokens int

	toolCallIndex         int
	currentBlockIsToolUse bool
}

// Encoder translates decoded Anthropic streaming events into OpenAI SSE
// chunks, writing them to an underlying io.Writer. An Encoder is stateful
// and single-use: construct one per in-flight streaming call.
type Encoder struct {
	w            io.Writer
	state        *StreamState
	includeUsage bool
}

// NewEncoder returns an Encoder writing OpenAI SSE chunks to w.
// originalModel is echoed back in every chunk's "model" field — the
// client's requested model string, never the resolved upstream id.
// includeUsage mirrors the client's stream_options.include_usage.
func NewEncoder(w io.Writer, originalModel string, includeUsage bool) *Encoder {
	return &Encoder{
		w:            w,
		includeUsage: includeUsage,
		state:        &StreamState{Model: originalModel},
	}
}

// anthropicEvent is the minimal envelope every decoded Anthropic streaming
// event shares: a type discriminator plus the union of fields any event
// kind might carry.
type anthropicEvent struct {
	Type string `json:"type"`

	Message *struct {
		ID    string `json:"id"`
		Usage *struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`

	Index        int `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`

	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// WriteEvent parses one decoded Anthropic event and writes zero or more
// "data: <json>\n\n" lines (and, on message_stop, the terminal sentinel)
// to the encoder's writer.
func (e *Encoder) WriteEvent(payload []byte) error {
	var ev anthropicEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("sse: decoding anthropic event: %w", err)
	}

	switch ev.Type {
	case "message_start":
		return e.onMessageStart(ev)
	case "content_block_start":
		return e.onContentBlockStart(ev)
	case "content_block_delta":
		return e.onContentBlockDelta(ev)
	case "content_block_stop":
		return e.onContentBlockStop(ev)
	case "message_delta":
		return e.onMessageDelta(ev)
	case "message_stop":
		return e.onMessageStop()
	default:
		return nil
	}
}

func (e *Encoder) onMessageStart(ev anthropicEvent) error {
	id := ""
	if ev.Message != nil {
		id = ev.Message.ID
	}
	if id == "" {
		id = uuid.NewString()
	}
	e.state.ChunkID = "chatcmpl-" + id
	e.state.Created = time.Now().Unix()

	if ev.Message != nil && ev.Message.Usage != nil {
		e.state.InputTokens = ev.Message.Usage.InputTokens
	}

	empty := ""
	return e.emitChunk(delta{Role: "assistant", Content: &empty}, nil)
}

func (e *Encoder) onContentBlockStart(ev anthropicEvent) error {
	if ev.ContentBlock == nil || ev.ContentBlock.Type != "tool_use" {
		e.state.currentBlockIsToolUse = false
		return nil
	}

	e.state.currentBlockIsToolUse = true
	index := e.state.toolCallIndex
	return e.emitChunk(delta{
		ToolCalls: []toolCallDelta{{
			Index: index,
			ID:    ev.ContentBlock.ID,
			Type:  "function",
			Function: &toolCallFunctionDelta{
				Name:      ev.ContentBlock.Name,
				Arguments: "",
			},
		}},
	}, nil)
}

func (e *Encoder) onContentBlockDelta(ev anthropicEvent) error {
	if ev.Delta == nil {
		return nil
	}

	switch ev.Delta.Type {
	case "text_delta":
		text := ev.Delta.Text
		return e.emitChunk(delta{Role: "assistant", Content: &text}, nil)
	case "input_json_delta":
		index := e.state.toolCallIndex
		return e.emitChunk(delta{
			ToolCalls: []toolCallDelta{{
				Index:    index,
				Function: &toolCallFunctionDelta{Arguments: ev.Delta.PartialJSON},
			}},
		}, nil)
	default:
		return nil
	}
}

func (e *Encoder) onContentBlockStop(ev anthropicEvent) error {
	if e.state.currentBlockIsToolUse {
		e.state.toolCallIndex++
		e.state.currentBlockIsToolUse = false
	}
	return nil
}

func (e *Encoder) onMessageDelta(ev anthropicEvent) error {
	stopReason := ""
	if ev.Delta != nil {
		stopReason = ev.Delta.StopReason
	}
	if ev.Usage != nil {
		e.state.OutputTokens = ev.Usage.OutputTokens
	}

	finish := stopReasonToFinishReason(stopReason)
	return e.emitChunk(delta{Role: "assistant"}, &finish)
}

func (e *Encoder) onMessageStop() error {
	if e.includeUsage {
		out := streamChunk{
			ID:      e.state.ChunkID,
			Object:  "chat.completion.chunk",
			Created: e.state.Created,
			Model:   e.state.Model,
			Choices: []streamChoice{},
			Usage: &streamUsage{
				PromptTokens:     e.state.InputTokens,
				CompletionTokens: e.state.OutputTokens,
				TotalTokens:      e.state.InputTokens + e.state.OutputTokens,
			},
		}
		if err := e.writeChunk(out); err != nil {
			return err
		}
	}

	_, err := io.WriteString(e.w, sentinel)
	return err
}

// emitChunk writes a single-choice chunk with the given delta and
// finish_reason (nil means null, per the OpenAI streaming wire format).
func (e *Encoder) emitChunk(d delta, finishReason *string) error {
	out := streamChunk{
		ID:      e.state.ChunkID,
		Object:  "chat.completion.chunk",
		Created: e.state.Created,
		Model:   e.state.Model,
		Choices: []streamChoice{{Index: 0, Delta: d, FinishReason: finishReason}},
	}
	return e.writeChunk(out)
}

func (e *Encoder) writeChunk(out streamChunk) error {
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.w, "data: %s\n\n", body)
	return err
}

// stopReasonToFinishReason mirrors the unary translator's mapping so
// streaming and non-streaming completions agree on vocabulary.
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

type streamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *streamUsage   `json:"usage,omitempty"`
}

type streamChoice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
}

type toolCallDelta struct {
	Index    int                    `json:"index"`
	ID       string                 `json:"id,omitempty"`
	Type     string                 `json:"type,omitempty"`
	Function *toolCallFunctionDelta `json:"function,omitempty"`
}

type toolCallFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type streamUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
