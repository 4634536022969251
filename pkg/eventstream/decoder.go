// Package eventstream decodes the AWS binary EventStream framing used by
// Bedrock's InvokeModelWithResponseStream response body into the decoded
// Anthropic streaming-event byte blobs carried inside "chunk" frames.
//
// Frame-level binary parsing (length-prefixed headers, CRC trailer) is
// delegated to the upstream AWS SDK's eventstream decoder; this package
// layers the Bedrock/Anthropic chunk semantics on top: exception-frame
// detection, silent dropping of non-chunk frames (e.g. the initial-response
// preamble), and base64 extraction of the chunk payload.
package eventstream

import (
	"encoding/base64"
	"encoding/json"
	"io"

	awseventstream "github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

// payloadBufSize seeds the reusable buffer the AWS decoder fills per frame.
const payloadBufSize = 64 * 1024

// Parser turns a byte stream of AWS EventStream frames into a lazy sequence
// of decoded Anthropic event payloads. Call Next repeatedly until it
// returns io.EOF.
type Parser struct {
	decoder *awseventstream.Decoder
	src     io.Reader
	buf     []byte
}

// NewParser returns a Parser reading frames from src as they arrive.
func NewParser(src io.Reader) *Parser {
	return &Parser{
		decoder: awseventstream.NewDecoder(),
		src:     src,
		buf:     make([]byte, 0, payloadBufSize),
	}
}

// chunkEnvelope is the JSON shape of a "chunk" event-type frame's payload.
type chunkEnvelope struct {
	Bytes string `json:"bytes"`
}

// Next decodes and returns the next Anthropic event payload. It skips
// frames that carry no event — returning only once it has one to yield,
// hit the end of the source (io.EOF), or hit an error.
//
// Next returns *ExceptionError if the frame's :message-type is "exception",
// and *ParseError if the chunk payload fails to decode as JSON or its
// "bytes" field fails to base64-decode.
func (p *Parser) Next() ([]byte, error) {
	for {
		msg, err := p.decoder.Decode(p.src, p.buf)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &ParseError{Err: err}
		}

		if h := msg.Headers.Get(":message-type"); h != nil && h.String() == "exception" {
			excType := ""
			if et := msg.Headers.Get(":exception-type"); et != nil {
				excType = et.String()
			}
			return nil, &ExceptionError{Type: excType, Payload: msg.Payload}
		}

		eventType := ""
		if h := msg.Headers.Get(":event-type"); h != nil {
			eventType = h.String()
		}
		if eventType != "chunk" {
			// Silently drop, e.g. the initial-response preamble.
			continue
		}

		var envelope chunkEnvelope
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			return nil, &ParseError{Err: err}
		}

		decoded, err := base64.StdEncoding.DecodeString(envelope.Bytes)
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		return decoded, nil
	}
}
