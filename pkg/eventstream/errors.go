package eventstream

import "fmt"

// ExceptionError is raised when a frame's :message-type header equals
// "exception". It carries the upstream :exception-type header (when
// present) and the raw exception payload as the error message.
type ExceptionError struct {
	Type    string
	Payload []byte
}

func (e *ExceptionError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("eventstream exception %s: %s", e.Type, e.Payload)
	}
	return fmt.Sprintf("eventstream exception: %s", e.Payload)
}

// ParseError wraps a failure to decode a frame's payload — either the
// underlying binary framing (delegated to the AWS SDK decoder) or the
// chunk envelope's bytes/base64 encoding.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "eventstream parse error: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }
