package proxy

import "time"

// Config is the chat-completions proxy's runtime configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:8080").
	ListenAddr string

	// APIKey is the static bearer clients must present in the
	// authorization header. The proxy refuses to start without one.
	APIKey string

	// RequestTimeout bounds a whole chat-completions call: dispatch,
	// including every retry attempt, and, for streaming, consumption of the
	// response body.
	RequestTimeout time.Duration

	// HeartbeatInterval is how often a heartbeat comment line is sent on an
	// in-flight streaming response before the first decoded event arrives.
	HeartbeatInterval time.Duration

	// MaxBodyBytes caps the size of an accepted client request body.
	MaxBodyBytes int64
}

// defaultHeartbeatInterval matches the streaming keep-alive cadence.
const defaultHeartbeatInterval = 5 * time.Second

// defaultMaxBodyBytes caps an accepted client request body at 10 MiB.
const defaultMaxBodyBytes = 10 << 20

// NewConfig returns a Config with the proxy-internal defaults
// (heartbeat cadence, body cap) applied, for fields that have no
// representation in pkg/config because they're not documented as
// user-tunable keys.
func NewConfig(listenAddr, apiKey string, requestTimeout time.Duration) Config {
	return Config{
		ListenAddr:        listenAddr,
		APIKey:            apiKey,
		RequestTimeout:    requestTimeout,
		HeartbeatInterval: defaultHeartbeatInterval,
		MaxBodyBytes:      defaultMaxBodyBytes,
	}
}
