package modelcache

import "context"

// Model is a single entry in the /v1/models listing, in OpenAI shape.
// Model is an OpenAI-shaped model listing entry. Field order matches the
// alphabetical key order the proxy serializes responses in.
type Model struct {
	Created int64  `json:"created"`
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ControlPlaneClient dispatches a signed GET against the Bedrock
// control-plane host (bedrock.<region>.amazonaws.com) and returns the raw
// response. Signing and outbound transport are supplied by the caller —
// the cache itself is transport-agnostic.
type ControlPlaneClient interface {
	Get(ctx context.Context, path string) (status int, body []byte, err error)
}

// entry is the cache's internal snapshot of the control-plane's model
// universe at a point in time.
type entry struct {
	models           []Model
	clientToBedrock  map[string]string // user-facing id -> raw bedrock model id
	profileByBedrock map[string]string // raw bedrock model id -> inference-profile id
	fetchedAt        int64
}
