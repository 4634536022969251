// Package modelcache backs the /v1/models surface and resolves
// client-supplied model strings to Bedrock runtime model identifiers,
// including cross-region inference profiles.
package modelcache

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	foundationModelsPath  = "/foundation-models?byProvider=Anthropic"
	inferenceProfilesPath = "/inference-profiles?maxResults=1000&typeEquals=SYSTEM_DEFINED"
)

// Cache is a process-wide, time-bounded cache of active Bedrock foundation
// models and inference profiles. It is safe for concurrent use; mutators
// are serialized with an internal mutex, but repopulation under
// contention may run more than once (no single-flight guarantee) — the
// resulting content is idempotent regardless.
type Cache struct {
	client ControlPlaneClient
	ttl    time.Duration

	mu  sync.Mutex
	cur entry
}

// New returns a Cache that fetches from client and treats entries as
// fresh for ttl.
func New(client ControlPlaneClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// List returns the cached model listing, repopulating first if the
// current entry is stale or has never been populated.
func (c *Cache) List(ctx context.Context) ([]Model, error) {
	e, err := c.ensureFresh(ctx)
	if err != nil {
		return nil, err
	}
	return e.models, nil
}

// Get returns the model with the given user-facing id.
func (c *Cache) Get(ctx context.Context, id string) (Model, error) {
	e, err := c.ensureFresh(ctx)
	if err != nil {
		return Model{}, err
	}
	for _, m := range e.models {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, ErrModelNotFound
}

// Resolve maps a client-supplied model string to the Bedrock runtime
// model id that should actually be invoked, substituting an
// inference-profile id when one is registered for the resolved base id.
func (c *Cache) Resolve(ctx context.Context, clientModel string) (string, error) {
	stripped := strings.TrimPrefix(clientModel, "anthropic/")

	// Populate eagerly: even the raw-bedrock-id path needs the
	// bedrock-id -> inference-profile mapping for step 4 below.
	e, err := c.ensureFresh(ctx)
	if err != nil {
		return "", err
	}

	var baseID string
	if strings.Contains(stripped, "anthropic.") {
		baseID = stripped
	} else if bedrockID, ok := e.clientToBedrock[stripped]; ok {
		baseID = bedrockID
	} else {
		normalized := strings.ReplaceAll(stripped, ".", "-")
		found := false
		for _, m := range e.models {
			if strings.HasPrefix(m.ID, normalized) {
				baseID = e.clientToBedrock[m.ID]
				found = true
				break
			}
		}
		if !found {
			return "", ErrModelNotFound
		}
	}

	if profileID, ok := e.profileByBedrock[baseID]; ok {
		return profileID, nil
	}
	return baseID, nil
}

func (c *Cache) snapshot() entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// ensureFresh returns the current entry if it is still within its TTL,
// otherwise repopulates from the control plane and returns the result.
func (c *Cache) ensureFresh(ctx context.Context) (entry, error) {
	c.mu.Lock()
	fresh := c.cur.fetchedAt != 0 && time.Now().Unix()-c.cur.fetchedAt < int64(c.ttl.Seconds())
	c.mu.Unlock()
	if fresh {
		return c.snapshot(), nil
	}
	return c.populate(ctx)
}

// populate fetches both control-plane endpoints and merges them into a
// fresh entry. A foundation-model fetch failure is a hard error; an
// inference-profile fetch failure is swallowed and yields an empty
// profile mapping (best-effort), per the documented failure policy.
func (c *Cache) populate(ctx context.Context) (entry, error) {
	models, clientToBedrock, err := c.fetchFoundationModels(ctx)
	if err != nil {
		return entry{}, err
	}

	profileByBedrock := c.fetchInferenceProfiles(ctx)

	e := entry{
		models:           models,
		clientToBedrock:  clientToBedrock,
		profileByBedrock: profileByBedrock,
		fetchedAt:        time.Now().Unix(),
	}

	c.mu.Lock()
	c.cur = e
	c.mu.Unlock()

	return e, nil
}

func (c *Cache) fetchFoundationModels(ctx context.Context) ([]Model, map[string]string, error) {
	status, body, err := c.client.Get(ctx, foundationModelsPath)
	if err != nil {
		return nil, nil, ErrInvalidURL
	}
	if status != http.StatusOK {
		return nil, nil, &RequestFailedError{Status: status}
	}

	var resp foundationModelsResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return nil, nil, ErrModelNotFound
	}

	models, clientToBedrock := translateFoundationModels(resp)
	return models, clientToBedrock, nil
}

func (c *Cache) fetchInferenceProfiles(ctx context.Context) map[string]string {
	status, body, err := c.client.Get(ctx, inferenceProfilesPath)
	if err != nil || status != http.StatusOK {
		return map[string]string{}
	}

	var resp inferenceProfilesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return map[string]string{}
	}

	return translateInferenceProfiles(resp)
}
