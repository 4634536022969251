package modelcache_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/modelcache"
)

const foundationModelsPath = "/foundation-models?byProvider=Anthropic"
const inferenceProfilesPath = "/inference-profiles?maxResults=1000&typeEquals=SYSTEM_DEFINED"

type fakeResponse struct {
	status int
	body   string
	err    error
}

type fakeClient struct {
	responses map[string]fakeResponse
	calls     map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{responses: map[string]fakeResponse{}, calls: map[string]int{}}
}

func (f *fakeClient) Get(ctx context.Context, path string) (int, []byte, error) {
	f.calls[path]++
	r, ok := f.responses[path]
	if !ok {
		return 404, nil, nil
	}
	if r.err != nil {
		return 0, nil, r.err
	}
	return r.status, []byte(r.body), nil
}

const foundationModelsBody = `{
  "modelSummaries": [
    {"modelId":"anthropic.claude-3-5-sonnet-20241022-v1:0","providerName":"Anthropic","modelLifecycle":{"status":"ACTIVE"}},
    {"modelId":"anthropic.claude-v1-legacy-20200101-v1:0","providerName":"Anthropic","modelLifecycle":{"status":"LEGACY"}}
  ]
}`

const inferenceProfilesBody = `{
  "inferenceProfileSummaries": [
    {
      "inferenceProfileId":"us.anthropic.claude-3-5-sonnet-20241022-v1:0",
      "status":"ACTIVE",
      "models":[{"modelArn":"arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-3-5-sonnet-20241022-v1:0"}]
    }
  ]
}`

var _ = Describe("Cache", func() {
	var client *fakeClient

	BeforeEach(func() {
		client = newFakeClient()
		client.responses[foundationModelsPath] = fakeResponse{status: 200, body: foundationModelsBody}
		client.responses[inferenceProfilesPath] = fakeResponse{status: 200, body: inferenceProfilesBody}
	})

	Describe("List", func() {
		It("filters out non-ACTIVE models and derives id/created/owned_by", func() {
			c := modelcache.New(client, time.Minute)
			models, err := c.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(1))

			m := models[0]
			Expect(m.ID).To(Equal("claude-3-5-sonnet-20241022"))
			Expect(m.OwnedBy).To(Equal("anthropic"))

			expected := time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC).Unix()
			Expect(m.Created).To(Equal(expected))
		})

		It("does not refetch while the entry is still fresh", func() {
			c := modelcache.New(client, time.Minute)
			_, err := c.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			_, err = c.List(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(client.calls[foundationModelsPath]).To(Equal(1))
		})

		It("refetches once the TTL has elapsed", func() {
			c := modelcache.New(client, -time.Second)
			_, err := c.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			_, err = c.List(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(client.calls[foundationModelsPath]).To(Equal(2))
		})

		It("returns the foundation-model list with an empty profile mapping when the inference-profile fetch fails", func() {
			client.responses[inferenceProfilesPath] = fakeResponse{err: errors.New("network down")}
			c := modelcache.New(client, time.Minute)

			models, err := c.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(1))

			resolved, err := c.Resolve(context.Background(), "claude-3-5-sonnet-20241022")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(Equal("anthropic.claude-3-5-sonnet-20241022-v1:0"))
		})

		It("surfaces a typed error when the foundation-model fetch itself fails", func() {
			client.responses[foundationModelsPath] = fakeResponse{status: 500, body: "boom"}
			c := modelcache.New(client, time.Minute)

			_, err := c.List(context.Background())
			var reqErr *modelcache.RequestFailedError
			Expect(errors.As(err, &reqErr)).To(BeTrue())
			Expect(reqErr.Status).To(Equal(500))
		})
	})

	Describe("Get", func() {
		It("returns the model with the matching id", func() {
			c := modelcache.New(client, time.Minute)
			m, err := c.Get(context.Background(), "claude-3-5-sonnet-20241022")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.OwnedBy).To(Equal("anthropic"))
		})

		It("returns ErrModelNotFound for an unknown id", func() {
			c := modelcache.New(client, time.Minute)
			_, err := c.Get(context.Background(), "nonexistent")
			Expect(err).To(Equal(modelcache.ErrModelNotFound))
		})
	})

	Describe("Resolve", func() {
		It("returns the inference-profile id instead of the base id, per the S6 scenario", func() {
			c := modelcache.New(client, time.Minute)
			resolved, err := c.Resolve(context.Background(), "claude-3-5-sonnet-20241022")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(Equal("us.anthropic.claude-3-5-sonnet-20241022-v1:0"))
		})

		It("strips a leading anthropic/ prefix", func() {
			c := modelcache.New(client, time.Minute)
			resolved, err := c.Resolve(context.Background(), "anthropic/claude-3-5-sonnet-20241022")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(Equal("us.anthropic.claude-3-5-sonnet-20241022-v1:0"))
		})

		It("treats a string containing anthropic. as a raw bedrock id and still substitutes its profile", func() {
			c := modelcache.New(client, time.Minute)
			resolved, err := c.Resolve(context.Background(), "anthropic.claude-3-5-sonnet-20241022-v1:0")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(Equal("us.anthropic.claude-3-5-sonnet-20241022-v1:0"))
		})

		It("falls back to dot-to-dash prefix normalization on a client-map miss", func() {
			c := modelcache.New(client, time.Minute)
			resolved, err := c.Resolve(context.Background(), "claude-3.5-sonnet")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(Equal("us.anthropic.claude-3-5-sonnet-20241022-v1:0"))
		})

		It("fails with ErrModelNotFound when nothing matches", func() {
			c := modelcache.New(client, time.Minute)
			_, err := c.Resolve(context.Background(), "totally-unknown-model")
			Expect(err).To(Equal(modelcache.ErrModelNotFound))
		})
	})
})
