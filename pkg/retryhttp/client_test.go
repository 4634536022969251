package retryhttp_test

import (
	"bytes"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bedrock-chat-proxy/pkg/retryhttp"
)

type scriptedDoer struct {
	statuses []int
	calls    int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	status := d.statuses[d.calls]
	d.calls++
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{},
	}, nil
}

func newRequest() *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "https://bedrock-runtime.us-east-1.amazonaws.com/model/x/invoke", bytes.NewReader([]byte(`{}`)))
	return req
}

var _ = Describe("Client", func() {
	It("returns immediately on a 200", func() {
		doer := &scriptedDoer{statuses: []int{200}}
		c := retryhttp.New(doer, 3)

		resp, err := c.Do(newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(doer.calls).To(Equal(1))
	})

	It("retries on 429 and succeeds on the next attempt", func() {
		doer := &scriptedDoer{statuses: []int{429, 200}}
		c := retryhttp.New(doer, 3)

		resp, err := c.Do(newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(doer.calls).To(Equal(2))
	})

	It("retries on 5xx up to the attempt cap, then returns the last response", func() {
		doer := &scriptedDoer{statuses: []int{503, 503, 503}}
		c := retryhttp.New(doer, 3)

		resp, err := c.Do(newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(503))
		Expect(doer.calls).To(Equal(3))
	})

	It("does not retry a non-429 4xx", func() {
		doer := &scriptedDoer{statuses: []int{400, 200}}
		c := retryhttp.New(doer, 3)

		resp, err := c.Do(newRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(400))
		Expect(doer.calls).To(Equal(1))
	})
})
