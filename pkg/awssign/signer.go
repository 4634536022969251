// Package awssign SigV4-signs outbound requests to the Bedrock runtime and
// control-plane hosts.
package awssign

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// service is the SigV4 service name for both the Bedrock runtime and
// control-plane hosts.
const service = "bedrock"

// Signer attaches AWS SigV4 authentication headers to an outbound request.
type Signer interface {
	Sign(ctx context.Context, req *http.Request, body []byte) error
}

// V4Signer signs with the default AWS credential provider chain (static
// keys, shared config/profile, container/instance role, SSO — whichever
// the environment supplies).
type V4Signer struct {
	creds   aws.CredentialsProvider
	region  string
	signer  *v4.Signer
}

// New loads the default AWS credential chain for region and returns a
// Signer bound to it.
func New(ctx context.Context, region string) (*V4Signer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &V4Signer{creds: cfg.Credentials, region: region, signer: v4.NewSigner()}, nil
}

// Sign computes the SHA-256 payload hash and signs req in place, adding
// Authorization, X-Amz-Date, X-Amz-Content-Sha256, and (for temporary
// credentials) X-Amz-Security-Token.
func (s *V4Signer) Sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(hash[:])
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	return s.signer.SignHTTP(ctx, creds, req, payloadHash, service, s.region, time.Now())
}
