package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/polo-atelier/api/internal/services"
)

// SlipLinker adapts the signed URL client to the payment-slip service. Access
// control happens in the service layer, so downloads are signed without a
// second identity check.
type SlipLinker struct {
	client *Client
	bucket string
}

// NewSlipLinker constructs a SlipLinker issuing URLs for the given bucket.
func NewSlipLinker(client *Client, bucket string) (*SlipLinker, error) {
	if client == nil {
		return nil, errors.New("storage slip linker: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	return &SlipLinker{client: client, bucket: bucket}, nil
}

// SignSlipURL issues a short-lived download URL for a stored slip object.
func (l *SlipLinker) SignSlipURL(ctx context.Context, object string, expiresIn time.Duration) (services.SlipLink, error) {
	result, err := l.client.SignedURL(ctx, l.bucket, object, SignedURLOptions{
		Download: &DownloadOptions{
			ExpiresIn:      expiresIn,
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return services.SlipLink{}, err
	}
	return services.SlipLink{URL: result.URL, ExpiresAt: result.ExpiresAt}, nil
}

var _ services.SlipURLSigner = (*SlipLinker)(nil)
