package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/polo-atelier/api/internal/services"
)

// Uploader streams customer uploads into Cloud Storage and returns the stored
// object reference. It backs both the payment-slip and QR image stores.
type Uploader struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// UploaderOption customises Uploader behaviour.
type UploaderOption func(*Uploader)

// WithPublicBaseURL makes QR uploads resolve to CDN-fronted URLs instead of
// the default storage.googleapis.com form.
func WithPublicBaseURL(base string) UploaderOption {
	return func(u *Uploader) {
		u.publicBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithUploaderClock injects a custom clock, primarily for tests.
func WithUploaderClock(clock func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUploader constructs an Uploader writing into the given bucket.
func NewUploader(client *gcs.Client, bucket string, opts ...UploaderOption) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("storage uploader: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	u := &Uploader{
		client: client,
		bucket: bucket,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// SavePaymentSlip stores a proof-of-payment image under the order's slip
// prefix and returns the object path. Slips stay private; callers resolve a
// download URL on demand.
func (u *Uploader) SavePaymentSlip(ctx context.Context, orderID string, upload services.FileUpload) (string, error) {
	object, err := BuildObjectPath(PurposePaymentSlip, PathParams{
		OrderID:    orderID,
		FileName:   sanitizeUploadName(upload.Filename, upload.ContentType),
		UploadedAt: u.now(),
	})
	if err != nil {
		return "", err
	}
	if err := u.write(ctx, object, upload); err != nil {
		return "", err
	}
	return object, nil
}

// SaveQRImage stores a payment QR image and returns a publicly resolvable URL.
func (u *Uploader) SaveQRImage(ctx context.Context, upload services.FileUpload) (string, error) {
	object, err := BuildObjectPath(PurposeQRCode, PathParams{
		FileName:   sanitizeUploadName(upload.Filename, upload.ContentType),
		UploadedAt: u.now(),
	})
	if err != nil {
		return "", err
	}
	if err := u.write(ctx, object, upload); err != nil {
		return "", err
	}
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + object, nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, object), nil
}

// Bucket reports the bucket objects are written into.
func (u *Uploader) Bucket() string {
	return u.bucket
}

func (u *Uploader) write(ctx context.Context, object string, upload services.FileUpload) error {
	if upload.Content == nil {
		return errors.New("storage uploader: upload content is required")
	}

	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = strings.TrimSpace(upload.ContentType)
	if _, err := io.Copy(w, upload.Content); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage uploader: write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage uploader: close %s: %w", object, err)
	}
	return nil
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// sanitizeUploadName keeps the client-supplied base name when it is path-safe
// and falls back to a content-type derived name otherwise.
func sanitizeUploadName(filename, contentType string) string {
	name := path.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" || name == "" || strings.Contains(name, "..") {
		name = ""
	}
	if name == "" {
		ext := contentTypeExtensions[strings.ToLower(strings.TrimSpace(contentType))]
		if ext == "" {
			ext = ".bin"
		}
		name = "upload" + ext
	}
	return strings.ReplaceAll(name, " ", "_")
}

var (
	_ services.SlipObjectStore = (*Uploader)(nil)
	_ services.QRObjectStore   = (*Uploader)(nil)
)
