package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// AssetPurpose captures high-level intent for storage layout decisions.
type AssetPurpose string

const (
	PurposePaymentSlip AssetPurpose = "payment-slip"
	PurposeQRCode      AssetPurpose = "qr-code"
)

// PathParams provide required identifiers to compose storage object keys.
type PathParams struct {
	OrderID    string
	FileName   string
	UploadedAt time.Time
}

// PathBuilder composes the object path for a given asset purpose.
type PathBuilder func(PathParams) (string, error)

var (
	pathBuilders = map[AssetPurpose]PathBuilder{
		PurposePaymentSlip: buildPaymentSlipPath,
		PurposeQRCode:      buildQRCodePath,
	}
	pathBuildersMu sync.RWMutex
)

// RegisterPathBuilder overrides or registers a builder for a specific purpose.
func RegisterPathBuilder(purpose AssetPurpose, builder PathBuilder) {
	pathBuildersMu.Lock()
	defer pathBuildersMu.Unlock()
	if builder == nil {
		delete(pathBuilders, purpose)
		return
	}
	pathBuilders[purpose] = builder
}

// BuildObjectPath resolves the storage object path for the given purpose.
func BuildObjectPath(purpose AssetPurpose, params PathParams) (string, error) {
	pathBuildersMu.RLock()
	builder, ok := pathBuilders[purpose]
	pathBuildersMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("storage: unsupported asset purpose %q", purpose)
	}
	return builder(params)
}

// Timestamped prefixes keep re-uploads from overwriting earlier objects.
func buildPaymentSlipPath(params PathParams) (string, error) {
	orderID, err := validateSegment("orderID", params.OrderID)
	if err != nil {
		return "", err
	}
	fileName, err := validateFileName(params.FileName)
	if err != nil {
		return "", err
	}
	ts := params.UploadedAt
	if ts.IsZero() {
		return "", fmt.Errorf("storage: uploadedAt is required")
	}
	return fmt.Sprintf("payment-slips/%s/%d-%s", orderID, ts.UTC().UnixMilli(), fileName), nil
}

func buildQRCodePath(params PathParams) (string, error) {
	fileName, err := validateFileName(params.FileName)
	if err != nil {
		return "", err
	}
	ts := params.UploadedAt
	if ts.IsZero() {
		return "", fmt.Errorf("storage: uploadedAt is required")
	}
	return fmt.Sprintf("payment-settings/qr/%d-%s", ts.UTC().UnixMilli(), fileName), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return value, nil
}
