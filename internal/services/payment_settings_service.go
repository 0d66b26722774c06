package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/repositories"
)

var (
	// ErrPaymentSettingsInvalidInput indicates a malformed replace request.
	ErrPaymentSettingsInvalidInput = errors.New("payment settings: invalid input")
	// ErrPaymentSettingsUnavailable indicates the settings backend failed.
	ErrPaymentSettingsUnavailable = errors.New("payment settings: unavailable")
)

// PaymentSettingsServiceDeps wires the dependencies for the settings provider.
// Fallback is returned whenever the store has no persisted record; it is
// injected explicitly instead of living in a process global so tests can
// exercise the fallback path in isolation.
type PaymentSettingsServiceDeps struct {
	Settings repositories.PaymentSettingsRepository
	QRStore  QRObjectStore
	Fallback domain.PaymentSettings
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentSettingsService struct {
	settings repositories.PaymentSettingsRepository
	qrStore  QRObjectStore
	fallback domain.PaymentSettings
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewPaymentSettingsService constructs a PaymentSettingsService validating required dependencies.
func NewPaymentSettingsService(deps PaymentSettingsServiceDeps) (PaymentSettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("payment settings service: repository is required")
	}

	fallback := deps.Fallback
	if strings.TrimSpace(fallback.BankName) == "" {
		fallback = domain.DefaultPaymentSettings()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentSettingsService{
		settings: deps.Settings,
		qrStore:  deps.QRStore,
		fallback: fallback,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetSettings returns the persisted singleton, or the injected fallback when
// nothing has been saved yet.
func (s *paymentSettingsService) GetSettings(ctx context.Context) (PaymentSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return s.fallback, nil
		}
		return PaymentSettings{}, fmt.Errorf("%w: %v", ErrPaymentSettingsUnavailable, err)
	}
	return settings, nil
}

// ReplaceSettings validates and upserts the singleton wholesale. An uploaded
// QR image is stored first and its URL takes precedence over QRCodeURL.
// Historical orders keep the snapshot they were created with.
func (s *paymentSettingsService) ReplaceSettings(ctx context.Context, cmd ReplacePaymentSettingsCommand) (PaymentSettings, error) {
	bankName := strings.TrimSpace(cmd.BankName)
	accountName := strings.TrimSpace(cmd.AccountName)
	accountNumber := strings.TrimSpace(cmd.AccountNumber)
	switch {
	case bankName == "":
		return PaymentSettings{}, fmt.Errorf("%w: bank name is required", ErrPaymentSettingsInvalidInput)
	case accountName == "":
		return PaymentSettings{}, fmt.Errorf("%w: account name is required", ErrPaymentSettingsInvalidInput)
	case accountNumber == "":
		return PaymentSettings{}, fmt.Errorf("%w: account number is required", ErrPaymentSettingsInvalidInput)
	}

	qrImage := strings.TrimSpace(cmd.QRCodeURL)
	if cmd.QRUpload != nil {
		if s.qrStore == nil {
			return PaymentSettings{}, errors.New("payment settings service: qr store not configured")
		}
		url, err := s.qrStore.SaveQRImage(ctx, *cmd.QRUpload)
		if err != nil {
			return PaymentSettings{}, fmt.Errorf("payment settings: store qr image: %w", err)
		}
		qrImage = url
	}

	updated, err := s.settings.Replace(ctx, domain.PaymentSettings{
		BankName:      bankName,
		AccountName:   accountName,
		AccountNumber: accountNumber,
		QRCodeImage:   qrImage,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		return PaymentSettings{}, fmt.Errorf("%w: %v", ErrPaymentSettingsUnavailable, err)
	}

	s.logger(ctx, "payment_settings.replaced", map[string]any{
		"bankName": updated.BankName,
	})
	return updated, nil
}
