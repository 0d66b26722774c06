package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	pfirestore "github.com/polo-atelier/api/internal/platform/firestore"
	"github.com/polo-atelier/api/internal/repositories"
)

const (
	settingsCollection = "settings"
	// The payment settings singleton lives under a fixed document id so
	// replace is a plain upsert and reads never need a query.
	paymentSettingsDocID = "payment"
)

type paymentSettingsDocument struct {
	BankName      string    `firestore:"bankName"`
	AccountName   string    `firestore:"accountName"`
	AccountNumber string    `firestore:"accountNumber"`
	QRCodeImage   string    `firestore:"qrCodeImage,omitempty"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

// PaymentSettingsRepository implements repositories.PaymentSettingsRepository backed by Firestore.
type PaymentSettingsRepository struct {
	provider *pfirestore.Provider
	settings *pfirestore.BaseRepository[paymentSettingsDocument]
	now      func() time.Time
}

var _ repositories.PaymentSettingsRepository = (*PaymentSettingsRepository)(nil)

// NewPaymentSettingsRepository constructs a Firestore-backed settings repository.
func NewPaymentSettingsRepository(provider *pfirestore.Provider) (*PaymentSettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("payment settings repository requires firestore provider")
	}
	return &PaymentSettingsRepository{
		provider: provider,
		settings: pfirestore.NewBaseRepository[paymentSettingsDocument](provider, settingsCollection, nil, nil),
		now:      time.Now,
	}, nil
}

// Get returns the persisted singleton. Absence surfaces as a repository
// not-found error which the service maps onto its fallback.
func (r *PaymentSettingsRepository) Get(ctx context.Context) (domain.PaymentSettings, error) {
	if r == nil || r.provider == nil {
		return domain.PaymentSettings{}, errors.New("payment settings repository not initialised")
	}
	doc, err := r.settings.Get(ctx, paymentSettingsDocID)
	if err != nil {
		return domain.PaymentSettings{}, err
	}
	return domain.PaymentSettings{
		BankName:      doc.Data.BankName,
		AccountName:   doc.Data.AccountName,
		AccountNumber: doc.Data.AccountNumber,
		QRCodeImage:   doc.Data.QRCodeImage,
		UpdatedAt:     doc.Data.UpdatedAt,
	}, nil
}

// Replace upserts the singleton document wholesale.
func (r *PaymentSettingsRepository) Replace(ctx context.Context, settings domain.PaymentSettings) (domain.PaymentSettings, error) {
	if r == nil || r.provider == nil {
		return domain.PaymentSettings{}, errors.New("payment settings repository not initialised")
	}
	now := r.now().UTC()
	doc := paymentSettingsDocument{
		BankName:      settings.BankName,
		AccountName:   settings.AccountName,
		AccountNumber: settings.AccountNumber,
		QRCodeImage:   settings.QRCodeImage,
		UpdatedAt:     now,
	}
	if _, err := r.settings.Set(ctx, paymentSettingsDocID, doc); err != nil {
		return domain.PaymentSettings{}, err
	}
	settings.UpdatedAt = now
	return settings, nil
}
