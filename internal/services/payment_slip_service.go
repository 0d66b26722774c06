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

const (
	maxPaymentSlipBytes = 5 << 20

	orderEventSlipUploaded = "order.payment_slip_uploaded"

	slipDownloadURLExpiry = 5 * time.Minute
)

var (
	// ErrPaymentSlipUnauthorized indicates no authenticated identity was supplied.
	ErrPaymentSlipUnauthorized = errors.New("payment slip: unauthorized")
	// ErrPaymentSlipInvalidFile indicates the upload is missing, oversized, or of an unsupported type.
	ErrPaymentSlipInvalidFile = errors.New("payment slip: invalid file")
	// ErrPaymentSlipMissing indicates the order has no slip attached yet.
	ErrPaymentSlipMissing = errors.New("payment slip: not uploaded")
)

var allowedSlipContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// PaymentSlipServiceDeps wires the dependencies for the slip intake service.
type PaymentSlipServiceDeps struct {
	Orders repositories.OrderRepository
	Store  SlipObjectStore
	Signer SlipURLSigner
	Events OrderEventPublisher
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type paymentSlipService struct {
	orders repositories.OrderRepository
	store  SlipObjectStore
	signer SlipURLSigner
	events OrderEventPublisher
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewPaymentSlipService constructs a PaymentSlipService validating required dependencies.
func NewPaymentSlipService(deps PaymentSlipServiceDeps) (PaymentSlipService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment slip service: order repository is required")
	}
	if deps.Store == nil {
		return nil, errors.New("payment slip service: object store is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentSlipService{
		orders: deps.Orders,
		store:  deps.Store,
		signer: deps.Signer,
		events: deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// UploadPaymentSlip validates the upload against the order's state, stores the
// image, attaches it to the order, and advances pending orders to
// waiting_payment. Re-uploading while already waiting_payment replaces the
// slip without a further transition. All checks run before the file is
// written anywhere.
func (s *paymentSlipService) UploadPaymentSlip(ctx context.Context, cmd UploadPaymentSlipCommand) (Order, error) {
	actor := strings.TrimSpace(cmd.ActorID)
	if actor == "" {
		return Order{}, ErrPaymentSlipUnauthorized
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	// Guest orders carry no user id, so any authenticated holder of the
	// order id may submit the slip.
	if !cmd.IsAdmin && order.UserID != "" && order.UserID != actor {
		return Order{}, fmt.Errorf("%w: order belongs to another user", ErrOrderForbidden)
	}

	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusWaitingPayment {
		return Order{}, fmt.Errorf("%w: slips cannot be attached while order is %q", ErrOrderInvalidState, order.Status)
	}

	if err := validateSlipUpload(cmd.File); err != nil {
		return Order{}, err
	}

	url, err := s.store.SavePaymentSlip(ctx, order.ID, cmd.File)
	if err != nil {
		return Order{}, fmt.Errorf("payment slip: store upload: %w", err)
	}

	now := s.now()
	prev := order.Status
	order.PaymentSlip = &domain.PaymentSlip{
		URL:        url,
		UploadedAt: now,
	}
	if order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusWaitingPayment
	}
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventSlipUploaded,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: prev,
		CurrentStatus:  order.Status,
		ActorID:        actor,
		OccurredAt:     now,
		Metadata: map[string]any{
			"slipUrl": url,
		},
	})

	return order, nil
}

// SlipDownloadURL issues a short-lived link to the stored slip object. Owners
// and back-office staff may fetch it; the object itself is never public.
func (s *paymentSlipService) SlipDownloadURL(ctx context.Context, cmd SlipDownloadCommand) (SlipLink, error) {
	actor := strings.TrimSpace(cmd.ActorID)
	if actor == "" {
		return SlipLink{}, ErrPaymentSlipUnauthorized
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return SlipLink{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if s.signer == nil {
		return SlipLink{}, errors.New("payment slip: url signer is not configured")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return SlipLink{}, s.mapRepositoryError(err)
	}
	if !cmd.IsAdmin && order.UserID != "" && order.UserID != actor {
		return SlipLink{}, fmt.Errorf("%w: order belongs to another user", ErrOrderForbidden)
	}
	if order.PaymentSlip == nil || strings.TrimSpace(order.PaymentSlip.URL) == "" {
		return SlipLink{}, ErrPaymentSlipMissing
	}

	link, err := s.signer.SignSlipURL(ctx, order.PaymentSlip.URL, slipDownloadURLExpiry)
	if err != nil {
		return SlipLink{}, fmt.Errorf("payment slip: sign download url: %w", err)
	}
	return link, nil
}

func (s *paymentSlipService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "payment_slip.event_publish_failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *paymentSlipService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment slip: repository unavailable: %w", err)
		}
	}
	return err
}

func validateSlipUpload(file FileUpload) error {
	if file.Content == nil || file.Size <= 0 {
		return fmt.Errorf("%w: no file was uploaded", ErrPaymentSlipInvalidFile)
	}
	if file.Size > maxPaymentSlipBytes {
		return fmt.Errorf("%w: file exceeds the 5MB limit", ErrPaymentSlipInvalidFile)
	}
	contentType := strings.ToLower(strings.TrimSpace(file.ContentType))
	if _, ok := allowedSlipContentTypes[contentType]; !ok {
		return fmt.Errorf("%w: only JPEG, PNG, and WEBP images are accepted", ErrPaymentSlipInvalidFile)
	}
	return nil
}
