package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/platform/textutil"
	"github.com/polo-atelier/api/internal/repositories"
)

const (
	orderIDPrefix = "ord_"

	orderEventCreated = "order.created"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied an invalid checkout request.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders   repositories.OrderRepository
	Settings PaymentSettingsService
	Events   OrderEventPublisher
	Clock    func() time.Time
	// IDGenerator returns new order document ids.
	IDGenerator func() string
	// NumberRand returns the random 4-digit suffix for order numbers.
	NumberRand func() int
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders     repositories.OrderRepository
	settings   PaymentSettingsService
	events     OrderEventPublisher
	now        func() time.Time
	newID      func() string
	numberRand func() int
	logger     func(context.Context, string, map[string]any)
	sanitizer  *bluemonday.Policy
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("checkout service: payment settings service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return orderIDPrefix + ulid.Make().String()
		}
	}
	numberRand := deps.NumberRand
	if numberRand == nil {
		numberRand = func() int {
			return 1000 + rand.IntN(9000)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:   deps.Orders,
		settings: deps.Settings,
		events:   deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		numberRand: numberRand,
		logger:     logger,
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

// PlaceOrder validates the checkout request, computes totals and shipping,
// snapshots the current payment settings, and persists the order in the
// pending state. Validation runs to completion before any write. Stock is
// never touched; the ledger is advisory.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}

	items, err := normalizeItems(cmd.Items)
	if err != nil {
		return Order{}, err
	}
	customer, err := s.normalizeCustomer(cmd.CustomerInfo)
	if err != nil {
		return Order{}, err
	}
	if !domain.IsValidShippingMethod(cmd.ShippingMethod) {
		return Order{}, fmt.Errorf("%w: shipping method must be %q or %q", ErrCheckoutInvalidInput, domain.ShippingMethodMail, domain.ShippingMethodPickup)
	}

	totals := domain.ComputeTotals(items, cmd.ShippingMethod)

	snapshot, err := s.paymentSnapshot(ctx)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:             s.newID(),
		OrderNumber:    s.generateOrderNumber(now),
		UserID:         strings.TrimSpace(cmd.UserID),
		CustomerInfo:   customer,
		Items:          items,
		TotalAmount:    totals.Subtotal,
		ShippingCost:   totals.Shipping,
		ShippingMethod: cmd.ShippingMethod,
		Status:         domain.OrderStatusPending,
		PaymentInfo:    snapshot,
		OrderDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			s.logger(ctx, "checkout.persist_failed", map[string]any{
				"orderNumber": order.OrderNumber,
				"error":       err.Error(),
			})
		}
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: order.Status,
		ActorID:       order.UserID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"totalAmount":    order.TotalAmount,
			"shippingCost":   order.ShippingCost,
			"shippingMethod": string(order.ShippingMethod),
		},
	})

	return order, nil
}

// generateOrderNumber builds ORD-<year>-<4 digits>. The suffix is random and
// never checked for collisions; the space is assumed sparse enough per year.
func (s *checkoutService) generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%04d-%04d", now.Year(), s.numberRand())
}

func (s *checkoutService) paymentSnapshot(ctx context.Context) (PaymentSnapshot, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return PaymentSnapshot{}, fmt.Errorf("%w: payment settings unavailable: %v", ErrCheckoutUnavailable, err)
	}
	return PaymentSnapshot{
		BankName:      settings.BankName,
		AccountName:   settings.AccountName,
		AccountNumber: settings.AccountNumber,
		QRCodeImage:   settings.QRCodeImage,
	}, nil
}

func (s *checkoutService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func normalizeItems(items []OrderItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrCheckoutInvalidInput)
	}
	normalized := make([]OrderItem, 0, len(items))
	for i, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.ProductName = textutil.CleanText(item.ProductName)
		item.ProductDescription = textutil.CleanText(item.ProductDescription)
		item.Size = strings.TrimSpace(item.Size)
		item.ImageURL = strings.TrimSpace(item.ImageURL)
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d quantity must be at least 1", ErrCheckoutInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %d price must not be negative", ErrCheckoutInvalidInput, i)
		}
		normalized = append(normalized, item)
	}
	return normalized, nil
}

func (s *checkoutService) normalizeCustomer(info CustomerInfo) (CustomerInfo, error) {
	info.FirstName = textutil.CleanText(info.FirstName)
	info.LastName = textutil.CleanText(info.LastName)
	info.Email = strings.TrimSpace(info.Email)
	info.Phone = strings.TrimSpace(info.Phone)
	info.Address = textutil.CleanText(info.Address)
	info.Note = textutil.CleanText(s.sanitizer.Sanitize(info.Note))

	switch {
	case info.FirstName == "":
		return CustomerInfo{}, fmt.Errorf("%w: first name is required", ErrCheckoutInvalidInput)
	case info.LastName == "":
		return CustomerInfo{}, fmt.Errorf("%w: last name is required", ErrCheckoutInvalidInput)
	case info.Email == "":
		return CustomerInfo{}, fmt.Errorf("%w: email is required", ErrCheckoutInvalidInput)
	case info.Phone == "":
		return CustomerInfo{}, fmt.Errorf("%w: phone is required", ErrCheckoutInvalidInput)
	case info.Address == "":
		return CustomerInfo{}, fmt.Errorf("%w: address is required", ErrCheckoutInvalidInput)
	}
	if !emailPattern.MatchString(info.Email) {
		return CustomerInfo{}, fmt.Errorf("%w: email is invalid", ErrCheckoutInvalidInput)
	}
	return info, nil
}
