package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/repositories"
)

// Shared stubs for the order-centric service tests in this package.

type stubOrderRepo struct {
	insertFn func(ctx context.Context, order domain.Order) error
	updateFn func(ctx context.Context, order domain.Order) error
	findFn   func(ctx context.Context, orderID string) (domain.Order, error)
	listFn   func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, errors.New("not implemented")
}

type stubSettingsService struct {
	settings domain.PaymentSettings
	err      error
}

func (s *stubSettingsService) GetSettings(context.Context) (PaymentSettings, error) {
	if s.err != nil {
		return PaymentSettings{}, s.err
	}
	return s.settings, nil
}

func (s *stubSettingsService) ReplaceSettings(context.Context, ReplacePaymentSettingsCommand) (PaymentSettings, error) {
	return PaymentSettings{}, errors.New("not implemented")
}

type captureOrderEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

func validCheckoutCommand() PlaceOrderCommand {
	return PlaceOrderCommand{
		UserID: "user-1",
		CustomerInfo: CustomerInfo{
			FirstName: "Somchai",
			LastName:  "Jaidee",
			Email:     "somchai@example.com",
			Phone:     "0812345678",
			Address:   "99 Sukhumvit Rd, Bangkok",
			Note:      "leave at the gate",
		},
		Items: []OrderItem{
			{ProductID: "polo-classic", ProductName: "Classic Polo", UnitPrice: 219, Quantity: 2, Size: "L"},
			{ProductID: "polo-mono", ProductName: "Monochrome Polo", UnitPrice: 219, Quantity: 1, Size: "M"},
		},
		ShippingMethod: domain.ShippingMethodMail,
	}
}

func TestCheckoutPlaceOrderSuccess(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	var inserted domain.Order
	events := &captureOrderEvents{}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders: &stubOrderRepo{
			insertFn: func(_ context.Context, order domain.Order) error {
				inserted = order
				return nil
			},
		},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
		Events:   events,
		Clock:    func() time.Time { return now },
		IDGenerator: func() string { return "ord_01" },
		NumberRand:  func() int { return 4821 },
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	order, err := svc.PlaceOrder(ctx, validCheckoutCommand())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if order.ID != "ord_01" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if order.OrderNumber != "ORD-2026-4821" {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %q", order.Status)
	}
	if order.TotalAmount != 657 {
		t.Fatalf("expected subtotal 657, got %d", order.TotalAmount)
	}
	if order.ShippingCost != 70 {
		t.Fatalf("expected shipping 70, got %d", order.ShippingCost)
	}
	if order.GrandTotal() != 727 {
		t.Fatalf("expected grand total 727, got %d", order.GrandTotal())
	}
	if order.PaymentInfo.BankName != "ธนาคารกสิกรไทย" {
		t.Fatalf("expected payment snapshot, got %+v", order.PaymentInfo)
	}
	if inserted.ID != order.ID {
		t.Fatalf("expected order persisted before return")
	}
	if len(events.events) != 1 || events.events[0].Type != "order.created" {
		t.Fatalf("expected order.created event, got %+v", events.events)
	}
}

func TestCheckoutPlaceOrderPickupIsFree(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	cmd := validCheckoutCommand()
	cmd.ShippingMethod = domain.ShippingMethodPickup

	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.ShippingCost != 0 {
		t.Fatalf("expected free pickup, got %d", order.ShippingCost)
	}
	if order.GrandTotal() != 657 {
		t.Fatalf("expected grand total 657, got %d", order.GrandTotal())
	}
}

func TestCheckoutPlaceOrderValidation(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders: &stubOrderRepo{
			insertFn: func(context.Context, domain.Order) error {
				t.Fatal("insert must not run for invalid input")
				return nil
			},
		},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PlaceOrderCommand)
	}{
		{"no items", func(cmd *PlaceOrderCommand) { cmd.Items = nil }},
		{"zero quantity", func(cmd *PlaceOrderCommand) { cmd.Items[0].Quantity = 0 }},
		{"negative price", func(cmd *PlaceOrderCommand) { cmd.Items[0].UnitPrice = -1 }},
		{"missing first name", func(cmd *PlaceOrderCommand) { cmd.CustomerInfo.FirstName = "  " }},
		{"missing phone", func(cmd *PlaceOrderCommand) { cmd.CustomerInfo.Phone = "" }},
		{"bad email", func(cmd *PlaceOrderCommand) { cmd.CustomerInfo.Email = "not-an-email" }},
		{"bad shipping method", func(cmd *PlaceOrderCommand) { cmd.ShippingMethod = "drone" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validCheckoutCommand()
			tc.mutate(&cmd)
			if _, err := svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
				t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
			}
		})
	}
}

func TestCheckoutPlaceOrderSanitizesNote(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	cmd := validCheckoutCommand()
	cmd.CustomerInfo.Note = `<script>alert("x")</script> ring twice`

	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if strings.Contains(order.CustomerInfo.Note, "<script>") {
		t.Fatalf("note not sanitised: %q", order.CustomerInfo.Note)
	}
	if !strings.Contains(order.CustomerInfo.Note, "ring twice") {
		t.Fatalf("note content lost: %q", order.CustomerInfo.Note)
	}
}

func TestCheckoutPlaceOrderGuest(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	cmd := validCheckoutCommand()
	cmd.UserID = ""

	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.UserID != "" {
		t.Fatalf("guest order should carry no user id, got %q", order.UserID)
	}
}

func TestCheckoutPlaceOrderPersistFailure(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders: &stubOrderRepo{
			insertFn: func(context.Context, domain.Order) error {
				return &fakeRepoError{msg: "firestore down", unavailable: true}
			},
		},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	if _, err := svc.PlaceOrder(context.Background(), validCheckoutCommand()); !errors.Is(err, ErrCheckoutUnavailable) {
		t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
	}
}

func TestCheckoutPlaceOrderSettingsFailure(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Settings: &stubSettingsService{err: errors.New("backend down")},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	if _, err := svc.PlaceOrder(context.Background(), validCheckoutCommand()); !errors.Is(err, ErrCheckoutUnavailable) {
		t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
	}
}

func TestCheckoutPlaceOrderEventFailureIsNonFatal(t *testing.T) {
	var logged []string
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:   &stubOrderRepo{},
		Settings: &stubSettingsService{settings: domain.DefaultPaymentSettings()},
		Events:   &captureOrderEvents{err: errors.New("topic gone")},
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	if _, err := svc.PlaceOrder(context.Background(), validCheckoutCommand()); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	found := false
	for _, event := range logged {
		if event == "checkout.event_publish_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected publish failure to be logged, got %v", logged)
	}
}
