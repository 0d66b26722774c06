package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/repositories"
)

type stubUnitOfWork struct {
	runFn func(context.Context, func(context.Context) error) error
	calls int
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.calls++
	if s.runFn != nil {
		return s.runFn(ctx, fn)
	}
	return fn(ctx)
}

func pendingOrder() domain.Order {
	return domain.Order{
		ID:          "ord_01",
		OrderNumber: "ORD-2026-4821",
		UserID:      "user-1",
		Status:      domain.OrderStatusPending,
		TotalAmount: 657,
	}
}

func TestOrderServiceGetOrderOwner(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			if orderID != "ord_01" {
				t.Fatalf("unexpected order id %s", orderID)
			}
			return pendingOrder(), nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	order, err := svc.GetOrder(context.Background(), "ord_01", OrderReadOptions{ActorID: "user-1"})
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.OrderNumber != "ORD-2026-4821" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestOrderServiceGetOrderForbiddenForStranger(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), "ord_01", OrderReadOptions{ActorID: "user-2"}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), "ord_01", OrderReadOptions{ActorID: "staff-1", IsAdmin: true}); err != nil {
		t.Fatalf("admin read should pass, got %v", err)
	}
}

func TestOrderServiceGetOrderNotFound(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return domain.Order{}, &fakeRepoError{msg: "missing", notFound: true}
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), "ord_x", OrderReadOptions{ActorID: "user-1"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceListOrdersPassesFilter(t *testing.T) {
	var captured repositories.OrderListFilter
	repo := &stubOrderRepo{
		listFn: func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			captured = filter
			return domain.CursorPage[domain.Order]{Items: []domain.Order{pendingOrder()}, NextPageToken: "next"}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	page, err := svc.ListOrders(context.Background(), OrderListFilter{
		UserID: " user-1 ",
		Status: []domain.OrderStatus{domain.OrderStatusPending},
		Search: " somchai ",
	})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if captured.UserID != "user-1" || captured.Search != "somchai" {
		t.Fatalf("filter not trimmed: %+v", captured)
	}
	if len(page.Items) != 1 || page.NextPageToken != "next" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestOrderServiceCancelPendingOrder(t *testing.T) {
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	var updated domain.Order
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return pendingOrder(), nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	events := &captureOrderEvents{}
	unit := &stubUnitOfWork{}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:     repo,
		Events:     events,
		UnitOfWork: unit,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	order, err := svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_01", ActorID: "user-1"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %q", order.Status)
	}
	if updated.Status != domain.OrderStatusCancelled || !updated.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected persisted state %+v", updated)
	}
	if unit.calls != 1 {
		t.Fatalf("expected cancellation inside a transaction, got %d calls", unit.calls)
	}
	if len(events.events) != 1 || events.events[0].CurrentStatus != domain.OrderStatusCancelled {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestOrderServiceCancelRejectsNonPending(t *testing.T) {
	order := pendingOrder()
	order.Status = domain.OrderStatusWaitingPayment
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return order, nil
		},
		updateFn: func(context.Context, domain.Order) error {
			t.Fatal("update must not run")
			return nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_01", ActorID: "user-1"}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestOrderServiceCancelGuestOrderRequiresAdmin(t *testing.T) {
	order := pendingOrder()
	order.UserID = ""
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return order, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_01", ActorID: "user-1"}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for guest order, got %v", err)
	}
	if _, err := svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_01", ActorID: "admin-1", IsAdmin: true}); err != nil {
		t.Fatalf("admin cancel should pass, got %v", err)
	}
}

func TestOrderServiceAdminUpdateStatus(t *testing.T) {
	var updated domain.Order
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			order := pendingOrder()
			order.Status = domain.OrderStatusWaitingPayment
			return order, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	events := &captureOrderEvents{}
	var logged []string
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: repo,
		Events: events,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	status := domain.OrderStatusProcessing
	order, err := svc.AdminUpdate(context.Background(), AdminOrderUpdateCommand{
		OrderID: "ord_01",
		ActorID: "admin-1",
		Status:  &status,
	})
	if err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing || updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("status not applied: %q / %q", order.Status, updated.Status)
	}
	if len(logged) != 1 || logged[0] != "order.admin_status_change" {
		t.Fatalf("expected forward transition log, got %v", logged)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one event, got %+v", events.events)
	}
}

func TestOrderServiceAdminUpdateLogsOverride(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			order := pendingOrder()
			order.Status = domain.OrderStatusDelivered
			return order, nil
		},
	}
	var logged []string
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: repo,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	status := domain.OrderStatusPending
	if _, err := svc.AdminUpdate(context.Background(), AdminOrderUpdateCommand{OrderID: "ord_01", Status: &status}); err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if len(logged) != 1 || logged[0] != "order.admin_status_override" {
		t.Fatalf("expected override log, got %v", logged)
	}
}

func TestOrderServiceAdminUpdatePaymentInfoOnly(t *testing.T) {
	var updated domain.Order
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return pendingOrder(), nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	events := &captureOrderEvents{}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo, Events: events})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	info := domain.PaymentSnapshot{BankName: "SCB", AccountName: "Shop", AccountNumber: "111-222"}
	order, err := svc.AdminUpdate(context.Background(), AdminOrderUpdateCommand{OrderID: "ord_01", PaymentInfo: &info})
	if err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if order.PaymentInfo.BankName != "SCB" || updated.PaymentInfo.AccountNumber != "111-222" {
		t.Fatalf("payment info not applied: %+v", updated.PaymentInfo)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status must be untouched, got %q", order.Status)
	}
	if len(events.events) != 0 {
		t.Fatalf("no status event expected, got %+v", events.events)
	}
}

func TestOrderServiceAdminUpdateValidation(t *testing.T) {
	svc, err := NewOrderService(OrderServiceDeps{Orders: &stubOrderRepo{}})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.AdminUpdate(context.Background(), AdminOrderUpdateCommand{OrderID: "ord_01"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for empty patch, got %v", err)
	}

	bogus := domain.OrderStatus("teleported")
	if _, err := svc.AdminUpdate(context.Background(), AdminOrderUpdateCommand{OrderID: "ord_01", Status: &bogus}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for unknown status, got %v", err)
	}

	info := domain.PaymentSnapshot{BankName: "SCB"}
	if _, err := svc.AdminUpdate(context.Background(), AdminOrderUpdateCommand{OrderID: "ord_01", PaymentInfo: &info}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for partial payment info, got %v", err)
	}
}

func TestOrderServiceConflictOnUpdate(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return pendingOrder(), nil
		},
		updateFn: func(context.Context, domain.Order) error {
			return &fakeRepoError{msg: "version clash", conflict: true}
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_01", ActorID: "user-1"}); !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
}

func TestOrderServiceStatsAggregates(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	deliveredAug := domain.Order{
		ID: "ord_02", OrderNumber: "ORD-2026-4822",
		Status:      domain.OrderStatusDelivered,
		TotalAmount: 657, ShippingCost: 70,
		CreatedAt: time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC),
	}
	deliveredJul := domain.Order{
		ID: "ord_03", OrderNumber: "ORD-2026-4823",
		Status:      domain.OrderStatusDelivered,
		TotalAmount: 200, ShippingCost: 50,
		CreatedAt: time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC),
	}
	deliveredOld := domain.Order{
		ID: "ord_04", OrderNumber: "ORD-2025-1001",
		Status:      domain.OrderStatusDelivered,
		TotalAmount: 1000, ShippingCost: 0,
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	waiting := domain.Order{
		ID: "ord_05", Status: domain.OrderStatusWaitingPayment,
		CreatedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	cancelled := domain.Order{
		ID: "ord_06", Status: domain.OrderStatusCancelled,
		CreatedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}

	first := pendingOrder()
	first.CreatedAt = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	var tokens []string
	repo := &stubOrderRepo{
		listFn: func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			tokens = append(tokens, filter.Pagination.PageToken)
			if filter.Pagination.PageSize != 200 {
				t.Fatalf("unexpected page size %d", filter.Pagination.PageSize)
			}
			if filter.Pagination.PageToken == "" {
				return domain.CursorPage[domain.Order]{
					Items:         []domain.Order{first, waiting, deliveredAug, cancelled, deliveredJul},
					NextPageToken: "page-2",
				}, nil
			}
			return domain.CursorPage[domain.Order]{Items: []domain.Order{deliveredOld}}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo, Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.TotalOrders != 6 {
		t.Fatalf("expected 6 orders, got %d", stats.TotalOrders)
	}
	if len(tokens) != 2 || tokens[1] != "page-2" {
		t.Fatalf("expected token continuation, got %v", tokens)
	}
	if len(stats.StatusCounts) != 6 {
		t.Fatalf("expected every status keyed, got %v", stats.StatusCounts)
	}
	if stats.StatusCounts[domain.OrderStatusDelivered] != 3 || stats.StatusCounts[domain.OrderStatusProcessing] != 0 {
		t.Fatalf("unexpected status counts %v", stats.StatusCounts)
	}
	if stats.TotalRevenue != 727+250+1000 {
		t.Fatalf("expected revenue 1977, got %d", stats.TotalRevenue)
	}

	if len(stats.MonthlyRevenue) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %+v", stats.MonthlyRevenue)
	}
	if stats.MonthlyRevenue[0].Month != time.July || stats.MonthlyRevenue[0].Revenue != 250 {
		t.Fatalf("unexpected first bucket %+v", stats.MonthlyRevenue[0])
	}
	if stats.MonthlyRevenue[1].Month != time.August || stats.MonthlyRevenue[1].Revenue != 727 || stats.MonthlyRevenue[1].Count != 1 {
		t.Fatalf("unexpected second bucket %+v", stats.MonthlyRevenue[1])
	}

	if len(stats.RecentOrders) != 5 || stats.RecentOrders[0].ID != "ord_01" {
		t.Fatalf("expected the five newest orders, got %d", len(stats.RecentOrders))
	}
}

func TestOrderServiceStatsRepositoryFailure(t *testing.T) {
	repo := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{}, &fakeRepoError{msg: "deadline", unavailable: true}
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.Stats(context.Background()); err == nil {
		t.Fatal("expected repository failure to surface")
	}
}
