package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/repositories"
)

const (
	orderEventStatusChanged = "order.status_changed"

	statsPageSize    = 200
	statsRecentLimit = 5
	// The dashboard window approximates six months the way the storefront
	// always has.
	statsMonthWindow = 6 * 30 * 24 * time.Hour
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the acting identity may not touch this order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates a status transition the state machine forbids.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent modification conflicts.
	ErrOrderConflict = errors.New("order: conflict")
)

// orderForwardTransitions is the normal lifecycle. Admin edits may leave it,
// but such overrides are logged separately so operators can audit them.
var orderForwardTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusWaitingPayment, domain.OrderStatusCancelled},
	domain.OrderStatusWaitingPayment: {domain.OrderStatusProcessing},
	domain.OrderStatusProcessing:     {domain.OrderStatusShipped},
	domain.OrderStatusShipped:        {domain.OrderStatusDelivered},
}

func isForwardTransition(from, to domain.OrderStatus) bool {
	return slices.Contains(orderForwardTransitions[from], to)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Events     OrderEventPublisher
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	events     OrderEventPublisher
	unitOfWork repositories.UnitOfWork
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		events:     deps.Events,
		unitOfWork: unit,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     strings.TrimSpace(filter.UserID),
		Status:     filter.Status,
		Search:     strings.TrimSpace(filter.Search),
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !opts.IsAdmin && order.UserID != strings.TrimSpace(opts.ActorID) {
		return Order{}, fmt.Errorf("%w: order belongs to another user", ErrOrderForbidden)
	}
	return order, nil
}

// Cancel performs the customer-side cancellation. It is only legal while the
// order is still exactly pending; every other status is rejected. Guest
// orders carry no user id, so only admins can act on them.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var (
		order domain.Order
		prev  domain.OrderStatus
		now   time.Time
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		found, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		if !cmd.IsAdmin {
			actor := strings.TrimSpace(cmd.ActorID)
			if found.UserID == "" || found.UserID != actor {
				return fmt.Errorf("%w: only the owner may cancel this order", ErrOrderForbidden)
			}
		}
		if found.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, found.Status)
		}

		now = s.now()
		prev = found.Status
		found.Status = domain.OrderStatusCancelled
		found.UpdatedAt = now

		if err := s.orders.Update(ctx, found); err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderForbidden) || errors.Is(err, ErrOrderInvalidState) {
			return Order{}, err
		}
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: prev,
		CurrentStatus:  order.Status,
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})

	return order, nil
}

// AdminUpdate patches status and/or the payment snapshot. The status change
// is a total function: any of the known statuses is accepted from any state.
// Transitions that leave the forward lifecycle are logged as overrides so the
// flexibility stays observable.
func (s *orderService) AdminUpdate(ctx context.Context, cmd AdminOrderUpdateCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Status == nil && cmd.PaymentInfo == nil {
		return Order{}, fmt.Errorf("%w: nothing to update", ErrOrderInvalidInput)
	}
	if cmd.Status != nil && !domain.IsValidOrderStatus(*cmd.Status) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, *cmd.Status)
	}
	if cmd.PaymentInfo != nil {
		if err := validatePaymentSnapshot(*cmd.PaymentInfo); err != nil {
			return Order{}, err
		}
	}

	var (
		order         domain.Order
		prev          domain.OrderStatus
		now           time.Time
		statusChanged bool
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		found, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		now = s.now()
		prev = found.Status
		statusChanged = false

		if cmd.Status != nil && *cmd.Status != found.Status {
			found.Status = *cmd.Status
			statusChanged = true
		}
		if cmd.PaymentInfo != nil {
			found.PaymentInfo = *cmd.PaymentInfo
		}
		found.UpdatedAt = now

		if err := s.orders.Update(ctx, found); err != nil {
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if statusChanged {
		event := "order.admin_status_change"
		if !isForwardTransition(prev, order.Status) {
			event = "order.admin_status_override"
		}
		s.logger(ctx, event, map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"from":        string(prev),
			"to":          string(order.Status),
			"actorId":     strings.TrimSpace(cmd.ActorID),
		})
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: prev,
			CurrentStatus:  order.Status,
			ActorID:        cmd.ActorID,
			OccurredAt:     now,
		})
	}

	return order, nil
}

// Stats walks the full order collection and aggregates the dashboard
// numbers. Listings return newest first, so the opening page carries the
// recent orders.
func (s *orderService) Stats(ctx context.Context) (OrderStats, error) {
	stats := OrderStats{StatusCounts: make(map[domain.OrderStatus]int)}
	for _, status := range domain.OrderStatuses() {
		stats.StatusCounts[status] = 0
	}

	cutoff := s.now().Add(-statsMonthWindow)
	monthly := make(map[[2]int]*MonthlyRevenue)

	token := ""
	for {
		page, err := s.orders.List(ctx, repositories.OrderListFilter{
			Pagination: domain.Pagination{PageSize: statsPageSize, PageToken: token},
		})
		if err != nil {
			return OrderStats{}, s.mapRepositoryError(err)
		}

		for _, order := range page.Items {
			stats.TotalOrders++
			stats.StatusCounts[order.Status]++
			if len(stats.RecentOrders) < statsRecentLimit {
				stats.RecentOrders = append(stats.RecentOrders, order)
			}
			if order.Status != domain.OrderStatusDelivered {
				continue
			}

			revenue := order.GrandTotal()
			stats.TotalRevenue += revenue
			if order.CreatedAt.Before(cutoff) {
				continue
			}
			key := [2]int{order.CreatedAt.Year(), int(order.CreatedAt.Month())}
			bucket := monthly[key]
			if bucket == nil {
				bucket = &MonthlyRevenue{Year: key[0], Month: order.CreatedAt.Month()}
				monthly[key] = bucket
			}
			bucket.Revenue += revenue
			bucket.Count++
		}

		token = page.NextPageToken
		if token == "" {
			break
		}
	}

	stats.MonthlyRevenue = make([]MonthlyRevenue, 0, len(monthly))
	for _, bucket := range monthly {
		stats.MonthlyRevenue = append(stats.MonthlyRevenue, *bucket)
	}
	slices.SortFunc(stats.MonthlyRevenue, func(a, b MonthlyRevenue) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return int(a.Month) - int(b.Month)
	})

	return stats, nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
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
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func validatePaymentSnapshot(info PaymentSnapshot) error {
	switch {
	case strings.TrimSpace(info.BankName) == "":
		return fmt.Errorf("%w: bank name is required", ErrOrderInvalidInput)
	case strings.TrimSpace(info.AccountName) == "":
		return fmt.Errorf("%w: account name is required", ErrOrderInvalidInput)
	case strings.TrimSpace(info.AccountNumber) == "":
		return fmt.Errorf("%w: account number is required", ErrOrderInvalidInput)
	}
	return nil
}
