package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/platform/auth"
	"github.com/polo-atelier/api/internal/platform/httpx"
	"github.com/polo-atelier/api/internal/services"
)

const maxAdminOrderBodySize = 64 * 1024

// AdminOrderHandlers exposes the back-office order listing and correction endpoints.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	slips  services.PaymentSlipService
}

// NewAdminOrderHandlers constructs admin order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, slips services.PaymentSlipService) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders, slips: slips}
}

// Routes registers the /admin/orders endpoints. Staff may read; status and
// payment-info edits require the admin role.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/orders", func(rt chi.Router) {
		rt.Group(func(g chi.Router) {
			if h.authn != nil {
				g.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
			}
			g.Get("/", h.listOrders)
			g.Get("/stats", h.orderStats)
			g.Get("/{orderID}", h.getOrder)
			g.Get("/{orderID}/payment-slip-url", h.slipDownloadURL)
		})
		rt.Group(func(g chi.Router) {
			if h.authn != nil {
				g.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
			}
			g.Patch("/{orderID}", h.updateOrder)
		})
	})
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	statuses, err := parseOrderStatusFilters(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	pageSize, err := parsePageSizeParam(query.Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		Status: statuses,
		Search: strings.TrimSpace(query.Get("search")),
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *AdminOrderHandlers) orderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.orders.Stats(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderStatsPayload(stats))
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"), services.OrderReadOptions{
		ActorID: identity.UID,
		IsAdmin: true,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxAdminOrderBodySize)
	if err != nil {
		writeBodyReadError(ctx, w, err)
		return
	}

	var req adminOrderUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	if req.Status == nil && req.PaymentInfo == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status or paymentInfo is required", http.StatusBadRequest))
		return
	}

	cmd := services.AdminOrderUpdateCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
	}
	if req.Status != nil {
		status := domain.OrderStatus(strings.TrimSpace(*req.Status))
		cmd.Status = &status
	}
	if req.PaymentInfo != nil {
		cmd.PaymentInfo = &domain.PaymentSnapshot{
			BankName:      req.PaymentInfo.BankName,
			AccountName:   req.PaymentInfo.AccountName,
			AccountNumber: req.PaymentInfo.AccountNumber,
			QRCodeImage:   req.PaymentInfo.QRCodeImage,
		}
	}

	order, err := h.orders.AdminUpdate(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) slipDownloadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.slips == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "payment slip service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	link, err := h.slips.SlipDownloadURL(ctx, services.SlipDownloadCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		IsAdmin: true,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, slipLinkResponse{
		URL:       link.URL,
		ExpiresAt: formatTime(link.ExpiresAt),
	})
}

type slipLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

type orderStatsResponse struct {
	TotalOrders    int                     `json:"totalOrders"`
	TotalRevenue   int64                   `json:"totalRevenue"`
	OrdersByStatus map[string]int          `json:"ordersByStatus"`
	MonthlyRevenue []monthlyRevenuePayload `json:"monthlyRevenue"`
	RecentOrders   []recentOrderPayload    `json:"recentOrders"`
}

type monthlyRevenuePayload struct {
	Month   string `json:"month"`
	Revenue int64  `json:"revenue"`
	Count   int    `json:"count"`
}

type recentOrderPayload struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"orderNumber"`
	CustomerName string `json:"customerName"`
	Status       string `json:"status"`
	Total        int64  `json:"total"`
	Date         string `json:"date"`
}

func buildOrderStatsPayload(stats services.OrderStats) orderStatsResponse {
	byStatus := make(map[string]int, len(stats.StatusCounts))
	for status, count := range stats.StatusCounts {
		byStatus[string(status)] = count
	}

	monthly := make([]monthlyRevenuePayload, 0, len(stats.MonthlyRevenue))
	for _, bucket := range stats.MonthlyRevenue {
		monthly = append(monthly, monthlyRevenuePayload{
			Month:   fmt.Sprintf("%04d-%02d", bucket.Year, int(bucket.Month)),
			Revenue: bucket.Revenue,
			Count:   bucket.Count,
		})
	}

	recent := make([]recentOrderPayload, 0, len(stats.RecentOrders))
	for _, order := range stats.RecentOrders {
		recent = append(recent, recentOrderPayload{
			ID:           order.ID,
			OrderNumber:  order.OrderNumber,
			CustomerName: strings.TrimSpace(order.CustomerInfo.FirstName + " " + order.CustomerInfo.LastName),
			Status:       string(order.Status),
			Total:        order.GrandTotal(),
			Date:         order.CreatedAt.Format("2006-01-02"),
		})
	}

	return orderStatsResponse{
		TotalOrders:    stats.TotalOrders,
		TotalRevenue:   stats.TotalRevenue,
		OrdersByStatus: byStatus,
		MonthlyRevenue: monthly,
		RecentOrders:   recent,
	}
}

type adminOrderUpdateRequest struct {
	Status      *string             `json:"status"`
	PaymentInfo *paymentInfoPayload `json:"paymentInfo"`
}

func parseOrderStatusFilters(values []string) ([]domain.OrderStatus, error) {
	filters := parseFilterValues(values)
	if len(filters) == 0 {
		return nil, nil
	}
	statuses := make([]domain.OrderStatus, 0, len(filters))
	for _, value := range filters {
		status := domain.OrderStatus(value)
		if !domain.IsValidOrderStatus(status) {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
