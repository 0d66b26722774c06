package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/platform/auth"
	"github.com/polo-atelier/api/internal/platform/httpx"
	"github.com/polo-atelier/api/internal/services"
)

const (
	maxCheckoutBodySize = 256 * 1024

	// Multipart limit leaves headroom above the service-side 5MB file cap so
	// oversized uploads reach the service and earn a descriptive 400.
	maxPaymentSlipRequestSize = 6 << 20

	paymentSlipFormField = "paymentSlip"
)

// OrderHandlers exposes the customer-facing checkout and order endpoints.
type OrderHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	orders   services.OrderService
	slips    services.PaymentSlipService

	checkoutMiddleware func(http.Handler) http.Handler
	checkoutLimiter    rateLimiter
}

// OrderHandlerOption customises OrderHandlers construction.
type OrderHandlerOption func(*OrderHandlers)

// WithCheckoutIdempotency installs middleware on the checkout route so repeated
// Idempotency-Key submissions replay the stored response.
func WithCheckoutIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.checkoutMiddleware = mw
	}
}

// WithCheckoutRateLimit throttles checkout attempts per caller within the window.
func WithCheckoutRateLimit(limit int, window time.Duration) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.checkoutLimiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewOrderHandlers constructs handlers for checkout, order reads, cancellation,
// and payment-slip uploads.
func NewOrderHandlers(authn *auth.Authenticator, checkout services.CheckoutService, orders services.OrderService, slips services.PaymentSlipService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		checkout: checkout,
		orders:   orders,
		slips:    slips,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /orders endpoints onto the provided router. Checkout accepts
// guests, so it only attaches an identity when a bearer token is present; the
// remaining endpoints require authentication.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.OptionalFirebaseAuth())
		}
		if h.checkoutMiddleware != nil {
			g.Use(h.checkoutMiddleware)
		}
		g.Post("/", h.placeOrder)
	})
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireFirebaseAuth())
		}
		g.Get("/", h.listMyOrders)
		g.Get("/{orderID}", h.getOrder)
		g.Delete("/{orderID}", h.cancelOrder)
		g.Post("/{orderID}/payment-slip", h.uploadPaymentSlip)
	})
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyReadError(ctx, w, err)
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	var userID string
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		userID = strings.TrimSpace(identity.UID)
	}

	if h.checkoutLimiter != nil && !h.checkoutLimiter.Allow(firstNonEmpty(userID, clientAddr(r))) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts, slow down", http.StatusTooManyRequests))
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:         userID,
		CustomerInfo:   req.CustomerInfo.toDomain(),
		Items:          req.itemsToDomain(),
		ShippingMethod: domain.ShippingMethod(strings.TrimSpace(req.ShippingMethod)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Success: true,
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
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

	pageSize, err := parsePageSizeParam(r.URL.Query().Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		UserID: identity.UID,
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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
		IsAdmin: identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		IsAdmin: identity.HasRole(auth.RoleAdmin),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) uploadPaymentSlip(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, maxPaymentSlipRequestSize)
	if err := r.ParseMultipartForm(maxPaymentSlipRequestSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "upload exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request must be multipart/form-data", http.StatusBadRequest))
		return
	}

	file, header, err := r.FormFile(paymentSlipFormField)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "paymentSlip file is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	order, err := h.slips.UploadPaymentSlip(ctx, services.UploadPaymentSlipCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		IsAdmin: identity.HasRole(auth.RoleAdmin),
		File: services.FileUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     file,
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentSlipResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		PaymentSlip: buildPaymentSlipPayload(order.PaymentSlip),
	})
}

// Shared payloads -------------------------------------------------------------

type checkoutRequest struct {
	CustomerInfo   customerPayload       `json:"customerInfo"`
	Items          []checkoutItemPayload `json:"items"`
	ShippingMethod string                `json:"shippingMethod"`
}

type checkoutItemPayload struct {
	ProductID          string `json:"productId"`
	ProductName        string `json:"productName"`
	ProductDescription string `json:"productDescription,omitempty"`
	Price              int64  `json:"price"`
	Quantity           int    `json:"quantity"`
	Size               string `json:"size,omitempty"`
	ImageURL           string `json:"imageUrl,omitempty"`
}

type customerPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Note      string `json:"note,omitempty"`
}

type paymentInfoPayload struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	QRCodeImage   string `json:"qrCodeImage,omitempty"`
}

type paymentSlipPayload struct {
	URL        string `json:"url"`
	UploadedAt string `json:"uploadedAt"`
}

type orderPayload struct {
	ID             string                `json:"id"`
	OrderNumber    string                `json:"orderNumber"`
	UserID         string                `json:"userId,omitempty"`
	Status         string                `json:"status"`
	CustomerInfo   customerPayload       `json:"customerInfo"`
	Items          []checkoutItemPayload `json:"items"`
	TotalAmount    int64                 `json:"totalAmount"`
	ShippingCost   int64                 `json:"shippingCost"`
	ShippingMethod string                `json:"shippingMethod"`
	PaymentInfo    paymentInfoPayload    `json:"paymentInfo"`
	PaymentSlip    *paymentSlipPayload   `json:"paymentSlip,omitempty"`
	CreatedAt      string                `json:"createdAt"`
	UpdatedAt      string                `json:"updatedAt"`
}

type checkoutResponse struct {
	Success bool         `json:"success"`
	Order   orderPayload `json:"order"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type paymentSlipResponse struct {
	ID          string              `json:"id"`
	OrderNumber string              `json:"orderNumber"`
	Status      string              `json:"status"`
	PaymentSlip *paymentSlipPayload `json:"paymentSlip,omitempty"`
}

func (p customerPayload) toDomain() domain.CustomerInfo {
	return domain.CustomerInfo{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		Note:      p.Note,
	}
}

func (req checkoutRequest) itemsToDomain() []domain.OrderItem {
	if len(req.Items) == 0 {
		return nil
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			UnitPrice:          item.Price,
			Quantity:           item.Quantity,
			Size:               item.Size,
			ImageURL:           item.ImageURL,
		})
	}
	return items
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]checkoutItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, checkoutItemPayload{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			Price:              item.UnitPrice,
			Quantity:           item.Quantity,
			Size:               item.Size,
			ImageURL:           item.ImageURL,
		})
	}

	return orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		CustomerInfo: customerPayload{
			FirstName: order.CustomerInfo.FirstName,
			LastName:  order.CustomerInfo.LastName,
			Email:     order.CustomerInfo.Email,
			Phone:     order.CustomerInfo.Phone,
			Address:   order.CustomerInfo.Address,
			Note:      order.CustomerInfo.Note,
		},
		Items:          items,
		TotalAmount:    order.GrandTotal(),
		ShippingCost:   order.ShippingCost,
		ShippingMethod: string(order.ShippingMethod),
		PaymentInfo: paymentInfoPayload{
			BankName:      order.PaymentInfo.BankName,
			AccountName:   order.PaymentInfo.AccountName,
			AccountNumber: order.PaymentInfo.AccountNumber,
			QRCodeImage:   order.PaymentInfo.QRCodeImage,
		},
		PaymentSlip: buildPaymentSlipPayload(order.PaymentSlip),
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
	}
}

func buildPaymentSlipPayload(slip *domain.PaymentSlip) *paymentSlipPayload {
	if slip == nil {
		return nil
	}
	return &paymentSlipPayload{
		URL:        slip.URL,
		UploadedAt: formatTime(slip.UploadedAt),
	}
}

func buildOrderListPayload(page domain.CursorPage[domain.Order]) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderPayload(order))
	}
	return orderListResponse{
		Orders:        orders,
		NextPageToken: page.NextPageToken,
	}
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parsePageSizeParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 {
		return 0, errors.New("pageSize must be a positive integer")
	}
	return size, nil
}

func writeBodyReadError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrPaymentSlipInvalidFile):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentSlipUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you do not have access to this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentSlipMissing):
		httpx.WriteError(ctx, w, httpx.NewError("payment_slip_missing", "no payment slip uploaded for this order", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently, retry the request", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "unable to place the order right now", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "unable to process order request", http.StatusInternalServerError))
	}
}
