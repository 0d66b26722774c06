package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/polo-atelier/api/internal/platform/auth"
	"github.com/polo-atelier/api/internal/platform/httpx"
	"github.com/polo-atelier/api/internal/services"
)

const maxStockBodySize = 64 * 1024

// StockHandlers exposes the admin stock ledger endpoints.
type StockHandlers struct {
	authn *auth.Authenticator
	stock services.StockService
}

// NewStockHandlers constructs stock handlers.
func NewStockHandlers(authn *auth.Authenticator, stock services.StockService) *StockHandlers {
	return &StockHandlers{authn: authn, stock: stock}
}

// Routes registers the /admin/stock endpoints.
func (h *StockHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/stock", func(rt chi.Router) {
		if h.authn != nil {
			rt.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
		}
		rt.Get("/", h.listStock)
		rt.Put("/", h.bulkUpdateStock)
	})
}

func (h *StockHandlers) listStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stock_service_unavailable", "stock service is unavailable", http.StatusServiceUnavailable))
		return
	}

	entries, err := h.stock.ListStock(ctx)
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildStockListPayload(entries))
}

func (h *StockHandlers) bulkUpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stock_service_unavailable", "stock service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxStockBodySize)
	if err != nil {
		writeBodyReadError(ctx, w, err)
		return
	}

	var req stockBulkUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.StockUpdates) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stockUpdates are required", http.StatusBadRequest))
		return
	}

	updates := make([]services.StockUpdate, 0, len(req.StockUpdates))
	for _, entry := range req.StockUpdates {
		updates = append(updates, services.StockUpdate{
			Type:  entry.Type,
			Sizes: entry.Sizes,
		})
	}

	entries, err := h.stock.BulkUpdateStock(ctx, updates)
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildStockListPayload(entries))
}

type stockEntryPayload struct {
	Type      string         `json:"type"`
	Sizes     map[string]int `json:"sizes"`
	CreatedAt string         `json:"createdAt,omitempty"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
}

type stockBulkUpdateRequest struct {
	StockUpdates []stockEntryPayload `json:"stockUpdates"`
}

type stockListResponse struct {
	Stock []stockEntryPayload `json:"stock"`
}

func buildStockListPayload(entries []services.StockEntry) stockListResponse {
	payload := make([]stockEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, stockEntryPayload{
			Type:      entry.Type,
			Sizes:     entry.Sizes,
			CreatedAt: formatTime(entry.CreatedAt),
			UpdatedAt: formatTime(entry.UpdatedAt),
		})
	}
	return stockListResponse{Stock: payload}
}

func writeStockError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrStockInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrStockUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("stock_unavailable", "unable to read stock right now", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("stock_error", "unable to process stock request", http.StatusInternalServerError))
	}
}
