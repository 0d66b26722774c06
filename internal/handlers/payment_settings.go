package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/polo-atelier/api/internal/platform/auth"
	"github.com/polo-atelier/api/internal/platform/httpx"
	"github.com/polo-atelier/api/internal/services"
)

const (
	maxPaymentSettingsBodySize = 64 * 1024

	// QR uploads share the slip image limit.
	maxQRUploadRequestSize = 6 << 20

	qrImageFormField = "qrImage"
)

// PaymentSettingsHandlers serves the bank-transfer destination. The read is
// public so the storefront can render it; replacement is admin only.
type PaymentSettingsHandlers struct {
	authn    *auth.Authenticator
	settings services.PaymentSettingsService
}

// NewPaymentSettingsHandlers constructs payment settings handlers.
func NewPaymentSettingsHandlers(authn *auth.Authenticator, settings services.PaymentSettingsService) *PaymentSettingsHandlers {
	return &PaymentSettingsHandlers{authn: authn, settings: settings}
}

// PublicRoutes registers the unauthenticated settings read.
func (h *PaymentSettingsHandlers) PublicRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/payment-settings", h.getSettings)
}

// AdminRoutes registers the admin settings endpoints.
func (h *PaymentSettingsHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/payment-settings", func(rt chi.Router) {
		if h.authn != nil {
			rt.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
		}
		rt.Get("/", h.getSettings)
		rt.Post("/", h.replaceSettings)
		rt.Put("/", h.replaceSettings)
	})
}

func (h *PaymentSettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "payment settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.GetSettings(ctx)
	if err != nil {
		writePaymentSettingsError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildPaymentSettingsPayload(settings))
}

// replaceSettings accepts either a JSON body or multipart/form-data carrying a
// QR image alongside the text fields.
func (h *PaymentSettingsHandlers) replaceSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "payment settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cmd, err := h.decodeReplaceSettingsRequest(w, r)
	if err != nil {
		writeBodyReadError(ctx, w, err)
		return
	}
	if cmd.QRUpload != nil {
		defer func() {
			if closer, ok := cmd.QRUpload.Content.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}()
	}

	settings, err := h.settings.ReplaceSettings(ctx, cmd)
	if err != nil {
		writePaymentSettingsError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildPaymentSettingsPayload(settings))
}

func (h *PaymentSettingsHandlers) decodeReplaceSettingsRequest(w http.ResponseWriter, r *http.Request) (services.ReplacePaymentSettingsCommand, error) {
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))

	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxQRUploadRequestSize)
		if err := r.ParseMultipartForm(maxQRUploadRequestSize); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return services.ReplacePaymentSettingsCommand{}, errBodyTooLarge
			}
			return services.ReplacePaymentSettingsCommand{}, errors.New("request must be multipart/form-data")
		}

		cmd := services.ReplacePaymentSettingsCommand{
			BankName:      r.FormValue("bankName"),
			AccountName:   r.FormValue("accountName"),
			AccountNumber: r.FormValue("accountNumber"),
			QRCodeURL:     r.FormValue("qrCodeImage"),
		}
		file, header, err := r.FormFile(qrImageFormField)
		if err == nil {
			cmd.QRUpload = &services.FileUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Content:     file,
			}
		}
		return cmd, nil
	}

	body, err := readLimitedBody(r, maxPaymentSettingsBodySize)
	if err != nil {
		return services.ReplacePaymentSettingsCommand{}, err
	}
	var req paymentSettingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return services.ReplacePaymentSettingsCommand{}, errors.New("request body is not valid JSON")
	}

	return services.ReplacePaymentSettingsCommand{
		BankName:      req.BankName,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		QRCodeURL:     req.QRCodeImage,
	}, nil
}

type paymentSettingsRequest struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	QRCodeImage   string `json:"qrCodeImage,omitempty"`
}

type paymentSettingsResponse struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	QRCodeImage   string `json:"qrCodeImage,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

func buildPaymentSettingsPayload(settings services.PaymentSettings) paymentSettingsResponse {
	return paymentSettingsResponse{
		BankName:      settings.BankName,
		AccountName:   settings.AccountName,
		AccountNumber: settings.AccountNumber,
		QRCodeImage:   settings.QRCodeImage,
		UpdatedAt:     formatTime(settings.UpdatedAt),
	}
}

func writePaymentSettingsError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentSettingsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentSettingsUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "unable to load payment settings right now", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "unable to process payment settings request", http.StatusInternalServerError))
	}
}
