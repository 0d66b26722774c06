package services

import (
	"context"
	"io"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderTotals        = domain.OrderTotals
	CustomerInfo       = domain.CustomerInfo
	PaymentSnapshot    = domain.PaymentSnapshot
	PaymentSlip        = domain.PaymentSlip
	ShippingMethod     = domain.ShippingMethod
	StockEntry         = domain.StockEntry
	PaymentSettings    = domain.PaymentSettings
	SystemHealthReport = domain.SystemHealthReport
)

// CheckoutService validates checkout requests and persists new orders.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
}

// OrderService encapsulates order read/write flows, the status state machine,
// and customer cancellation.
type OrderService interface {
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	AdminUpdate(ctx context.Context, cmd AdminOrderUpdateCommand) (Order, error)
	Stats(ctx context.Context) (OrderStats, error)
}

// OrderStats aggregates the back-office dashboard numbers. Revenue counts
// delivered orders only and includes shipping.
type OrderStats struct {
	TotalOrders    int
	StatusCounts   map[OrderStatus]int
	TotalRevenue   int64
	MonthlyRevenue []MonthlyRevenue
	RecentOrders   []Order
}

// MonthlyRevenue is one calendar-month bucket of delivered-order revenue.
type MonthlyRevenue struct {
	Year    int
	Month   time.Month
	Revenue int64
	Count   int
}

// PaymentSlipService accepts proof-of-payment uploads and drives the
// pending to waiting_payment transition.
type PaymentSlipService interface {
	UploadPaymentSlip(ctx context.Context, cmd UploadPaymentSlipCommand) (Order, error)
	SlipDownloadURL(ctx context.Context, cmd SlipDownloadCommand) (SlipLink, error)
}

// StockService exposes the per-type stock ledger with lazy default seeding.
type StockService interface {
	ListStock(ctx context.Context) ([]StockEntry, error)
	BulkUpdateStock(ctx context.Context, updates []StockUpdate) ([]StockEntry, error)
}

// PaymentSettingsService serves and replaces the singleton bank-transfer destination.
type PaymentSettingsService interface {
	GetSettings(ctx context.Context) (PaymentSettings, error)
	ReplaceSettings(ctx context.Context, cmd ReplacePaymentSettingsCommand) (PaymentSettings, error)
}

// SystemService exposes operational health checks and runtime metadata.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// SlipObjectStore persists uploaded payment-slip images and returns the stored
// object reference.
type SlipObjectStore interface {
	SavePaymentSlip(ctx context.Context, orderID string, upload FileUpload) (string, error)
}

// SlipURLSigner issues short-lived download URLs for stored slip objects.
type SlipURLSigner interface {
	SignSlipURL(ctx context.Context, object string, expiresIn time.Duration) (SlipLink, error)
}

// SlipLink is a time-limited reference to a stored payment slip.
type SlipLink struct {
	URL       string
	ExpiresAt time.Time
}

// QRObjectStore persists uploaded QR code images for payment settings.
type QRObjectStore interface {
	SaveQRImage(ctx context.Context, upload FileUpload) (string, error)
}

// FileUpload carries an incoming multipart file through the service layer.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Commands and filters --------------------------------------------------------

// PlaceOrderCommand carries a validated-on-entry checkout request.
type PlaceOrderCommand struct {
	UserID         string
	CustomerInfo   CustomerInfo
	Items          []OrderItem
	ShippingMethod ShippingMethod
}

// OrderListFilter narrows order listings for user and admin surfaces.
type OrderListFilter struct {
	UserID     string
	Status     []OrderStatus
	Search     string
	Pagination Pagination
}

// OrderReadOptions carries the acting identity for read authorization.
type OrderReadOptions struct {
	ActorID string
	IsAdmin bool
}

// CancelOrderCommand requests a customer-side cancellation of a pending order.
type CancelOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

// AdminOrderUpdateCommand patches an order's status and/or payment snapshot.
type AdminOrderUpdateCommand struct {
	OrderID     string
	ActorID     string
	Status      *OrderStatus
	PaymentInfo *PaymentSnapshot
}

// UploadPaymentSlipCommand attaches an uploaded slip image to an order.
type UploadPaymentSlipCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
	File    FileUpload
}

// SlipDownloadCommand requests a short-lived URL for an order's stored slip.
type SlipDownloadCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

// StockUpdate replaces one garment type's sizes map wholesale.
type StockUpdate struct {
	Type  string
	Sizes map[string]int
}

// ReplacePaymentSettingsCommand replaces the settings singleton. QRUpload, when
// set, is stored first and its URL wins over QRCodeURL.
type ReplacePaymentSettingsCommand struct {
	BankName      string
	AccountName   string
	AccountNumber string
	QRCodeURL     string
	QRUpload      *FileUpload
}

// noopUnitOfWork degrades transactional grouping to sequential execution.
type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ repositories.UnitOfWork = noopUnitOfWork{}
