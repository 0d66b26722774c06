package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed and awaits a payment slip.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusWaitingPayment indicates a slip was submitted and awaits staff verification.
	OrderStatusWaitingPayment OrderStatus = "waiting_payment"
	// OrderStatusProcessing indicates payment was confirmed and the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order was handed to the carrier or is ready for pickup.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer (terminal).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before payment (terminal).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusWaitingPayment,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidOrderStatus reports whether s is one of the known order statuses.
func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusWaitingPayment, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ShippingMethod enumerates supported delivery options.
type ShippingMethod string

const (
	// ShippingMethodMail delivers by post; cost scales with the unit count.
	ShippingMethodMail ShippingMethod = "mail"
	// ShippingMethodPickup is customer pickup at the shop; always free.
	ShippingMethodPickup ShippingMethod = "pickup"
)

// IsValidShippingMethod reports whether m is a supported shipping method.
func IsValidShippingMethod(m ShippingMethod) bool {
	return m == ShippingMethodMail || m == ShippingMethodPickup
}

// CustomerInfo is the contact/delivery snapshot embedded in an order.
type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Note      string
}

// OrderItem is a single purchased line captured at checkout time.
type OrderItem struct {
	ProductID          string
	ProductName        string
	ProductDescription string
	UnitPrice          int64
	Quantity           int
	Size               string
	ImageURL           string
}

// PaymentSnapshot is the bank-transfer destination copied onto an order at
// creation. Later edits to the global settings never touch it.
type PaymentSnapshot struct {
	BankName      string
	AccountName   string
	AccountNumber string
	QRCodeImage   string
}

// PaymentSlip references the customer-uploaded proof of transfer.
type PaymentSlip struct {
	URL        string
	UploadedAt time.Time
}

// Order is the central purchase aggregate.
type Order struct {
	ID             string
	OrderNumber    string
	UserID         string
	CustomerInfo   CustomerInfo
	Items          []OrderItem
	TotalAmount    int64
	ShippingCost   int64
	ShippingMethod ShippingMethod
	Status         OrderStatus
	PaymentInfo    PaymentSnapshot
	PaymentSlip    *PaymentSlip
	OrderDate      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GrandTotal returns the amount the customer pays: item subtotal plus shipping.
func (o Order) GrandTotal() int64 {
	return o.TotalAmount + o.ShippingCost
}

// StockEntry records per-size available quantity for one garment type.
type StockEntry struct {
	Type      string
	Sizes     map[string]int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentSettings is the single active bank-transfer destination shown at checkout.
type PaymentSettings struct {
	BankName      string
	AccountName   string
	AccountNumber string
	QRCodeImage   string
	UpdatedAt     time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
