package repositories

import (
	"context"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Stock() StockRepository
	PaymentSettings() PaymentSettingsRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// StockRepository owns the per-type stock ledger documents.
type StockRepository interface {
	// List returns every stock entry, ordered by type key.
	List(ctx context.Context) ([]domain.StockEntry, error)
	// SeedDefaults writes the given entries only if the ledger is still empty,
	// atomically, and returns the ledger contents afterwards. A concurrent
	// seed must not produce duplicates.
	SeedDefaults(ctx context.Context, entries []domain.StockEntry) ([]domain.StockEntry, error)
	// UpsertByType replaces the sizes map of the entry keyed by its type,
	// creating the document when absent. Last write wins.
	UpsertByType(ctx context.Context, entry domain.StockEntry) (domain.StockEntry, error)
}

// PaymentSettingsRepository stores the singleton bank-transfer destination.
type PaymentSettingsRepository interface {
	// Get returns the persisted settings. Absence is reported as a
	// RepositoryError with IsNotFound.
	Get(ctx context.Context) (domain.PaymentSettings, error)
	// Replace upserts the single settings document wholesale.
	Replace(ctx context.Context, settings domain.PaymentSettings) (domain.PaymentSettings, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings for user and admin surfaces.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	Search     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
