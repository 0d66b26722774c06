package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/repositories"
)

var (
	// ErrStockInvalidInput indicates a malformed bulk update request.
	ErrStockInvalidInput = errors.New("stock: invalid input")
	// ErrStockUnavailable indicates the ledger backend failed.
	ErrStockUnavailable = errors.New("stock: unavailable")
)

// StockServiceDeps wires the dependencies for the stock ledger service.
type StockServiceDeps struct {
	Stock  repositories.StockRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type stockService struct {
	stock  repositories.StockRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewStockService constructs a StockService validating required dependencies.
func NewStockService(deps StockServiceDeps) (StockService, error) {
	if deps.Stock == nil {
		return nil, errors.New("stock service: stock repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &stockService{
		stock: deps.Stock,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ListStock returns every ledger entry, seeding the three default garment
// types the first time the ledger is read while empty. The seed is atomic, so
// concurrent first reads cannot duplicate it.
func (s *stockService) ListStock(ctx context.Context) ([]StockEntry, error) {
	entries, err := s.stock.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	if len(entries) > 0 {
		return entries, nil
	}

	seeded, err := s.stock.SeedDefaults(ctx, domain.DefaultStockEntries())
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	s.logger(ctx, "stock.seeded_defaults", map[string]any{
		"entries": len(seeded),
	})
	return seeded, nil
}

// BulkUpdateStock validates the whole batch before writing anything, then
// upserts each entry by type, replacing its sizes map wholesale. Concurrent
// updates to the same type race last-write-wins.
func (s *stockService) BulkUpdateStock(ctx context.Context, updates []StockUpdate) ([]StockEntry, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: at least one update is required", ErrStockInvalidInput)
	}
	for i, update := range updates {
		if strings.TrimSpace(update.Type) == "" {
			return nil, fmt.Errorf("%w: update %d is missing type", ErrStockInvalidInput, i)
		}
		if update.Sizes == nil {
			return nil, fmt.Errorf("%w: update %d is missing sizes", ErrStockInvalidInput, i)
		}
		for label, qty := range update.Sizes {
			if qty < 0 {
				return nil, fmt.Errorf("%w: update %d size %s must not be negative", ErrStockInvalidInput, i, label)
			}
		}
	}

	for _, update := range updates {
		entry := domain.StockEntry{
			Type:  strings.TrimSpace(update.Type),
			Sizes: update.Sizes,
		}
		if _, err := s.stock.UpsertByType(ctx, entry); err != nil {
			return nil, s.mapRepositoryError(err)
		}
	}

	entries, err := s.stock.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return entries, nil
}

func (s *stockService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return fmt.Errorf("%w: %v", ErrStockUnavailable, err)
	}
	return err
}
