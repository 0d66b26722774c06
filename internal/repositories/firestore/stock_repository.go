package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/polo-atelier/api/internal/domain"
	pfirestore "github.com/polo-atelier/api/internal/platform/firestore"
	"github.com/polo-atelier/api/internal/repositories"
)

const stockCollection = "stock"

type stockDocument struct {
	Type      string         `firestore:"type"`
	Sizes     map[string]int `firestore:"sizes"`
	CreatedAt time.Time      `firestore:"createdAt"`
	UpdatedAt time.Time      `firestore:"updatedAt"`
}

// StockRepository implements repositories.StockRepository backed by Firestore.
// One document per garment type, keyed by the type string itself.
type StockRepository struct {
	provider *pfirestore.Provider
	stock    *pfirestore.BaseRepository[stockDocument]
	now      func() time.Time
}

var _ repositories.StockRepository = (*StockRepository)(nil)

// StockRepositoryOption customises the repository construction.
type StockRepositoryOption func(*StockRepository)

// WithStockClock injects a custom clock, primarily for tests.
func WithStockClock(clock func() time.Time) StockRepositoryOption {
	return func(r *StockRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewStockRepository constructs a Firestore-backed stock repository.
func NewStockRepository(provider *pfirestore.Provider, opts ...StockRepositoryOption) (*StockRepository, error) {
	if provider == nil {
		return nil, errors.New("stock repository requires firestore provider")
	}
	repo := &StockRepository{
		provider: provider,
		stock:    pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil, nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// List returns every stock entry ordered by type key.
func (r *StockRepository) List(ctx context.Context) ([]domain.StockEntry, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("stock repository not initialised")
	}
	docs, err := r.stock.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.StockEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, stockFromDocument(doc.Data))
	}
	return entries, nil
}

// SeedDefaults writes the given entries inside a transaction, only when the
// collection is still empty. Two concurrent seeds cannot both observe an
// empty ledger and commit, so duplicates are impossible.
func (r *StockRepository) SeedDefaults(ctx context.Context, entries []domain.StockEntry) ([]domain.StockEntry, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("stock repository not initialised")
	}
	if len(entries) == 0 {
		return nil, errors.New("stock repository: seed entries are required")
	}

	now := r.now().UTC()
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		existing := tx.Documents(client.Collection(stockCollection).Query.Limit(1))
		defer existing.Stop()
		snaps, err := existing.GetAll()
		if err != nil {
			return err
		}
		if len(snaps) > 0 {
			return nil
		}
		for _, entry := range entries {
			if strings.TrimSpace(entry.Type) == "" {
				return errors.New("stock repository: seed entry missing type")
			}
			ref := client.Collection(stockCollection).Doc(entry.Type)
			doc := stockDocument{
				Type:      entry.Type,
				Sizes:     domain.NormalizeSizes(entry.Sizes),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pfirestore.WrapError("stock.seed", err)
	}
	return r.List(ctx)
}

// UpsertByType replaces the sizes map for the entry keyed by its type,
// creating the document if absent. Concurrent writers race last-write-wins.
func (r *StockRepository) UpsertByType(ctx context.Context, entry domain.StockEntry) (domain.StockEntry, error) {
	if r == nil || r.provider == nil {
		return domain.StockEntry{}, errors.New("stock repository not initialised")
	}
	key := strings.TrimSpace(entry.Type)
	if key == "" {
		return domain.StockEntry{}, errors.New("stock repository: type is required")
	}

	now := r.now().UTC()
	payload := map[string]any{
		"type":      key,
		"sizes":     domain.NormalizeSizes(entry.Sizes),
		"updatedAt": now,
	}

	ref, err := r.stock.DocumentRef(ctx, key)
	if err != nil {
		return domain.StockEntry{}, err
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return domain.StockEntry{}, pfirestore.WrapError("stock.upsert", err)
	}

	doc, err := r.stock.Get(ctx, key)
	if err != nil {
		return domain.StockEntry{}, fmt.Errorf("stock.upsert readback: %w", err)
	}
	return stockFromDocument(doc.Data), nil
}

func stockFromDocument(doc stockDocument) domain.StockEntry {
	sizes := domain.NormalizeSizes(doc.Sizes)
	return domain.StockEntry{
		Type:      doc.Type,
		Sizes:     sizes,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
