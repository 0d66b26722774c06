package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/polo-atelier/api/internal/domain"
)

type stubStockRepo struct {
	listFn   func(ctx context.Context) ([]domain.StockEntry, error)
	seedFn   func(ctx context.Context, entries []domain.StockEntry) ([]domain.StockEntry, error)
	upsertFn func(ctx context.Context, entry domain.StockEntry) (domain.StockEntry, error)
}

func (s *stubStockRepo) List(ctx context.Context) ([]domain.StockEntry, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubStockRepo) SeedDefaults(ctx context.Context, entries []domain.StockEntry) ([]domain.StockEntry, error) {
	if s.seedFn != nil {
		return s.seedFn(ctx, entries)
	}
	return entries, nil
}

func (s *stubStockRepo) UpsertByType(ctx context.Context, entry domain.StockEntry) (domain.StockEntry, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, entry)
	}
	return entry, nil
}

func newStockService(t *testing.T, repo *stubStockRepo) StockService {
	t.Helper()
	svc, err := NewStockService(StockServiceDeps{Stock: repo})
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}
	return svc
}

func TestListStockSeedsDefaultsWhenEmpty(t *testing.T) {
	var seeded []domain.StockEntry
	repo := &stubStockRepo{
		listFn: func(context.Context) ([]domain.StockEntry, error) {
			return nil, nil
		},
		seedFn: func(_ context.Context, entries []domain.StockEntry) ([]domain.StockEntry, error) {
			seeded = entries
			return entries, nil
		},
	}
	svc := newStockService(t, repo)

	entries, err := svc.ListStock(context.Background())
	if err != nil {
		t.Fatalf("ListStock: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected three seeded types, got %d", len(entries))
	}
	if len(seeded) != 3 {
		t.Fatalf("defaults were not seeded: %d", len(seeded))
	}
	types := map[string]bool{}
	for _, entry := range entries {
		types[entry.Type] = true
		if len(entry.Sizes) != 15 {
			t.Fatalf("type %q expected 15 sizes, got %d", entry.Type, len(entry.Sizes))
		}
	}
	for _, want := range []string{"normal", "monochrome", "special"} {
		if !types[want] {
			t.Fatalf("missing seeded type %q", want)
		}
	}
}

func TestListStockSkipsSeedWhenPopulated(t *testing.T) {
	existing := []domain.StockEntry{{Type: "normal", Sizes: map[string]int{"M": 4}}}
	repo := &stubStockRepo{
		listFn: func(context.Context) ([]domain.StockEntry, error) {
			return existing, nil
		},
		seedFn: func(context.Context, []domain.StockEntry) ([]domain.StockEntry, error) {
			t.Fatal("seed must not run for a populated ledger")
			return nil, nil
		},
	}
	svc := newStockService(t, repo)

	entries, err := svc.ListStock(context.Background())
	if err != nil {
		t.Fatalf("ListStock: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "normal" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestBulkUpdateStockValidatesBeforeWriting(t *testing.T) {
	repo := &stubStockRepo{
		upsertFn: func(context.Context, domain.StockEntry) (domain.StockEntry, error) {
			t.Fatal("upsert must not run for an invalid batch")
			return domain.StockEntry{}, nil
		},
	}
	svc := newStockService(t, repo)

	cases := []struct {
		name    string
		updates []StockUpdate
	}{
		{"empty batch", nil},
		{"missing type", []StockUpdate{{Sizes: map[string]int{"M": 1}}}},
		{"missing sizes", []StockUpdate{{Type: "normal"}}},
		{"negative quantity after valid entry", []StockUpdate{
			{Type: "normal", Sizes: map[string]int{"M": 5}},
			{Type: "special", Sizes: map[string]int{"L": -1}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.BulkUpdateStock(context.Background(), tc.updates); !errors.Is(err, ErrStockInvalidInput) {
				t.Fatalf("expected ErrStockInvalidInput, got %v", err)
			}
		})
	}
}

func TestBulkUpdateStockUpsertsAndRelists(t *testing.T) {
	var upserts []domain.StockEntry
	repo := &stubStockRepo{
		upsertFn: func(_ context.Context, entry domain.StockEntry) (domain.StockEntry, error) {
			upserts = append(upserts, entry)
			return entry, nil
		},
		listFn: func(context.Context) ([]domain.StockEntry, error) {
			return upserts, nil
		},
	}
	svc := newStockService(t, repo)

	entries, err := svc.BulkUpdateStock(context.Background(), []StockUpdate{
		{Type: "normal", Sizes: map[string]int{"M": 5, "L": 0}},
		{Type: "  special  ", Sizes: map[string]int{"XL": 2}},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStock: %v", err)
	}
	if len(upserts) != 2 {
		t.Fatalf("expected two upserts, got %d", len(upserts))
	}
	if upserts[1].Type != "special" {
		t.Fatalf("type was not trimmed: %q", upserts[1].Type)
	}
	if len(entries) != 2 {
		t.Fatalf("expected relisted entries, got %+v", entries)
	}
}

func TestBulkUpdateStockMapsRepositoryFailure(t *testing.T) {
	repo := &stubStockRepo{
		upsertFn: func(context.Context, domain.StockEntry) (domain.StockEntry, error) {
			return domain.StockEntry{}, &fakeRepoError{msg: "deadline exceeded", unavailable: true}
		},
	}
	svc := newStockService(t, repo)

	if _, err := svc.BulkUpdateStock(context.Background(), []StockUpdate{{Type: "normal", Sizes: map[string]int{"M": 1}}}); !errors.Is(err, ErrStockUnavailable) {
		t.Fatalf("expected ErrStockUnavailable, got %v", err)
	}
}
