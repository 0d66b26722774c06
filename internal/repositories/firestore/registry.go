package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	pfirestore "github.com/polo-atelier/api/internal/platform/firestore"
	"github.com/polo-atelier/api/internal/repositories"
)

// Registry bundles the Firestore backed repositories behind the
// repositories.Registry contract so wiring stays in one place.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	stock    *StockRepository
	settings *PaymentSettingsRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises registry construction.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	health repositories.HealthRepository
	clock  func() time.Time
}

// WithRegistryHealth injects a pre-built health repository, typically one that
// probes more than the Firestore backend.
func WithRegistryHealth(repo repositories.HealthRepository) RegistryOption {
	return func(cfg *registryConfig) {
		if repo != nil {
			cfg.health = repo
		}
	}
}

// WithRegistryClock injects a custom clock for repositories that stamp documents.
func WithRegistryClock(clock func() time.Time) RegistryOption {
	return func(cfg *registryConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// NewRegistry constructs every Firestore repository on top of the shared provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}

	cfg := registryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}

	stockOpts := make([]StockRepositoryOption, 0, 1)
	if cfg.clock != nil {
		stockOpts = append(stockOpts, WithStockClock(cfg.clock))
	}
	stock, err := NewStockRepository(provider, stockOpts...)
	if err != nil {
		return nil, err
	}

	settings, err := NewPaymentSettingsRepository(provider)
	if err != nil {
		return nil, err
	}

	health := cfg.health
	if health == nil {
		health, err = repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
			firestorePingCheck(provider),
		})
		if err != nil {
			return nil, err
		}
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		stock:    stock,
		settings: settings,
		health:   health,
	}, nil
}

// firestorePingCheck lists collections with a tight deadline to confirm the
// backend answers at all.
func firestorePingCheck(provider *pfirestore.Provider) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name:    "firestore",
		Timeout: 1500 * time.Millisecond,
		Check: func(ctx context.Context) error {
			client, err := provider.Client(ctx)
			if err != nil {
				return err
			}
			iter := client.Collections(ctx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		},
	}
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Stock returns the stock ledger repository.
func (r *Registry) Stock() repositories.StockRepository { return r.stock }

// PaymentSettings returns the payment settings repository.
func (r *Registry) PaymentSettings() repositories.PaymentSettingsRepository { return r.settings }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a Firestore transaction so conflicting writes are
// retried by the backend.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore registry: transaction function is nil")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}
