package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/polo-atelier/api/internal/domain"
	"github.com/polo-atelier/api/internal/platform/config"
	"github.com/polo-atelier/api/internal/repositories"
	"github.com/polo-atelier/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Checkout        services.CheckoutService
	Orders          services.OrderService
	PaymentSlips    services.PaymentSlipService
	Stock           services.StockService
	PaymentSettings services.PaymentSettingsService
	System          services.SystemService
}

// Infrastructure carries the externally constructed collaborators the services
// need beyond repositories: object stores, URL signing, and event publishing.
type Infrastructure struct {
	Events     services.OrderEventPublisher
	SlipStore  services.SlipObjectStore
	SlipSigner services.SlipURLSigner
	QRStore    services.QRObjectStore
	Build      services.BuildInfo
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies on top of a repository registry.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := infra.Logger

	settingsSvc, err := services.NewPaymentSettingsService(services.PaymentSettingsServiceDeps{
		Settings: reg.PaymentSettings(),
		QRStore:  infra.QRStore,
		Fallback: domain.PaymentSettings{
			BankName:      cfg.Payments.BankName,
			AccountName:   cfg.Payments.AccountName,
			AccountNumber: cfg.Payments.AccountNumber,
			QRCodeImage:   cfg.Payments.QRCodeImage,
		},
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment settings service: %w", err)
	}
	svc.PaymentSettings = settingsSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:   reg.Orders(),
		Settings: settingsSvc,
		Events:   infra.Events,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Events:     infra.Events,
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	slipSvc, err := services.NewPaymentSlipService(services.PaymentSlipServiceDeps{
		Orders: reg.Orders(),
		Store:  infra.SlipStore,
		Signer: infra.SlipSigner,
		Events: infra.Events,
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment slip service: %w", err)
	}
	svc.PaymentSlips = slipSvc

	stockSvc, err := services.NewStockService(services.StockServiceDeps{
		Stock:  reg.Stock(),
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stock service: %w", err)
	}
	svc.Stock = stockSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            clock,
		Build:            infra.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
