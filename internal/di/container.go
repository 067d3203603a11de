package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxury-beauty/api/internal/payments"
	"github.com/luxury-beauty/api/internal/platform/config"
	"github.com/luxury-beauty/api/internal/repositories"
	"github.com/luxury-beauty/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Checkout      services.CheckoutService
	Orders        services.OrderService
	Payments      services.PaymentService
	Notifications services.NotificationService
}

// Options carries runtime collaborators that do not live in the repository registry.
type Options struct {
	Providers      *payments.Registry
	EmailPublisher services.EmailJobPublisher
	Logger         func(ctx context.Context, event string, fields map[string]any)
	Clock          func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts Options) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, opts)
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

func buildServices(_ context.Context, reg repositories.Registry, _ config.Config, opts Options) (Services, error) {
	var svc Services

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Publisher: opts.EmailPublisher,
		Clock:     clock,
		Logger:    opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notificationSvc

	var initializer services.PaymentInitializer
	if opts.Providers != nil {
		paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
			Payments:      reg.Payments(),
			Orders:        reg.Orders(),
			Providers:     opts.Providers,
			Notifications: notificationSvc,
			Clock:         clock,
			Logger:        opts.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build payment service: %w", err)
		}
		svc.Payments = paymentSvc
		initializer, _ = paymentSvc.(services.PaymentInitializer)
	}

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:        reg.Orders(),
		Catalog:       reg.Catalog(),
		DiscountCodes: reg.DiscountCodes(),
		ShippingRates: reg.ShippingRates(),
		Payments:      initializer,
		Notifications: notificationSvc,
		Clock:         clock,
		Logger:        opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    reg.Orders(),
		AuditLogs: reg.AuditLogs(),
		Clock:     clock,
		Logger:    opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	return svc, nil
}
