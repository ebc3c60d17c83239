// Package app composes the services and HTTP routes of the storefront.
package app

import (
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/inventory"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Deps are the collaborators that depend on the runtime environment.
// Zero values fall back to no-op publishing, no providers and the default prometheus registry.
type Deps struct {
	Store     repositories.Store
	Publisher events.Publisher
	Providers *payments.Registry
	Registry  *prometheus.Registry
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// Services are the application services built by New, exposed for seeding and tests.
type Services struct {
	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Payments *services.PaymentService
}

// App is the HTTP application and the services behind it.
type App struct {
	*fiber.App
	Services Services
}

// TransitionTable selects the order transition table for the configured cancellation policy.
func TransitionTable(policy string) models.TransitionTable {
	if policy == config.CancelPolicyPreShipment {
		return models.PreShipmentCancelTransitions()
	}
	return models.StrictTransitions
}

// NewProviders builds a registry holding every provider that has credentials configured.
func NewProviders(cfg *config.Config) (*payments.Registry, error) {
	var providers []payments.Provider
	if cfg.StripeEnabled() {
		p, err := payments.NewStripeProvider(payments.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
			Timeout:       cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.PaywayEnabled() {
		p, err := payments.NewPaywayProvider(payments.PaywayConfig{
			MerchantID:  cfg.Payway.MerchantID,
			APIKey:      cfg.Payway.APIKey,
			BaseURL:     cfg.Payway.BaseURL,
			ReturnURL:   cfg.Payway.ReturnURL,
			FrontendURL: cfg.Payway.FrontendURL,
			Timeout:     cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return payments.NewRegistry(providers...), nil
}

// New wires the services and registers every route.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("app: store is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("app: JWT secret is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Providers == nil {
		deps.Providers = payments.NewRegistry()
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	orderMetrics := metrics.NewOrderMetricsWithRegisterer(registerer)

	ledger := inventory.NewLedger()
	calculator := pricing.NewCalculator(pricing.Config{
		VATRate:               cfg.Pricing.VATRate,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShipping:          cfg.Pricing.FlatShipping,
	})
	machine := services.NewStateMachine(TransitionTable(cfg.Orders.CancelPolicy), ledger, orderMetrics)

	svc := Services{
		Auth:     services.NewAuthService(deps.Store.Repositories().Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Products: services.NewProductService(deps.Store.Repositories().Products),
		Orders:   services.NewOrderService(deps.Store, machine, calculator, ledger, deps.Publisher),
		Payments: services.NewPaymentService(deps.Store, machine, deps.Providers, deps.Publisher, orderMetrics),
	}

	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"time":      time.Now().Format(time.RFC3339),
			"providers": deps.Providers.Names(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	authHandler := handlers.NewAuthHandler(svc.Auth)
	productHandler := handlers.NewProductHandler(svc.Products)
	orderHandler := handlers.NewOrderHandler(svc.Orders)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments)

	apiV1 := app.Group("/api/v1")

	// Public routes go first: the protected group below matches every remaining /api/v1 path.
	authHandler.RegisterRoutes(apiV1)
	paymentHandler.RegisterCallbackRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(svc.Auth))
	productHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)
	paymentHandler.RegisterRoutes(protected)

	log.WithFields(log.Fields{
		"component":     "app",
		"cancel_policy": cfg.Orders.CancelPolicy,
		"providers":     deps.Providers.Names(),
	}).Info("routes registered")

	return &App{App: app, Services: svc}, nil
}
