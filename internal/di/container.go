package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldstone/cartops/internal/platform/config"
	pfirestore "github.com/fieldstone/cartops/internal/platform/firestore"
	"github.com/fieldstone/cartops/internal/repositories"
	firestoreRepo "github.com/fieldstone/cartops/internal/repositories/firestore"
	"github.com/fieldstone/cartops/internal/repositories/memory"
	"github.com/fieldstone/cartops/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders   services.OrderService
	Settings *services.Settings
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	registry  repositories.Registry
	extension services.CartExtension
	logger    *zap.Logger
}

// WithRegistry overrides the repository registry, bypassing backend selection.
// Tests use this to inject stub registries.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *containerOptions) {
		o.registry = reg
	}
}

// WithCartExtension installs the extension hooks consulted before mutations.
func WithCartExtension(ext services.CartExtension) Option {
	return func(o *containerOptions) {
		o.extension = ext
	}
}

// WithLogger sets the logger services emit structured events through.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// NewContainer constructs the runtime dependencies: repository registry per
// the configured backend, pricing engine, runtime settings, and the order
// service.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	options := containerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	reg := options.registry
	if reg == nil {
		built, err := buildRegistry(cfg)
		if err != nil {
			return nil, err
		}
		reg = built
	}

	settings := services.NewSettings(
		cfg.Cart.MergeLikeItems,
		cfg.Cart.MoveNamedOrderItems,
		cfg.Cart.DeleteEmptyNamedOrders,
	)

	var pricing services.PricingEngine
	if cfg.Pricing.Enabled {
		pricing = services.NewTotalsPricingEngine(cfg.Pricing.TaxBasisPoints)
	}

	orderLogger := options.logger
	if orderLogger == nil {
		orderLogger = zap.NewNop()
	}
	orderLogger = orderLogger.Named("orders")

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    reg.Orders(),
		Pricing:   pricing,
		Extension: options.extension,
		Settings:  settings,
		Clock:     time.Now,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			orderLogger.Debug("order log", zFields...)
		},
		PricingRetryMax:     cfg.Pricing.RetryMax,
		PricingRetryBackoff: cfg.Pricing.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services: Services{
			Orders:   orders,
			Settings: settings,
		},
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildRegistry(cfg config.Config) (repositories.Registry, error) {
	switch cfg.Firestore.Backend {
	case "memory":
		return memory.NewRegistry(), nil
	case "firestore":
		provider := pfirestore.NewProvider(cfg.Firestore)
		return firestoreRepo.NewRegistry(provider)
	default:
		return nil, errors.New("di: unknown repository backend " + cfg.Firestore.Backend)
	}
}
