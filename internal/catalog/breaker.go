package catalog

import (
	"context"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerCatalog guards a Catalog with a circuit breaker so a failing
// catalog store fails fast instead of piling up requests. Misses are
// answers, not failures, and never trip the breaker.
type BreakerCatalog struct {
	next    Catalog
	product *gobreaker.CircuitBreaker[*domain.Product]
	variant *gobreaker.CircuitBreaker[*domain.Variant]
}

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewBreakerCatalog(next Catalog, cfg BreakerSettings, logger *zap.Logger) *BreakerCatalog {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || IsNotFound(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("catalog circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}
	}

	return &BreakerCatalog{
		next:    next,
		product: gobreaker.NewCircuitBreaker[*domain.Product](settings("catalog-products")),
		variant: gobreaker.NewCircuitBreaker[*domain.Variant](settings("catalog-variants")),
	}
}

func (b *BreakerCatalog) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return b.product.Execute(func() (*domain.Product, error) {
		return b.next.GetProduct(ctx, productID)
	})
}

func (b *BreakerCatalog) GetVariant(ctx context.Context, productID int64, selector []int64) (*domain.Variant, error) {
	return b.variant.Execute(func() (*domain.Variant, error) {
		return b.next.GetVariant(ctx, productID, selector)
	})
}

func (b *BreakerCatalog) GetDefaultVariant(ctx context.Context, productID int64, preferInStock bool) (*domain.Variant, error) {
	return b.variant.Execute(func() (*domain.Variant, error) {
		return b.next.GetDefaultVariant(ctx, productID, preferInStock)
	})
}

func (b *BreakerCatalog) Variant(ctx context.Context, productID, variantID int64) (*domain.Variant, error) {
	return b.variant.Execute(func() (*domain.Variant, error) {
		return b.next.Variant(ctx, productID, variantID)
	})
}
