package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/lineitem"
)

func (s *CartService) processRemove(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	key := intent.Key()

	minimum, err := s.customizationFloor(ctx, key)
	if err != nil {
		return domain.MutationResult{}, err
	}

	return s.withCart(ctx, rc, func(_ context.Context, t *txn) error {
		if t.cart == nil {
			t.reject(domain.NewValidationError(domain.KindItemNotInCart))
			return nil
		}

		store := lineitem.New(t.cart)
		if _, ok := store.Find(key); !ok {
			t.reject(domain.NewValidationError(domain.KindItemNotInCart))
			return nil
		}

		// removing one customization must not leave the others below the floor
		if key.CustomizationID != 0 {
			others, found := store.OtherCustomizations(key.ProductID, key.CustomizationID)
			if found && others < minimum {
				t.reject(domain.BelowMinimalQuantity(minimum))
				return nil
			}
		}

		store.Remove(key)
		t.dirty = true
		t.emit(domain.EventItemRemoved, key, 0, 0)

		if store.IsEmpty() {
			t.cart.ResetCheckoutState()
			t.emit(domain.EventCartEmptied, domain.IdentityKey{}, 0, 0)
		}
		return nil
	})
}

// customizationFloor returns the minimal quantity that applies to the other
// customizations of the product. A product gone from the catalog has no floor.
func (s *CartService) customizationFloor(ctx context.Context, key domain.IdentityKey) (int, error) {
	if key.CustomizationID == 0 {
		return 0, nil
	}

	if key.VariantID != 0 {
		variant, err := s.catalog.Variant(ctx, key.ProductID, key.VariantID)
		switch {
		case err == nil:
			return variant.MinimumOrderQuantity(), nil
		case !catalog.IsNotFound(err):
			return 0, fmt.Errorf("failed to load variant %d: %w", key.VariantID, err)
		}
	}

	product, err := s.catalog.GetProduct(ctx, key.ProductID)
	if catalog.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load product %d: %w", key.ProductID, err)
	}
	return product.MinimumOrderQuantity(), nil
}
