package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/lineitem"
	"github.com/fjod/go_cart/cart-engine/internal/stock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// resolvedItem is what the catalog says about the item an intent targets.
// It is computed before the cart lock is taken.
type resolvedItem struct {
	product   *domain.Product
	key       domain.IdentityKey
	unitPrice decimal.Decimal
	minimum   int
	stockable stock.Stockable
	errs      domain.ValidationErrors
}

// processAdd handles Add and Update. Update only changes a line that is
// already in the cart.
func (s *CartService) processAdd(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	item, err := s.resolve(ctx, rc, intent)
	if err != nil {
		return domain.MutationResult{}, err
	}

	return s.withCart(ctx, rc, func(ctx context.Context, t *txn) error {
		if len(item.errs) > 0 {
			t.reject(item.errs...)
			return nil
		}

		var (
			store    *lineitem.Store
			existing int
			inCart   bool
		)
		if t.cart != nil {
			store = lineitem.New(t.cart)
			if line, ok := store.Match(item.key.ProductID, item.key.VariantID, item.key.CustomizationID); ok {
				existing = line.Quantity
			}
			_, inCart = store.Find(item.key)
		}
		if intent.Kind == domain.MutationUpdate && !inCart {
			t.reject(domain.NewValidationError(domain.KindItemNotInCart))
			return nil
		}

		qtyToCheck := existing + intent.Quantity
		if intent.Direction == domain.DirectionDecrease {
			qtyToCheck = existing - intent.Quantity
		}
		if qtyToCheck > existing && !s.stock.CheckAvailability(item.stockable, qtyToCheck) {
			t.reject(domain.NewValidationError(domain.KindInsufficientStock))
			return nil
		}

		cart := t.ensureCart()
		if store == nil {
			store = lineitem.New(cart)
		}

		if item.product.RequiresCustomization && intent.CustomizationID == 0 {
			t.reject(domain.NewValidationError(domain.KindMissingCustomizationFields))
			return nil
		}

		limits := lineitem.Limits{Minimum: item.minimum, Maximum: s.maxLine}
		qty, err := store.AddOrIncrement(item.key, intent.Quantity, intent.Direction, item.unitPrice, limits)
		switch {
		case errors.Is(err, lineitem.ErrBelowMinimum):
			t.reject(domain.BelowMinimalQuantity(item.minimum))
			return nil
		case errors.Is(err, lineitem.ErrMaximumReached):
			t.reject(domain.NewValidationError(domain.KindMaximumQuantityReached))
			return nil
		case errors.Is(err, lineitem.ErrNotInCart):
			t.reject(domain.NewValidationError(domain.KindItemNotInCart))
			return nil
		case errors.Is(err, lineitem.ErrInvalidQuantity):
			t.reject(domain.NewValidationError(domain.KindNullQuantity))
			return nil
		case err != nil:
			return err
		}

		t.dirty = true
		t.quantity = qty
		switch {
		case qty == 0:
			t.emit(domain.EventItemRemoved, item.key, 0, 0)
		case inCart:
			t.emit(domain.EventItemUpdated, item.key, qty, 0)
		default:
			t.emit(domain.EventItemAdded, item.key, qty, 0)
		}

		if store.IsEmpty() {
			cart.ResetCheckoutState()
			t.emit(domain.EventCartEmptied, domain.IdentityKey{}, 0, 0)
		}
		return nil
	})
}

// resolve runs the catalog side of validation: product availability, the
// variant to use, its price and minimal quantity.
func (s *CartService) resolve(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (resolvedItem, error) {
	var item resolvedItem

	if intent.Quantity == 0 {
		item.errs = append(item.errs, domain.NewValidationError(domain.KindNullQuantity))
	}
	if intent.ProductID == 0 {
		item.errs = append(item.errs, domain.NewValidationError(domain.KindProductNotFound))
	}
	if len(item.errs) > 0 {
		return item, nil
	}

	unavailable := func() (resolvedItem, error) {
		item.errs = domain.ValidationErrors{domain.NewValidationError(domain.KindProductUnavailable)}
		return item, nil
	}

	product, err := s.catalog.GetProduct(ctx, intent.ProductID)
	if catalog.IsNotFound(err) {
		return unavailable()
	}
	if err != nil {
		return item, fmt.Errorf("failed to load product %d: %w", intent.ProductID, err)
	}
	if !product.Active || !product.CheckAccess(rc.CustomerID) {
		return unavailable()
	}
	item.product = product

	var variant *domain.Variant
	switch {
	case intent.VariantID != 0:
		variant, err = s.catalog.Variant(ctx, product.ID, intent.VariantID)
		if catalog.IsNotFound(err) {
			return unavailable()
		}
		if err != nil {
			return item, fmt.Errorf("failed to load variant %d: %w", intent.VariantID, err)
		}
	case len(intent.AttributeSelector) > 0:
		variant, err = s.catalog.GetVariant(ctx, product.ID, intent.AttributeSelector)
		if catalog.IsNotFound(err) {
			// an unknown combination falls back to the default variant
			variant = nil
		} else if err != nil {
			return item, fmt.Errorf("failed to resolve variant of product %d: %w", product.ID, err)
		}
	}

	if variant == nil && product.HasVariants {
		variant, err = s.catalog.GetDefaultVariant(ctx, product.ID, s.stock.PreferInStock(product.StockPolicy()))
		if catalog.IsNotFound(err) {
			s.logger.Error("product has variants but no default variant can be resolved",
				zap.Int64("product_id", product.ID))
			item.errs = domain.ValidationErrors{domain.NewValidationError(domain.KindConfigurationError, int(product.ID))}
			return item, nil
		}
		if err != nil {
			return item, fmt.Errorf("failed to load default variant of product %d: %w", product.ID, err)
		}
	}

	item.key = intent.Key()
	if variant != nil {
		item.key.VariantID = variant.ID
		item.unitPrice = product.Price.Add(variant.PriceImpact)
		item.minimum = variant.MinimumOrderQuantity()
		item.stockable = variant
	} else {
		item.unitPrice = product.Price
		item.minimum = product.MinimumOrderQuantity()
		item.stockable = product
	}
	return item, nil
}
