package catalog

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// Catalog is the read side of the product catalog used by the cart.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	// GetVariant resolves the variant whose attribute set equals selector.
	GetVariant(ctx context.Context, productID int64, selector []int64) (*domain.Variant, error)
	// GetDefaultVariant returns the variant used when a product with variants
	// is added without one. ErrVariantNotFound means none qualifies.
	GetDefaultVariant(ctx context.Context, productID int64, preferInStock bool) (*domain.Variant, error)
	Variant(ctx context.Context, productID, variantID int64) (*domain.Variant, error)
}

// IsNotFound reports whether err is a catalog miss rather than a failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrVariantNotFound)
}

// matchSelector returns the variant carrying exactly the selected attributes.
func matchSelector(variants []domain.Variant, selector []int64) (*domain.Variant, bool) {
	want := slices.Clone(selector)
	slices.Sort(want)
	want = slices.Compact(want)
	for _, v := range variants {
		have := slices.Clone(v.Attributes)
		slices.Sort(have)
		if slices.Equal(have, want) {
			return &v, true
		}
	}
	return nil, false
}

// pickDefault applies the default variant rule. With preferInStock only
// variants holding stock qualify: the flagged default first, then the
// cheapest one in stock. Otherwise the flagged default, then the cheapest.
func pickDefault(variants []domain.Variant, preferInStock bool) (*domain.Variant, bool) {
	eligible := slices.Clone(variants)
	if preferInStock {
		eligible = slices.DeleteFunc(eligible, func(v domain.Variant) bool {
			return v.Quantity <= 0
		})
	}
	if len(eligible) == 0 {
		return nil, false
	}

	if i := slices.IndexFunc(eligible, func(v domain.Variant) bool { return v.Default }); i >= 0 {
		return &eligible[i], true
	}

	cheapest := slices.MinFunc(eligible, func(a, b domain.Variant) int {
		if c := a.PriceImpact.Cmp(b.PriceImpact); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return &cheapest, true
}
