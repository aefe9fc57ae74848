package lineitem

import (
	"errors"
	"slices"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinimum    = errors.New("quantity below minimal quantity")
	ErrMaximumReached  = errors.New("maximum quantity reached")
	ErrNotInCart       = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Limits bound the quantity a single line may hold. Maximum 0 means no ceiling.
type Limits struct {
	Minimum int
	Maximum int
}

// Store edits the line items of one cart in place. It is not safe for
// concurrent use; callers hold the cart lock.
type Store struct {
	cart *domain.Cart
	now  func() time.Time
}

func New(cart *domain.Cart) *Store {
	return &Store{cart: cart, now: time.Now}
}

// Find returns the line with exactly this identity.
func (s *Store) Find(key domain.IdentityKey) (domain.LineItem, bool) {
	i := s.index(key)
	if i < 0 {
		return domain.LineItem{}, false
	}
	return s.cart.Items[i], true
}

// Match returns the first line for the product, variant and customization,
// whatever its delivery address.
func (s *Store) Match(productID, variantID, customizationID int64) (domain.LineItem, bool) {
	for _, item := range s.cart.Items {
		if item.Key.ProductID == productID &&
			item.Key.VariantID == variantID &&
			item.Key.CustomizationID == customizationID {
			return item, true
		}
	}
	return domain.LineItem{}, false
}

// AddOrIncrement applies delta in the given direction and returns the new
// quantity of the line. A decrease reaching zero removes the line and
// returns 0. On error the store is left unchanged.
func (s *Store) AddOrIncrement(key domain.IdentityKey, delta int, direction domain.Direction, unitPrice decimal.Decimal, limits Limits) (int, error) {
	if delta <= 0 {
		return 0, ErrInvalidQuantity
	}

	i := s.index(key)
	current := 0
	if i >= 0 {
		current = s.cart.Items[i].Quantity
	}

	var next int
	switch direction {
	case domain.DirectionDecrease:
		if i < 0 {
			return 0, ErrNotInCart
		}
		next = current - delta
		if next <= 0 {
			s.cart.Items = slices.Delete(s.cart.Items, i, i+1)
			s.touch()
			return 0, nil
		}
	default:
		next = current + delta
	}

	if next < limits.Minimum {
		return 0, ErrBelowMinimum
	}
	if limits.Maximum > 0 && next > limits.Maximum {
		return 0, ErrMaximumReached
	}

	if i < 0 {
		s.cart.Items = append(s.cart.Items, domain.LineItem{
			Key:       key,
			Quantity:  next,
			UnitPrice: unitPrice,
			AddedAt:   s.now(),
		})
	} else {
		s.cart.Items[i].Quantity = next
	}
	s.touch()
	return next, nil
}

// Remove deletes the line. It reports whether a line was removed.
func (s *Store) Remove(key domain.IdentityKey) bool {
	i := s.index(key)
	if i < 0 {
		return false
	}
	s.cart.Items = slices.Delete(s.cart.Items, i, i+1)
	s.touch()
	return true
}

func (s *Store) IsEmpty() bool {
	return s.TotalQuantity() == 0
}

func (s *Store) TotalQuantity() int {
	total := 0
	for _, item := range s.cart.Items {
		if item.Quantity > 0 {
			total += item.Quantity
		}
	}
	return total
}

// OtherCustomizations sums the customized lines of a product, skipping the
// given customization. found is false when there are none.
func (s *Store) OtherCustomizations(productID, excludeCustomization int64) (quantity int, found bool) {
	for _, item := range s.cart.Items {
		if item.Key.ProductID != productID || item.Key.CustomizationID == 0 {
			continue
		}
		if item.Key.CustomizationID == excludeCustomization {
			continue
		}
		quantity += item.Quantity
		found = true
	}
	return quantity, found
}

func (s *Store) Items() []domain.LineItem {
	return slices.Clone(s.cart.Items)
}

func (s *Store) index(key domain.IdentityKey) int {
	return slices.IndexFunc(s.cart.Items, func(item domain.LineItem) bool {
		return item.Key == key
	})
}

func (s *Store) touch() {
	s.cart.UpdatedAt = s.now()
}
