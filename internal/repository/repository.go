package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository loads and stores whole carts. Mutual exclusion per cart is
// provided by lock.Locker, not by the repository.
type CartRepository interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, cartID string) error
}
