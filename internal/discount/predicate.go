package discount

import (
	"context"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// Rejection is returned by a Predicate when a rule does not apply to a cart.
// Any other error means the predicate itself failed.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func reject(reason string) error { return &Rejection{Reason: reason} }

// Predicate decides whether a rule is currently valid for a cart and customer.
type Predicate interface {
	Validate(ctx context.Context, rule domain.DiscountRule, cart *domain.Cart, customer domain.Customer) error
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(ctx context.Context, rule domain.DiscountRule, cart *domain.Cart, customer domain.Customer) error

func (f PredicateFunc) Validate(ctx context.Context, rule domain.DiscountRule, cart *domain.Cart, customer domain.Customer) error {
	return f(ctx, rule, cart, customer)
}

// StandardPredicate checks activity, the validity window, usage limits,
// customer restriction and minimum purchase.
type StandardPredicate struct {
	now func() time.Time
}

func NewStandardPredicate() *StandardPredicate {
	return &StandardPredicate{now: time.Now}
}

func (p *StandardPredicate) Validate(_ context.Context, rule domain.DiscountRule, cart *domain.Cart, customer domain.Customer) error {
	now := p.now()
	switch {
	case !rule.Active:
		return reject("This voucher is disabled")
	case !rule.ValidFrom.IsZero() && now.Before(rule.ValidFrom):
		return reject("This voucher is not valid yet")
	case !rule.ValidTo.IsZero() && now.After(rule.ValidTo):
		return reject("This voucher has expired")
	case rule.QuantityRemaining <= 0:
		return reject("This voucher has already been used")
	case rule.CustomerID != 0 && rule.CustomerID != customer.ID:
		return reject("You cannot use this voucher")
	case cart == nil || len(cart.Items) == 0:
		return reject("Cart is empty")
	}

	if rule.MinimumAmount.IsPositive() && cart.Subtotal().LessThan(rule.MinimumAmount) {
		return reject("The minimum amount to benefit from this promo code is " + rule.MinimumAmount.StringFixed(2))
	}
	return nil
}
