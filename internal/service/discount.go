package service

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

func (s *CartService) applyDiscount(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	return s.withCart(ctx, rc, func(ctx context.Context, t *txn) error {
		// codes are checked against a blank cart when none exists yet; the
		// cart is only kept if the rule is accepted
		cart := t.cart
		if cart == nil {
			cart = domain.NewCart(t.cartID, t.customer.ID)
		}

		rule, err := s.rules.ApplyByCode(ctx, cart, t.customer, intent.DiscountCode)
		var verr domain.ValidationError
		if errors.As(err, &verr) {
			t.reject(verr)
			return nil
		}
		if err != nil {
			return err
		}

		t.cart = cart
		t.dirty = true
		t.emit(domain.EventDiscountApplied, domain.IdentityKey{}, 0, rule.ID)
		return nil
	})
}

// removeDiscount drops a rule from the cart. The usual reconcile pass follows,
// so an auto-apply rule the cart still qualifies for comes straight back.
func (s *CartService) removeDiscount(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	return s.withCart(ctx, rc, func(_ context.Context, t *txn) error {
		if t.cart == nil {
			return nil
		}
		if s.rules.RemoveByID(t.cart, intent.DiscountRuleID) {
			t.dirty = true
			t.emit(domain.EventDiscountRemoved, domain.IdentityKey{}, 0, intent.DiscountRuleID)
		}
		return nil
	})
}
