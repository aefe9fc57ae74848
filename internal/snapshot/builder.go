// Package snapshot turns a cart into the read model shown to shoppers.
package snapshot

import (
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Build computes the presentation view of a cart. rules are the applied
// rules resolved from the cart's rule ids; rules the cart does not reference
// are ignored. The cart is not modified.
func Build(cart *domain.Cart, rules []domain.DiscountRule) domain.Snapshot {
	snap := domain.Snapshot{
		CartID:           cart.ID,
		Lines:            make([]domain.SnapshotLine, 0, len(cart.Items)),
		Subtotal:         decimal.Zero,
		DiscountTotal:    decimal.Zero,
		AppliedDiscounts: make([]domain.AppliedDiscount, 0, len(cart.AppliedRules)),
		Gift:             cart.Gift,
		GiftMessage:      cart.GiftMessage,
		DeliveryOption:   cart.DeliveryOption,
		UpdatedAt:        cart.UpdatedAt,
	}

	for _, item := range cart.Items {
		line := domain.SnapshotLine{
			Key:       item.Key,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.Total(),
		}
		snap.Lines = append(snap.Lines, line)
		snap.ProductsCount += item.Quantity
		snap.Subtotal = snap.Subtotal.Add(line.LineTotal)
	}
	snap.Empty = snap.ProductsCount == 0

	byID := make(map[int64]domain.DiscountRule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	// percentages are taken of the subtotal first, fixed amounts come after;
	// the running total never goes below zero
	applied := make([]domain.DiscountRule, 0, len(cart.AppliedRules))
	for _, id := range cart.AppliedRules {
		if rule, ok := byID[id]; ok {
			applied = append(applied, rule)
		}
	}

	amounts := make([]decimal.Decimal, len(applied))
	remaining := snap.Subtotal
	for i, rule := range applied {
		amounts[i] = decimal.Zero
		if rule.ReductionPercent.IsPositive() {
			amount := capAt(snap.Subtotal.Mul(rule.ReductionPercent).Div(hundred).Round(2), remaining)
			amounts[i] = amount
			remaining = remaining.Sub(amount)
		}
	}
	for i, rule := range applied {
		if rule.ReductionAmount.IsPositive() {
			amount := capAt(rule.ReductionAmount, remaining)
			amounts[i] = amounts[i].Add(amount)
			remaining = remaining.Sub(amount)
		}
	}

	for i, rule := range applied {
		snap.DiscountTotal = snap.DiscountTotal.Add(amounts[i])
		snap.AppliedDiscounts = append(snap.AppliedDiscounts, domain.AppliedDiscount{
			RuleID: rule.ID,
			Code:   rule.Code,
			Name:   rule.Name,
			Amount: amounts[i],
		})
	}
	snap.Total = remaining
	return snap
}

func capAt(amount, limit decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(limit) {
		return limit
	}
	return amount
}
