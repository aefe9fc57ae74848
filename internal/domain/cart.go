package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// IdentityKey identifies a line item inside a cart.
type IdentityKey struct {
	ProductID         int64 `json:"product_id"`
	VariantID         int64 `json:"variant_id"`
	CustomizationID   int64 `json:"customization_id"`
	DeliveryAddressID int64 `json:"delivery_address_id"`
}

type LineItem struct {
	Key       IdentityKey     `json:"key"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // price at add time, not the live catalog price
	AddedAt   time.Time       `json:"added_at"`
}

// Total returns unit price * quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID             string     `json:"id"`
	CustomerID     int64      `json:"customer_id"`
	Items          []LineItem `json:"items"`
	AppliedRules   []int64    `json:"applied_rules"`
	Gift           bool       `json:"gift"`
	GiftMessage    string     `json:"gift_message"`
	DeliveryOption string     `json:"delivery_option"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart. It is not persisted until a mutation commits.
func NewCart(id string, customerID int64) *Cart {
	now := time.Now()
	return &Cart{
		ID:         id,
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasRule reports whether the rule id is in the applied set.
func (c *Cart) HasRule(ruleID int64) bool {
	return slices.Contains(c.AppliedRules, ruleID)
}

// AddRule adds the rule id to the applied set. Returns false if already present.
func (c *Cart) AddRule(ruleID int64) bool {
	if c.HasRule(ruleID) {
		return false
	}
	c.AppliedRules = append(c.AppliedRules, ruleID)
	return true
}

// RemoveRule removes the rule id from the applied set. Returns false if absent.
func (c *Cart) RemoveRule(ruleID int64) bool {
	i := slices.Index(c.AppliedRules, ruleID)
	if i < 0 {
		return false
	}
	c.AppliedRules = slices.Delete(c.AppliedRules, i, i+1)
	return true
}

// Subtotal sums line totals, before discounts.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Total())
	}
	return total
}

// ResetCheckoutState clears cart level choices that only make sense with products in it.
func (c *Cart) ResetCheckoutState() {
	c.DeliveryOption = ""
	c.Gift = false
	c.GiftMessage = ""
}

// Clone returns a deep copy, so callers can build views without sharing slices.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = slices.Clone(c.Items)
	cp.AppliedRules = slices.Clone(c.AppliedRules)
	return &cp
}
