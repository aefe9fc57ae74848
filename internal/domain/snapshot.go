package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable, presentation ready view of a cart.
type Snapshot struct {
	CartID           string            `json:"cart_id"`
	Lines            []SnapshotLine    `json:"lines"`
	ProductsCount    int               `json:"products_count"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	DiscountTotal    decimal.Decimal   `json:"discount_total"`
	Total            decimal.Decimal   `json:"total"`
	AppliedDiscounts []AppliedDiscount `json:"applied_discounts"`
	Gift             bool              `json:"gift"`
	GiftMessage      string            `json:"gift_message,omitempty"`
	DeliveryOption   string            `json:"delivery_option,omitempty"`
	Empty            bool              `json:"empty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type SnapshotLine struct {
	Key       IdentityKey     `json:"key"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type AppliedDiscount struct {
	RuleID int64           `json:"rule_id"`
	Code   string          `json:"code,omitempty"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}
