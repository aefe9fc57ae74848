package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountRule is a cart rule. Rules with AutoApply set are added and removed
// by reconciliation; the others are applied by code.
type DiscountRule struct {
	ID                int64
	Code              string
	Name              string
	Active            bool
	AutoApply         bool
	ValidFrom         time.Time
	ValidTo           time.Time
	QuantityRemaining int
	MinimumAmount     decimal.Decimal
	CustomerID        int64 // 0 means any customer
	ReductionPercent  decimal.Decimal
	ReductionAmount   decimal.Decimal
}

// Customer is the shopper a mutation acts for.
type Customer struct {
	ID       int64
	LoggedIn bool
}
