package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// OutOfStockPolicy controls whether a product can be ordered without stock.
type OutOfStockPolicy int

const (
	OutOfStockDeny OutOfStockPolicy = iota
	OutOfStockAllow
	// OutOfStockDefault defers to the shop wide setting.
	OutOfStockDefault
)

type Product struct {
	ID                    int64
	Name                  string
	Price                 decimal.Decimal
	Active                bool
	MinimalQuantity       int
	Quantity              int
	OutOfStock            OutOfStockPolicy
	RequiresCustomization bool
	HasVariants           bool
	RestrictedTo          []int64 // customer ids allowed to buy; empty means everyone
}

// CheckAccess reports whether the customer may buy this product.
func (p *Product) CheckAccess(customerID int64) bool {
	if len(p.RestrictedTo) == 0 {
		return true
	}
	return slices.Contains(p.RestrictedTo, customerID)
}

func (p *Product) StockQuantity() int { return p.Quantity }
func (p *Product) StockPolicy() OutOfStockPolicy { return p.OutOfStock }
func (p *Product) MinimumOrderQuantity() int { return max(p.MinimalQuantity, 1) }

type Variant struct {
	ID              int64
	ProductID       int64
	PriceImpact     decimal.Decimal
	MinimalQuantity int
	Quantity        int
	Default         bool
	Attributes      []int64

	// policy is inherited from the owning product
	Policy OutOfStockPolicy
}

func (v *Variant) StockQuantity() int { return v.Quantity }
func (v *Variant) StockPolicy() OutOfStockPolicy { return v.Policy }
func (v *Variant) MinimumOrderQuantity() int { return max(v.MinimalQuantity, 1) }
