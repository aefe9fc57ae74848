package stock

import "github.com/fjod/go_cart/cart-engine/internal/domain"

// Stockable is anything with a stock level: a product or one of its variants.
type Stockable interface {
	StockQuantity() int
	StockPolicy() domain.OutOfStockPolicy
}

// Checker answers availability questions. It never mutates stock.
type Checker struct {
	allowOutOfStockOrders bool // shop wide default for OutOfStockDefault
}

func NewChecker(allowOutOfStockOrders bool) *Checker {
	return &Checker{allowOutOfStockOrders: allowOutOfStockOrders}
}

// AllowsOutOfStock reports whether the policy lets shoppers order without stock.
func (c *Checker) AllowsOutOfStock(policy domain.OutOfStockPolicy) bool {
	switch policy {
	case domain.OutOfStockAllow:
		return true
	case domain.OutOfStockDefault:
		return c.allowOutOfStockOrders
	default:
		return false
	}
}

// PreferInStock tells the catalog whether a default variant must have stock.
func (c *Checker) PreferInStock(policy domain.OutOfStockPolicy) bool {
	return !c.AllowsOutOfStock(policy)
}

// CheckAvailability reports whether requested units can be fulfilled.
// Backorder enabled items are always available.
func (c *Checker) CheckAvailability(item Stockable, requested int) bool {
	if requested <= 0 {
		return true
	}
	if c.AllowsOutOfStock(item.StockPolicy()) {
		return true
	}
	return item.StockQuantity() >= requested
}
