package catalog

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// MemoryCatalog is an in-process Catalog, used by tests and local runs.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	variants map[int64][]domain.Variant
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[int64]domain.Product),
		variants: make(map[int64][]domain.Variant),
	}
}

func (m *MemoryCatalog) PutProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// PutVariant adds a variant and marks its product as having variants.
// The variant inherits the product's out of stock policy.
func (m *MemoryCatalog) PutVariant(v domain.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[v.ProductID]; ok {
		p.HasVariants = true
		m.products[p.ID] = p
		v.Policy = p.OutOfStock
	}
	m.variants[v.ProductID] = append(m.variants[v.ProductID], v)
}

// SetStock changes the stock of a product, or of a variant when variantID is set.
func (m *MemoryCatalog) SetStock(productID, variantID int64, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if variantID == 0 {
		if p, ok := m.products[productID]; ok {
			p.Quantity = quantity
			m.products[productID] = p
		}
		return
	}
	for i := range m.variants[productID] {
		if m.variants[productID][i].ID == variantID {
			m.variants[productID][i].Quantity = quantity
		}
	}
}

func (m *MemoryCatalog) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (m *MemoryCatalog) GetVariant(_ context.Context, productID int64, selector []int64) (*domain.Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := matchSelector(m.variants[productID], selector); ok {
		return v, nil
	}
	return nil, ErrVariantNotFound
}

func (m *MemoryCatalog) GetDefaultVariant(_ context.Context, productID int64, preferInStock bool) (*domain.Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := pickDefault(m.variants[productID], preferInStock); ok {
		return v, nil
	}
	return nil, ErrVariantNotFound
}

func (m *MemoryCatalog) Variant(_ context.Context, productID, variantID int64) (*domain.Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.variants[productID] {
		if v.ID == variantID {
			return &v, nil
		}
	}
	return nil, ErrVariantNotFound
}
