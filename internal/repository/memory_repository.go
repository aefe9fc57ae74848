package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// memoryRepository keeps carts in process. Carts are copied on the way in
// and out so callers never share state with the store.
type memoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() CartRepository {
	return &memoryRepository{carts: make(map[string]*domain.Cart)}
}

func (m *memoryRepository) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cart, ok := m.carts[cartID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *memoryRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	m.carts[cart.ID] = cart.Clone()
	return nil
}

func (m *memoryRepository) DeleteCart(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[cartID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, cartID)
	return nil
}
