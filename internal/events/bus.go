package events

import (
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"go.uber.org/zap"
)

// Bus fans committed cart events out to subscribers. Publish never blocks:
// a subscriber that falls behind loses events rather than stalling carts.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan domain.Event
	closed bool
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe returns a channel receiving every event published from now on.
// The channel is closed by Close.
func (b *Bus) Subscribe(buffer int) <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.Event, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(events ...domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, e := range events {
		for _, ch := range b.subs {
			select {
			case ch <- e:
			default:
				b.logger.Warn("event subscriber is full, dropping event",
					zap.String("type", string(e.Type)), zap.String("cart_id", e.CartID))
			}
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
