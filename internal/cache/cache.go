package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// SnapshotCache holds rendered cart snapshots keyed by cart id.
type SnapshotCache interface {
	Get(ctx context.Context, cartID string) (*domain.Snapshot, error)
	Set(ctx context.Context, cartID string, snapshot *domain.Snapshot) error
	Delete(ctx context.Context, cartID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never stores anything. Used when no Redis is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Snapshot, error) { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, string, *domain.Snapshot) error   { return nil }
func (Noop) Delete(context.Context, string) error                  { return nil }
