package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	Topic   = "checkout-outbox"
	GroupID = "cart-engine-consumer"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller consumes completed checkouts and drops the checked-out cart along
// with its cached snapshot.
type Poller struct {
	repo   repository.CartRepository
	reader messageReader
	cache  cache.SnapshotCache
	logger *zap.Logger
}

func NewPoller(repo repository.CartRepository, snapshots cache.SnapshotCache, logger *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{repo: repo, reader: reader, cache: snapshots, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.getMessageAndDeleteCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

type checkoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	CartID     string `json:"cart_id"`
}

func (p *Poller) getMessageAndDeleteCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("error reading message", zap.Error(err))
		}
		return
	}

	var payload checkoutCompleted
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		p.logger.Warn("error parsing message", zap.Error(err), zap.Int64("offset", m.Offset))
		return
	}
	if payload.CartID == "" {
		p.logger.Warn("missing cart_id", zap.String("checkout_id", payload.CheckoutID))
		return
	}

	if err := p.repo.DeleteCart(ctx, payload.CartID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		p.logger.Error("failed to delete cart", zap.String("cart_id", payload.CartID), zap.Error(err))
	}

	if err := p.cache.Delete(ctx, payload.CartID); err != nil {
		p.logger.Warn("failed to delete cached snapshot", zap.String("cart_id", payload.CartID), zap.Error(err))
	}
}
