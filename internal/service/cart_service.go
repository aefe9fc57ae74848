package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/discount"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/lock"
	"github.com/fjod/go_cart/cart-engine/internal/metrics"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/fjod/go_cart/cart-engine/internal/snapshot"
	"github.com/fjod/go_cart/cart-engine/internal/stock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSessionRequired = errors.New("a session is required to change the cart")
	ErrInvalidToken    = errors.New("invalid token for logged in customer")
	ErrCartForbidden   = errors.New("cart belongs to another customer")
)

var tracer = otel.Tracer("github.com/fjod/go_cart/cart-engine/internal/service")

// EventPublisher receives the events of committed mutations. Publish must not block.
type EventPublisher interface {
	Publish(events ...domain.Event)
}

type Dependencies struct {
	Catalog catalog.Catalog
	Rules   *discount.Engine
	Repo    repository.CartRepository
	Locker  lock.Locker
	Cache   cache.SnapshotCache
	Events  EventPublisher
	Stock   *stock.Checker
	Logger  *zap.Logger

	// MaxLineQuantity caps the quantity of one line. 0 means no cap.
	MaxLineQuantity int
}

type CartService struct {
	catalog   catalog.Catalog
	rules     *discount.Engine
	repo      repository.CartRepository
	locker    lock.Locker
	cache     cache.SnapshotCache
	events    EventPublisher
	stock     *stock.Checker
	logger    *zap.Logger
	maxLine   int
	sfg       singleflight.Group // Prevents cache stampede
	newCartID func() string
}

func NewCartService(d Dependencies) *CartService {
	s := &CartService{
		catalog:   d.Catalog,
		rules:     d.Rules,
		repo:      d.Repo,
		locker:    d.Locker,
		cache:     d.Cache,
		events:    d.Events,
		stock:     d.Stock,
		logger:    d.Logger,
		maxLine:   d.MaxLineQuantity,
		newCartID: uuid.NewString,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.stock == nil {
		s.stock = stock.NewChecker(false)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ProcessMutation runs one intent against the cart named by rc. Validation
// failures are reported in the result; the returned error is reserved for
// boundary refusals and infrastructure failures, in which case nothing was
// saved.
func (s *CartService) ProcessMutation(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "CartService.ProcessMutation")
	defer span.End()
	span.SetAttributes(
		attribute.String("cart.id", rc.CartID),
		attribute.String("mutation.kind", string(intent.Kind)),
	)

	start := time.Now()
	result, err := s.dispatch(ctx, rc, intent)
	metrics.MutationDuration.WithLabelValues(string(intent.Kind)).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.MutationsTotal.WithLabelValues(string(intent.Kind), metrics.OutcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("cart mutation failed",
			zap.String("cart_id", rc.CartID),
			zap.String("kind", string(intent.Kind)),
			zap.Error(err))
	case !result.Success:
		metrics.MutationsTotal.WithLabelValues(string(intent.Kind), metrics.OutcomeRejected).Inc()
		for _, e := range result.Errors() {
			metrics.ValidationErrorsTotal.WithLabelValues(string(e.Kind)).Inc()
		}
	default:
		metrics.MutationsTotal.WithLabelValues(string(intent.Kind), metrics.OutcomeSuccess).Inc()
	}
	return result, err
}

func (s *CartService) dispatch(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	if !rc.HasSession {
		return domain.MutationResult{}, ErrSessionRequired
	}
	if rc.LoggedIn && !rc.TokenValid {
		return domain.MutationResult{}, ErrInvalidToken
	}

	switch intent.Kind {
	case domain.MutationAdd, domain.MutationUpdate:
		return s.processAdd(ctx, rc, intent)
	case domain.MutationRemove:
		return s.processRemove(ctx, rc, intent)
	case domain.MutationApplyDiscount:
		return s.applyDiscount(ctx, rc, intent)
	case domain.MutationRemoveDiscount:
		return s.removeDiscount(ctx, rc, intent)
	default:
		return domain.MutationResult{}, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidIntent, intent.Kind)
	}
}

// GetSnapshot renders the cart, from the snapshot cache when possible.
func (s *CartService) GetSnapshot(ctx context.Context, cartID string) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "CartService.GetSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", cartID))

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(cartID, func() (any, error) {
		cached, err := s.cache.Get(ctx, cartID)
		if err == nil {
			metrics.SnapshotCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.SnapshotCacheLookups.WithLabelValues("miss").Inc()
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("snapshot cache get failed", zap.String("cart_id", cartID), zap.Error(err))
		}

		// the fill runs under the cart lock, so a mutation committing in
		// between cannot be overwritten by an older render
		unlock, err := s.locker.Lock(ctx, cartID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock cart %s: %w", cartID, err)
		}
		defer unlock()

		cart, err := s.repo.GetCart(ctx, cartID)
		if err != nil {
			return nil, err
		}

		built, err := s.buildSnapshot(ctx, cart)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, cartID, built); err != nil {
			s.logger.Warn("snapshot cache set failed", zap.String("cart_id", cartID), zap.Error(err))
		}
		return built, nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrCartNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return domain.Snapshot{}, err
	}

	return *v.(*domain.Snapshot), nil
}

func (s *CartService) buildSnapshot(ctx context.Context, cart *domain.Cart) (*domain.Snapshot, error) {
	rules, err := s.rules.Rules(ctx, cart)
	if err != nil {
		return nil, err
	}
	snap := snapshot.Build(cart, rules)
	return &snap, nil
}

// txn is the state of one mutation inside the cart's exclusive section.
type txn struct {
	cartID   string
	customer domain.Customer
	cart     *domain.Cart // nil while no cart exists
	exists   bool         // cart was loaded from the repository
	dirty    bool
	errs     domain.ValidationErrors
	quantity int
	events   []domain.Event
}

func (t *txn) reject(errs ...domain.ValidationError) {
	t.errs = append(t.errs, errs...)
}

// ensureCart creates the cart on first use. It is saved only if the
// mutation commits.
func (t *txn) ensureCart() *domain.Cart {
	if t.cart == nil {
		t.cart = domain.NewCart(t.cartID, t.customer.ID)
	}
	return t.cart
}

func (t *txn) emit(eventType domain.EventType, key domain.IdentityKey, quantity int, ruleID int64) {
	t.events = append(t.events, domain.Event{
		Type:       eventType,
		CartID:     t.cartID,
		CustomerID: t.customer.ID,
		Key:        key,
		Quantity:   quantity,
		RuleID:     ruleID,
		OccurredAt: time.Now(),
	})
}

// withCart runs fn while holding the cart lock, then reconciles discount
// rules, saves and renders the cart. The snapshot cache is refreshed before
// the lock is released; events are published after.
func (s *CartService) withCart(ctx context.Context, rc domain.RequestContext, fn func(ctx context.Context, t *txn) error) (domain.MutationResult, error) {
	t := &txn{cartID: rc.CartID, customer: rc.Customer()}
	if t.cartID == "" {
		t.cartID = s.newCartID()
	}

	unlock, err := s.locker.Lock(ctx, t.cartID)
	if err != nil {
		return domain.MutationResult{}, fmt.Errorf("failed to lock cart %s: %w", t.cartID, err)
	}

	result, saved, err := s.runLocked(ctx, rc, t, fn)
	unlock()
	if err != nil {
		return domain.MutationResult{}, err
	}

	if saved {
		s.events.Publish(t.events...)
	}
	return result, nil
}

func (s *CartService) runLocked(ctx context.Context, rc domain.RequestContext, t *txn, fn func(ctx context.Context, t *txn) error) (domain.MutationResult, bool, error) {
	if rc.CartID != "" {
		cart, err := s.repo.GetCart(ctx, rc.CartID)
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
		case err != nil:
			return domain.MutationResult{}, false, fmt.Errorf("failed to load cart: %w", err)
		default:
			if cart.CustomerID != 0 && cart.CustomerID != rc.CustomerID {
				return domain.MutationResult{}, false, fmt.Errorf("%w: %s", ErrCartForbidden, rc.CartID)
			}
			t.cart = cart
			t.exists = true
			if cart.CustomerID == 0 && rc.LoggedIn {
				// a guest cart is claimed by the customer who logs in with it
				cart.CustomerID = rc.CustomerID
				t.dirty = true
			}
		}
	}

	if err := fn(ctx, t); err != nil {
		return domain.MutationResult{}, false, err
	}

	if !t.exists && !t.dirty {
		// no cart was created, so there is nothing to render
		if len(t.errs) > 0 {
			return domain.Failed("", 0, t.errs, nil), false, nil
		}
		return domain.Succeeded("", 0, nil), false, nil
	}

	changed := t.dirty
	if rec := s.rules.Reconcile(ctx, t.cart, t.customer); rec.Changed() {
		changed = true
		for _, id := range rec.Removed {
			t.emit(domain.EventDiscountRemoved, domain.IdentityKey{}, 0, id)
		}
		for _, id := range rec.Added {
			t.emit(domain.EventDiscountApplied, domain.IdentityKey{}, 0, id)
		}
	}

	if changed {
		if err := ctx.Err(); err != nil {
			return domain.MutationResult{}, false, err
		}
		if err := s.repo.SaveCart(ctx, t.cart); err != nil {
			return domain.MutationResult{}, false, fmt.Errorf("failed to save cart: %w", err)
		}
	}

	snap, err := s.buildSnapshot(ctx, t.cart)
	if err != nil {
		s.logger.Warn("failed to render cart after mutation",
			zap.String("cart_id", t.cartID), zap.Error(err))
		snap = nil
	}
	if changed {
		s.refreshCache(t.cartID, snap)
	}

	if len(t.errs) > 0 {
		return domain.Failed(t.cartID, t.quantity, t.errs, snap), changed, nil
	}
	return domain.Succeeded(t.cartID, t.quantity, snap), changed, nil
}

// refreshCache stores the render of a just saved cart, or drops the entry
// when there is none.
func (s *CartService) refreshCache(cartID string, snap *domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if snap != nil {
		err := s.cache.Set(ctx, cartID, snap)
		if err == nil {
			return
		}
		s.logger.Warn("snapshot cache set failed", zap.String("cart_id", cartID), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, cartID); err != nil {
		s.logger.Warn("snapshot cache invalidate failed", zap.String("cart_id", cartID), zap.Error(err))
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(...domain.Event) {}
