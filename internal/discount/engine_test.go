package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func cartWith(subtotal int64) *domain.Cart {
	cart := domain.NewCart("cart-1", 7)
	cart.Items = []domain.LineItem{{
		Key:       domain.IdentityKey{ProductID: 1},
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(subtotal),
	}}
	return cart
}

func save10() domain.DiscountRule {
	return domain.DiscountRule{
		ID:                10,
		Code:              "SAVE10",
		Name:              "Save 10%",
		Active:            true,
		QuantityRemaining: 100,
		ReductionPercent:  decimal.NewFromInt(10),
	}
}

func freeGift() domain.DiscountRule {
	return domain.DiscountRule{
		ID:                20,
		Name:              "Orders over 50",
		Active:            true,
		AutoApply:         true,
		QuantityRemaining: 100,
		MinimumAmount:     decimal.NewFromInt(50),
		ReductionAmount:   decimal.NewFromInt(5),
	}
}

func newEngine(rules ...domain.DiscountRule) *Engine {
	return NewEngine(NewMemoryRules(rules...), NewStandardPredicate(), zap.NewNop())
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.Equal(t, kind, verr.Kind)
}

func TestApplyByCode_Success(t *testing.T) {
	engine := newEngine(save10())
	cart := cartWith(20)

	rule, err := engine.ApplyByCode(context.Background(), cart, domain.Customer{ID: 7}, "  SAVE10 ")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rule.ID)
	assert.Equal(t, []int64{10}, cart.AppliedRules)

	rec := engine.Reconcile(context.Background(), cart, domain.Customer{ID: 7})
	assert.False(t, rec.Changed())
	assert.True(t, cart.HasRule(10))
}

func TestApplyByCode_EmptyCode(t *testing.T) {
	engine := newEngine(save10())
	cart := cartWith(20)

	_, err := engine.ApplyByCode(context.Background(), cart, domain.Customer{}, "   ")
	requireKind(t, err, domain.KindDiscountCodeEmpty)
	assert.Empty(t, cart.AppliedRules)
}

func TestApplyByCode_InvalidFormat(t *testing.T) {
	engine := newEngine(save10())
	cart := cartWith(20)

	_, err := engine.ApplyByCode(context.Background(), cart, domain.Customer{}, "<script>alert(1)</script>")
	requireKind(t, err, domain.KindDiscountCodeInvalidFormat)
}

func TestApplyByCode_NotFound(t *testing.T) {
	engine := newEngine(save10())

	_, err := engine.ApplyByCode(context.Background(), cartWith(20), domain.Customer{}, "save10")
	requireKind(t, err, domain.KindDiscountNotFound)
}

func TestApplyByCode_AlreadyApplied(t *testing.T) {
	engine := newEngine(save10())
	cart := cartWith(20)
	cart.AddRule(10)

	_, err := engine.ApplyByCode(context.Background(), cart, domain.Customer{}, "SAVE10")
	requireKind(t, err, domain.KindDiscountAlreadyApplied)
	assert.Equal(t, []int64{10}, cart.AppliedRules)
}

func TestApplyByCode_PredicateRejects(t *testing.T) {
	rule := save10()
	rule.ValidTo = time.Now().Add(-time.Hour)
	engine := newEngine(rule)
	cart := cartWith(20)

	_, err := engine.ApplyByCode(context.Background(), cart, domain.Customer{}, "SAVE10")
	requireKind(t, err, domain.KindDiscountRuleInvalid)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This voucher has expired", verr.Reason)
	assert.Empty(t, cart.AppliedRules)
}

func TestRemoveByID_Idempotent(t *testing.T) {
	engine := newEngine(save10())
	cart := cartWith(20)
	cart.AddRule(10)

	assert.True(t, engine.RemoveByID(cart, 10))
	assert.False(t, engine.RemoveByID(cart, 10))
	assert.False(t, engine.RemoveByID(cart, 999))
	assert.Empty(t, cart.AppliedRules)
}

func TestReconcile_AddsAndRemovesAutoRules(t *testing.T) {
	engine := newEngine(freeGift())
	cart := cartWith(60)
	customer := domain.Customer{ID: 7}

	rec := engine.Reconcile(context.Background(), cart, customer)
	assert.Equal(t, []int64{20}, rec.Added)
	assert.True(t, cart.HasRule(20))

	cart.Items[0].UnitPrice = decimal.NewFromInt(40)
	rec = engine.Reconcile(context.Background(), cart, customer)
	assert.Equal(t, []int64{20}, rec.Removed)
	assert.False(t, cart.HasRule(20))

	rec = engine.Reconcile(context.Background(), cart, customer)
	assert.False(t, rec.Changed())
}

func TestReconcile_RemovalRunsBeforeAddition(t *testing.T) {
	stale := freeGift()
	stale.ID = 1
	stale.MinimumAmount = decimal.NewFromInt(100)
	replacement := freeGift()
	replacement.ID = 2
	replacement.MinimumAmount = decimal.NewFromInt(10)

	// replacement is only valid once the stale rule is gone
	predicate := PredicateFunc(func(ctx context.Context, rule domain.DiscountRule, cart *domain.Cart, c domain.Customer) error {
		if rule.ID == 2 && cart.HasRule(1) {
			return reject("not cumulative")
		}
		return NewStandardPredicate().Validate(ctx, rule, cart, c)
	})
	engine := NewEngine(NewMemoryRules(stale, replacement), predicate, zap.NewNop())
	cart := cartWith(50)
	cart.AddRule(1)

	rec := engine.Reconcile(context.Background(), cart, domain.Customer{})
	assert.Equal(t, []int64{1}, rec.Removed)
	assert.Equal(t, []int64{2}, rec.Added)
	assert.Equal(t, []int64{2}, cart.AppliedRules)
}

func TestReconcile_PredicateFailureTreatedAsInvalid(t *testing.T) {
	predicate := PredicateFunc(func(context.Context, domain.DiscountRule, *domain.Cart, domain.Customer) error {
		return errors.New("rule service down")
	})
	engine := NewEngine(NewMemoryRules(save10()), predicate, zap.NewNop())
	cart := cartWith(20)
	cart.AddRule(10)

	rec := engine.Reconcile(context.Background(), cart, domain.Customer{})
	assert.Equal(t, []int64{10}, rec.Removed)
	assert.Empty(t, cart.AppliedRules)
}

func TestReconcile_PredicatePanicDoesNotEscape(t *testing.T) {
	predicate := PredicateFunc(func(context.Context, domain.DiscountRule, *domain.Cart, domain.Customer) error {
		panic("boom")
	})
	engine := NewEngine(NewMemoryRules(freeGift()), predicate, zap.NewNop())
	cart := cartWith(80)

	assert.NotPanics(t, func() {
		rec := engine.Reconcile(context.Background(), cart, domain.Customer{})
		assert.False(t, rec.Changed())
	})
}

func TestReconcile_DeletedRuleIsDropped(t *testing.T) {
	engine := newEngine()
	cart := cartWith(20)
	cart.AddRule(404)

	rec := engine.Reconcile(context.Background(), cart, domain.Customer{})
	assert.Equal(t, []int64{404}, rec.Removed)
}

func TestRules_SkipsMissing(t *testing.T) {
	engine := newEngine(save10())
	cart := cartWith(20)
	cart.AppliedRules = []int64{10, 404}

	rules, err := engine.Rules(context.Background(), cart)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "SAVE10", rules[0].Code)
}
