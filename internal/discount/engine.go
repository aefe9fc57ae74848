package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/metrics"
	"go.uber.org/zap"
)

// Reconciliation lists the rule ids a reconcile pass changed.
type Reconciliation struct {
	Removed []int64
	Added   []int64
}

func (r Reconciliation) Changed() bool {
	return len(r.Removed) > 0 || len(r.Added) > 0
}

// Engine applies, removes and reconciles cart rules. It never locks; the
// caller owns the cart for the duration of a call.
type Engine struct {
	rules     RuleSource
	predicate Predicate
	logger    *zap.Logger
}

func NewEngine(rules RuleSource, predicate Predicate, logger *zap.Logger) *Engine {
	return &Engine{rules: rules, predicate: predicate, logger: logger}
}

// ApplyByCode adds the rule matching code to the cart. Validation failures
// come back as domain.ValidationError; other errors are lookup failures.
func (e *Engine) ApplyByCode(ctx context.Context, cart *domain.Cart, customer domain.Customer, code string) (*domain.DiscountRule, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError(domain.KindDiscountCodeEmpty)
	}
	if !IsCleanCode(code) {
		return nil, domain.NewValidationError(domain.KindDiscountCodeInvalidFormat)
	}

	rule, err := e.rules.ByCode(ctx, code)
	if errors.Is(err, ErrRuleNotFound) {
		return nil, domain.NewValidationError(domain.KindDiscountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}

	if cart.HasRule(rule.ID) {
		return nil, domain.NewValidationError(domain.KindDiscountAlreadyApplied)
	}

	valid, reason := e.validate(ctx, *rule, cart, customer)
	if !valid {
		return nil, domain.DiscountRuleInvalid(reason)
	}

	cart.AddRule(rule.ID)
	return rule, nil
}

// RemoveByID drops the rule from the cart. Removing an absent rule is a no-op.
func (e *Engine) RemoveByID(cart *domain.Cart, ruleID int64) bool {
	return cart.RemoveRule(ruleID)
}

// Reconcile removes applied rules the predicate now rejects, then adds the
// auto-apply rules that became eligible. Removal runs first so a stale rule
// never hides its replacement. Lookup and predicate failures are logged and
// never abort the pass.
func (e *Engine) Reconcile(ctx context.Context, cart *domain.Cart, customer domain.Customer) Reconciliation {
	var rec Reconciliation

	for _, id := range append([]int64(nil), cart.AppliedRules...) {
		rule, err := e.rules.ByID(ctx, id)
		if errors.Is(err, ErrRuleNotFound) {
			cart.RemoveRule(id)
			rec.Removed = append(rec.Removed, id)
			continue
		}
		if err != nil {
			e.logger.Warn("reconcile: rule lookup failed, keeping rule",
				zap.String("cart_id", cart.ID), zap.Int64("rule_id", id), zap.Error(err))
			continue
		}
		if valid, _ := e.validate(ctx, *rule, cart, customer); !valid {
			cart.RemoveRule(id)
			rec.Removed = append(rec.Removed, id)
		}
	}

	candidates, err := e.rules.AutoApply(ctx)
	if err != nil {
		e.logger.Warn("reconcile: listing auto rules failed",
			zap.String("cart_id", cart.ID), zap.Error(err))
	}
	for _, rule := range candidates {
		if cart.HasRule(rule.ID) {
			continue
		}
		if valid, _ := e.validate(ctx, rule, cart, customer); valid {
			cart.AddRule(rule.ID)
			rec.Added = append(rec.Added, rule.ID)
		}
	}

	metrics.ReconcileChanges.WithLabelValues("removed").Add(float64(len(rec.Removed)))
	metrics.ReconcileChanges.WithLabelValues("added").Add(float64(len(rec.Added)))
	return rec
}

// Rules resolves the applied rules of a cart, skipping ids that no longer exist.
func (e *Engine) Rules(ctx context.Context, cart *domain.Cart) ([]domain.DiscountRule, error) {
	out := make([]domain.DiscountRule, 0, len(cart.AppliedRules))
	for _, id := range cart.AppliedRules {
		rule, err := e.rules.ByID(ctx, id)
		if errors.Is(err, ErrRuleNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load discount rule %d: %w", id, err)
		}
		out = append(out, *rule)
	}
	return out, nil
}

func (e *Engine) validate(ctx context.Context, rule domain.DiscountRule, cart *domain.Cart, customer domain.Customer) (valid bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PredicateFailures.Inc()
			e.logger.Error("discount predicate panicked",
				zap.Int64("rule_id", rule.ID), zap.String("cart_id", cart.ID), zap.Any("panic", r))
			valid, reason = false, "voucher could not be checked"
		}
	}()

	err := e.predicate.Validate(ctx, rule, cart, customer)
	if err == nil {
		return true, ""
	}

	var rejection *Rejection
	if errors.As(err, &rejection) {
		return false, rejection.Reason
	}

	metrics.PredicateFailures.Inc()
	e.logger.Error("discount predicate failed",
		zap.Int64("rule_id", rule.ID), zap.String("cart_id", cart.ID), zap.Error(err))
	return false, "voucher could not be checked"
}
