package discount

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

var ErrRuleNotFound = errors.New("discount rule not found")

// RuleSource looks up cart rules. Codes are matched case-sensitively.
type RuleSource interface {
	ByCode(ctx context.Context, code string) (*domain.DiscountRule, error)
	ByID(ctx context.Context, id int64) (*domain.DiscountRule, error)
	AutoApply(ctx context.Context) ([]domain.DiscountRule, error)
}

// MemoryRules is a RuleSource kept in memory.
type MemoryRules struct {
	mu    sync.RWMutex
	rules map[int64]domain.DiscountRule
}

func NewMemoryRules(rules ...domain.DiscountRule) *MemoryRules {
	m := &MemoryRules{rules: make(map[int64]domain.DiscountRule, len(rules))}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

// Put inserts or replaces a rule.
func (m *MemoryRules) Put(rule domain.DiscountRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
}

func (m *MemoryRules) ByCode(_ context.Context, code string) (*domain.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.Code != "" && r.Code == code {
			return &r, nil
		}
	}
	return nil, ErrRuleNotFound
}

func (m *MemoryRules) ByID(_ context.Context, id int64) (*domain.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return &r, nil
}

// AutoApply returns auto-apply rules ordered by id.
func (m *MemoryRules) AutoApply(_ context.Context) ([]domain.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.DiscountRule
	for _, r := range m.rules {
		if r.AutoApply {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.DiscountRule) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
