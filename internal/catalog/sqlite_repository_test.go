package catalog

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/cart-engine/internal/discount"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteRepository {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.RunMigrations())
	return repo
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)
	assert.NoError(t, repo.RunMigrations())
}

func TestGetProduct(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Notebook", p.Name)
	assert.True(t, decimal.RequireFromString("10").Equal(p.Price))
	assert.True(t, p.Active)
	assert.Equal(t, 5, p.Quantity)
	assert.Equal(t, domain.OutOfStockDefault, p.OutOfStock)
	assert.False(t, p.HasVariants)
	assert.Empty(t, p.RestrictedTo)
}

func TestGetProduct_Flags(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	shirt, err := repo.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.True(t, shirt.HasVariants)

	pen, err := repo.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.True(t, pen.RequiresCustomization)
	assert.Equal(t, 2, pen.MinimalQuantity)

	poster, err := repo.GetProduct(ctx, 4)
	require.NoError(t, err)
	assert.False(t, poster.Active)

	hoodie, err := repo.GetProduct(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, hoodie.RestrictedTo)
	assert.True(t, hoodie.CheckAccess(7))
	assert.False(t, hoodie.CheckAccess(8))
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetProduct(context.Background(), 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProduct_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetProduct(ctx, 42)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestGetVariant_BySelector(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	v, err := repo.GetVariant(ctx, 1, []int64{3, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(11), v.ID)
	assert.Equal(t, []int64{2, 3}, v.Attributes)
	assert.Equal(t, domain.OutOfStockDeny, v.Policy)

	_, err = repo.GetVariant(ctx, 1, []int64{2, 4})
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestGetDefaultVariant(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	// the flagged default (10) has no stock, so the cheapest in-stock one wins
	v, err := repo.GetDefaultVariant(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v.ID)

	v, err = repo.GetDefaultVariant(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.ID)

	_, err = repo.GetDefaultVariant(ctx, 42, false)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestVariant(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	v, err := repo.Variant(ctx, 1, 11)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2").Equal(v.PriceImpact))
	assert.Equal(t, 5, v.Quantity)

	_, err = repo.Variant(ctx, 42, 11)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestRules(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	save10, err := repo.ByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), save10.ID)
	assert.True(t, decimal.NewFromInt(10).Equal(save10.ReductionPercent))
	assert.True(t, save10.ValidFrom.IsZero())
	assert.Equal(t, 2100, save10.ValidTo.Year())

	_, err = repo.ByCode(ctx, "save10")
	assert.ErrorIs(t, err, discount.ErrRuleNotFound)

	_, err = repo.ByCode(ctx, "")
	assert.ErrorIs(t, err, discount.ErrRuleNotFound)

	vip, err := repo.ByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), vip.CustomerID)

	_, err = repo.ByID(ctx, 99)
	assert.ErrorIs(t, err, discount.ErrRuleNotFound)

	auto, err := repo.AutoApply(ctx)
	require.NoError(t, err)
	require.Len(t, auto, 1)
	assert.Equal(t, int64(2), auto[0].ID)
	assert.True(t, decimal.NewFromInt(100).Equal(auto[0].MinimumAmount))
}

func TestSQLiteRepository_ImplementsInterfaces(t *testing.T) {
	var _ Catalog = (*SQLiteRepository)(nil)
	var _ discount.RuleSource = (*SQLiteRepository)(nil)
}
