package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/discount"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRepository serves products, variants and cart rules from SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// RunMigrations applies the embedded schema and seed migrations.
func (r *SQLiteRepository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT p.id, p.name, p.price, p.active, p.minimal_quantity, p.quantity,
		       p.out_of_stock, p.requires_customization,
		       EXISTS (SELECT 1 FROM variants v WHERE v.product_id = p.id)
		FROM products p
		WHERE p.id = ?
	`

	p := &domain.Product{}
	var policy int
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.Active,
		&p.MinimalQuantity,
		&p.Quantity,
		&policy,
		&p.RequiresCustomization,
		&p.HasVariants,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	p.OutOfStock = domain.OutOfStockPolicy(policy)

	restricted, err := r.restrictions(ctx, productID)
	if err != nil {
		return nil, err
	}
	p.RestrictedTo = restricted

	return p, nil
}

func (r *SQLiteRepository) GetVariant(ctx context.Context, productID int64, selector []int64) (*domain.Variant, error) {
	variants, err := r.variants(ctx, productID)
	if err != nil {
		return nil, err
	}
	if v, ok := matchSelector(variants, selector); ok {
		return v, nil
	}
	return nil, ErrVariantNotFound
}

func (r *SQLiteRepository) GetDefaultVariant(ctx context.Context, productID int64, preferInStock bool) (*domain.Variant, error) {
	variants, err := r.variants(ctx, productID)
	if err != nil {
		return nil, err
	}
	if v, ok := pickDefault(variants, preferInStock); ok {
		return v, nil
	}
	return nil, ErrVariantNotFound
}

func (r *SQLiteRepository) Variant(ctx context.Context, productID, variantID int64) (*domain.Variant, error) {
	variants, err := r.variants(ctx, productID)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if v.ID == variantID {
			return &v, nil
		}
	}
	return nil, ErrVariantNotFound
}

func (r *SQLiteRepository) restrictions(ctx context.Context, productID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT customer_id FROM product_restrictions WHERE product_id = ? ORDER BY customer_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product restrictions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// variants loads every variant of a product with its attribute ids, ordered by id.
func (r *SQLiteRepository) variants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	query := `
		SELECT v.id, v.product_id, v.price_impact, v.minimal_quantity, v.quantity,
		       v.is_default, p.out_of_stock, a.attribute_id
		FROM variants v
		JOIN products p ON p.id = v.product_id
		LEFT JOIN variant_attributes a ON a.variant_id = v.id
		WHERE v.product_id = ?
		ORDER BY v.id, a.attribute_id
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var (
			v         domain.Variant
			policy    int
			attribute sql.NullInt64
		)
		err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.PriceImpact,
			&v.MinimalQuantity,
			&v.Quantity,
			&v.Default,
			&policy,
			&attribute,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}

		if n := len(variants); n == 0 || variants[n-1].ID != v.ID {
			v.Policy = domain.OutOfStockPolicy(policy)
			variants = append(variants, v)
		}
		if attribute.Valid {
			last := &variants[len(variants)-1]
			last.Attributes = append(last.Attributes, attribute.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return variants, nil
}

const ruleColumns = `
	id, code, name, active, auto_apply, valid_from, valid_to, quantity_remaining,
	minimum_amount, customer_id, reduction_percent, reduction_amount
`

func (r *SQLiteRepository) ByCode(ctx context.Context, code string) (*domain.DiscountRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM cart_rules WHERE code = ? AND code <> ''`, code)
	return scanRule(row)
}

func (r *SQLiteRepository) ByID(ctx context.Context, id int64) (*domain.DiscountRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM cart_rules WHERE id = ?`, id)
	return scanRule(row)
}

func (r *SQLiteRepository) AutoApply(ctx context.Context) ([]domain.DiscountRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM cart_rules WHERE auto_apply = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.DiscountRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return rules, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*domain.DiscountRule, error) {
	var (
		rule     domain.DiscountRule
		from, to int64
	)
	err := row.Scan(
		&rule.ID,
		&rule.Code,
		&rule.Name,
		&rule.Active,
		&rule.AutoApply,
		&from,
		&to,
		&rule.QuantityRemaining,
		&rule.MinimumAmount,
		&rule.CustomerID,
		&rule.ReductionPercent,
		&rule.ReductionAmount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, discount.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart rule: %w", err)
	}
	rule.ValidFrom = unixTime(from)
	rule.ValidTo = unixTime(to)
	return &rule, nil
}

// unixTime maps 0 to the zero time, meaning "unbounded".
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
