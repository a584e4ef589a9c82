package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const selectProduct = `SELECT id, name, price::text, category, subcategory, variant, created_at, updated_at FROM products`

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, selectProduct+` ORDER BY category, subcategory, name, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query products: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %w", domain.ErrStorage, err)
	}
	return products, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, selectProduct+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

func (r *Repository) Create(ctx context.Context, p domain.Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, price, category, subcategory, variant)
		VALUES ($1, $2::text::numeric, $3, $4, $5)
		RETURNING id`,
		p.Name, p.Price.String(), p.Category, p.Subcategory, p.Variant).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert product: %w", domain.ErrStorage, err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, p domain.Product) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products
		SET name = $2, price = $3::text::numeric, category = $4, subcategory = $5, variant = $6, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Name, p.Price.String(), p.Category, p.Subcategory, p.Variant)
	if err != nil {
		return fmt.Errorf("%w: update product: %w", domain.ErrStorage, err)
	}
	return requireOneRow(ct)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete product: %w", domain.ErrStorage, err)
	}
	return requireOneRow(ct)
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count products: %w", domain.ErrStorage, err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Category, &p.Subcategory, &p.Variant, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, err
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: failed to scan product: %w", domain.ErrStorage, err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("%w: price of product %d: %w", domain.ErrStorage, p.ID, err)
	}
	return p, nil
}

func requireOneRow(ct pgconn.CommandTag) error {
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
