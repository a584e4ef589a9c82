package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
	"github.com/dmehra2102/pos-checkout/internal/platform/sqlitedb"
)

type Repository struct {
	log *slog.Logger
	db  *sql.DB
	now func() time.Time
}

func NewRepository(log *slog.Logger, db *sql.DB) *Repository {
	return &Repository{log: log, db: db, now: time.Now}
}

const selectProduct = `SELECT id, name, price, category, subcategory, variant, created_at, updated_at FROM products`

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, selectProduct+` ORDER BY category, subcategory, name, id`)
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
	p, err := scanProduct(r.db.QueryRowContext(ctx, selectProduct+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

func (r *Repository) Create(ctx context.Context, p domain.Product) (int64, error) {
	now := sqlitedb.FormatTime(r.now())
	res, err := r.db.ExecContext(ctx, `INSERT INTO products (name, price, category, subcategory, variant, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Price.String(), p.Category, p.Subcategory, p.Variant, now, now)
	if err != nil {
		return 0, fmt.Errorf("%w: insert product: %w", domain.ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %w", domain.ErrStorage, err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products
		SET name = ?, price = ?, category = ?, subcategory = ?, variant = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Price.String(), p.Category, p.Subcategory, p.Variant, sqlitedb.FormatTime(r.now()), p.ID)
	if err != nil {
		return fmt.Errorf("%w: update product: %w", domain.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete product: %w", domain.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count products: %w", domain.ErrStorage, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (domain.Product, error) {
	var (
		p                domain.Product
		created, updated string
	)
	err := s.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Subcategory, &p.Variant, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, err
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: failed to scan product: %w", domain.ErrStorage, err)
	}
	if p.CreatedAt, err = sqlitedb.ParseTime(created); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if p.UpdatedAt, err = sqlitedb.ParseTime(updated); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return p, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", domain.ErrStorage, err)
	}
	if n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
