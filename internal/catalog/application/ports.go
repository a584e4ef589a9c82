package application

import (
	"context"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
)

type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	Create(ctx context.Context, p domain.Product) (int64, error)
	Update(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}
