package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
)

type Service struct {
	log  *slog.Logger
	repo ProductRepository
}

func NewService(log *slog.Logger, repo ProductRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

// Save updates the product when it carries an id and creates it otherwise.
// It returns the id of the stored product.
func (s *Service) Save(ctx context.Context, p domain.Product) (int64, error) {
	p, err := p.Normalize()
	if err != nil {
		return 0, err
	}
	if p.ID > 0 {
		if err := s.repo.Update(ctx, p); err != nil {
			return 0, err
		}
		s.log.Info("product updated", "product_id", p.ID, "price", p.Price.String())
		return p.ID, nil
	}

	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return 0, err
	}
	s.log.Info("product created", "product_id", id, "name", p.Name)
	return id, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", "product_id", id)
	return nil
}

// Lookup resolves a product for checkout. A missing product is reported
// through ok=false; err is reserved for storage failures.
func (s *Service) Lookup(ctx context.Context, id int64) (domain.Product, bool, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrProductNotFound) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, err
	}
	return p, true, nil
}

// SeedIfEmpty stores products only when the catalog has none yet.
func (s *Service) SeedIfEmpty(ctx context.Context, products []domain.Product) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 || len(products) == 0 {
		return 0, nil
	}

	for _, p := range products {
		p.ID = 0
		if _, err := s.Save(ctx, p); err != nil {
			return 0, err
		}
	}
	s.log.Info("catalog seeded", "count", len(products))
	return len(products), nil
}
