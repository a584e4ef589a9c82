package application

import (
	"context"
	"fmt"

	"github.com/dmehra2102/pos-checkout/internal/order/domain"
	"github.com/shopspring/decimal"
)

type Priced struct {
	Total decimal.Decimal
	Items []domain.LineItem
}

// Repricer prices a cart from the catalog alone. Nothing the client sends
// besides product ids and quantities takes part in the computation.
type Repricer struct {
	catalog Catalog
}

func NewRepricer(catalog Catalog) *Repricer {
	return &Repricer{catalog: catalog}
}

func ValidateCart(cart domain.Cart) error {
	if len(cart.Lines) == 0 {
		return fmt.Errorf("%w: cart has no lines", domain.ErrInvalidCart)
	}
	for i, line := range cart.Lines {
		if line.Quantity < 1 || line.Quantity > domain.MaxLineQuantity {
			return fmt.Errorf("%w: line %d: quantity must be between 1 and %d, got %d",
				domain.ErrInvalidCart, i, domain.MaxLineQuantity, line.Quantity)
		}
	}
	return nil
}

// Price resolves every line against the catalog. Lines whose product no
// longer exists are dropped without error and do not count toward the total.
func (r *Repricer) Price(ctx context.Context, cart domain.Cart) (Priced, error) {
	if err := ValidateCart(cart); err != nil {
		return Priced{}, err
	}

	items := make([]domain.LineItem, 0, len(cart.Lines))
	total := decimal.Zero
	for _, line := range cart.Lines {
		product, ok, err := r.catalog.Lookup(ctx, line.ProductID)
		if err != nil {
			return Priced{}, fmt.Errorf("%w: lookup product %d: %w", domain.ErrStorage, line.ProductID, err)
		}
		if !ok {
			continue
		}
		item := domain.NewLineItem(product.DisplayName(), product.Price, line.Quantity)
		total = total.Add(item.LineTotal)
		items = append(items, item)
	}
	return Priced{Total: total, Items: items}, nil
}
