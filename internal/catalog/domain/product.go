package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
	// ErrStorage marks failures of the backing store rather than of the request.
	ErrStorage = errors.New("catalog storage failure")
)

// PriceScale is the number of decimal places a price may carry.
const PriceScale = 2

type Product struct {
	ID          int64
	Name        string
	Category    string
	Subcategory string
	Variant     string
	Price       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName is the label printed on receipts, e.g. "Cà phê nâu (Đá)".
func (p Product) DisplayName() string {
	if p.Variant == "" {
		return p.Name
	}
	return p.Name + " (" + p.Variant + ")"
}

// Normalize trims the free-form text fields and checks the product can be stored.
func (p Product) Normalize() (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Subcategory = strings.TrimSpace(p.Subcategory)
	p.Variant = strings.TrimSpace(p.Variant)

	if p.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if !p.Price.Equal(p.Price.Round(PriceScale)) {
		return Product{}, fmt.Errorf("%w: price %s has more than %d decimal places", ErrInvalidProduct, p.Price, PriceScale)
	}
	return p, nil
}
