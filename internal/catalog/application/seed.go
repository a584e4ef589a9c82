package application

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
)

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name        string `yaml:"name"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Variant     string `yaml:"variant"`
}

// DefaultSeed is what a fresh till starts with when no seed file is configured.
func DefaultSeed() []domain.Product {
	return []domain.Product{
		{Name: "Cà phê đen", Price: decimal.NewFromInt(25000), Category: "Đồ uống", Subcategory: "Cà phê"},
		{Name: "Bạc xỉu", Price: decimal.NewFromInt(35000), Category: "Đồ uống", Subcategory: "Cà phê"},
		{Name: "Trà đào", Price: decimal.NewFromInt(40000), Category: "Đồ uống", Subcategory: "Trà"},
	}
}

func ParseSeed(r io.Reader) ([]domain.Product, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	products := make([]domain.Product, 0, len(f.Products))
	for i, sp := range f.Products {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, fmt.Errorf("seed product %d (%s): price %q: %w", i, sp.Name, sp.Price, err)
		}
		p, err := domain.Product{
			Name:        sp.Name,
			Price:       price,
			Category:    sp.Category,
			Subcategory: sp.Subcategory,
			Variant:     sp.Variant,
		}.Normalize()
		if err != nil {
			return nil, fmt.Errorf("seed product %d: %w", i, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func LoadSeedFile(path string) ([]domain.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}
