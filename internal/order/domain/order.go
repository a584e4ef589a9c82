package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCustomerLabel is used when the till sends no customer name.
const DefaultCustomerLabel = "Khách lẻ"

// MaxLineQuantity bounds a single cart line.
const MaxLineQuantity = 9999

var (
	ErrInvalidCart         = errors.New("invalid cart")
	ErrOrderNotFound       = errors.New("order not found")
	ErrStorage             = errors.New("order storage failure")
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")
	ErrCheckoutInProgress  = errors.New("checkout with this idempotency key is in progress")
)

type CartLine struct {
	ProductID int64
	Quantity  int
}

type Cart struct {
	CustomerLabel string
	Lines         []CartLine
}

// LineItem is the frozen copy of a priced cart line stored with the order.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

func NewLineItem(name string, unitPrice decimal.Decimal, quantity int) LineItem {
	return LineItem{
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Equal compares amounts numerically, so 20000 and 20000.00 are the same price.
func (i LineItem) Equal(o LineItem) bool {
	return i.Name == o.Name &&
		i.Quantity == o.Quantity &&
		i.UnitPrice.Equal(o.UnitPrice) &&
		i.LineTotal.Equal(o.LineTotal)
}

type Order struct {
	ID            int64
	CustomerLabel string
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	Items         []LineItem
}

// Summary is the history row shown on the till.
type Summary struct {
	ID            int64
	CustomerLabel string
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
}

func (o Order) Summary() Summary {
	return Summary{
		ID:            o.ID,
		CustomerLabel: o.CustomerLabel,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
	}
}

func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total
}

func NormalizeCustomerLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return DefaultCustomerLabel
	}
	return label
}

// Draft is an order that has been priced but not yet given an id.
type Draft struct {
	CustomerLabel string
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	Items         []LineItem
	Snapshot      string
}

func NewDraft(customerLabel string, items []LineItem, now time.Time) (Draft, error) {
	snapshot, err := EncodeSnapshot(items)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		CustomerLabel: NormalizeCustomerLabel(customerLabel),
		TotalAmount:   Total(items),
		CreatedAt:     now.UTC(),
		Items:         items,
		Snapshot:      snapshot,
	}, nil
}

// Record is an order row exactly as the ledger stores it.
type Record struct {
	ID            int64
	CustomerLabel string
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	Snapshot      string
}

func (r Record) Summary() Summary {
	return Summary{
		ID:            r.ID,
		CustomerLabel: r.CustomerLabel,
		TotalAmount:   r.TotalAmount,
		CreatedAt:     r.CreatedAt,
	}
}

// Order decodes the stored snapshot back into line items.
func (r Record) Order() (Order, error) {
	items, err := DecodeSnapshot(r.Snapshot)
	if err != nil {
		return Order{}, err
	}
	return Order{
		ID:            r.ID,
		CustomerLabel: r.CustomerLabel,
		TotalAmount:   r.TotalAmount,
		CreatedAt:     r.CreatedAt,
		Items:         items,
	}, nil
}
