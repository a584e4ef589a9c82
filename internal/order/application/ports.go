package application

import (
	"context"
	"time"

	catalog "github.com/dmehra2102/pos-checkout/internal/catalog/domain"
	"github.com/dmehra2102/pos-checkout/internal/order/domain"
)

// Catalog is the read-only view of products that checkout prices against.
type Catalog interface {
	Lookup(ctx context.Context, id int64) (catalog.Product, bool, error)
}

// Ledger is the append-only order store.
type Ledger interface {
	Append(ctx context.Context, d domain.Draft) (int64, error)
	Get(ctx context.Context, id int64) (domain.Record, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Record, error)
}

// InvoiceCache holds decoded orders. Orders never change, so entries never go stale.
type InvoiceCache interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	Set(ctx context.Context, o domain.Order) error
}

// IdempotencyStore remembers which order a checkout key produced.
type IdempotencyStore interface {
	// Claim reserves key. When the key was already used it returns the order id
	// recorded for it, or 0 while the first attempt is still running.
	Claim(ctx context.Context, key string) (claimed bool, orderID int64, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

type Clock func() time.Time
