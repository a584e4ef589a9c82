// Package redis caches decoded invoices. Recorded orders are immutable, so a
// cached invoice is never invalidated; the TTL only bounds memory.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/pos-checkout/internal/order/domain"
)

var ErrCacheMiss = errors.New("invoice cache miss")

type InvoiceCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewInvoiceCache(client *redis.Client, ttl time.Duration) *InvoiceCache {
	return &InvoiceCache{client: client, baseTTL: ttl}
}

type cachedItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type cachedOrder struct {
	ID            int64           `json:"id"`
	CustomerLabel string          `json:"customer_label"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []cachedItem    `json:"items"`
}

func (c *InvoiceCache) Get(ctx context.Context, id int64) (domain.Order, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Order{}, ErrCacheMiss
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("redis get failed: %w", err)
	}

	var co cachedOrder
	if err := json.Unmarshal(data, &co); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal invoice failed: %w", err)
	}

	items := make([]domain.LineItem, 0, len(co.Items))
	for _, it := range co.Items {
		items = append(items, domain.LineItem(it))
	}
	return domain.Order{
		ID:            co.ID,
		CustomerLabel: co.CustomerLabel,
		TotalAmount:   co.TotalAmount,
		CreatedAt:     co.CreatedAt,
		Items:         items,
	}, nil
}

func (c *InvoiceCache) Set(ctx context.Context, o domain.Order) error {
	items := make([]cachedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, cachedItem(it))
	}
	data, err := json.Marshal(cachedOrder{
		ID:            o.ID,
		CustomerLabel: o.CustomerLabel,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
		Items:         items,
	})
	if err != nil {
		return fmt.Errorf("marshal invoice failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/10) + 1))
	if err := c.client.Set(ctx, cacheKey(o.ID), data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("invoice:%d", id)
}
