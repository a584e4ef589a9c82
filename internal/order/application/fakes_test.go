package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/pos-checkout/internal/catalog/domain"
	"github.com/dmehra2102/pos-checkout/internal/order/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]catalog.Product
	err      error
	lookups  int
}

func newFakeCatalog(products ...catalog.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[int64]catalog.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) Lookup(_ context.Context, id int64) (catalog.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.err != nil {
		return catalog.Product{}, false, c.err
	}
	p, ok := c.products[id]
	return p, ok, nil
}

func (c *fakeCatalog) setPrice(id int64, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Price = decimal.NewFromInt(price)
	c.products[id] = p
}

func (c *fakeCatalog) rename(id int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Name = name
	c.products[id] = p
}

type memLedger struct {
	mu        sync.Mutex
	next      int64
	records   map[int64]domain.Record
	appendErr error
	gets      int
	// when set, Get signals entered and waits for release or ctx
	entered chan struct{}
	release chan struct{}
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[int64]domain.Record{}}
}

func (l *memLedger) Append(_ context.Context, d domain.Draft) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return 0, l.appendErr
	}
	l.next++
	l.records[l.next] = domain.Record{
		ID:            l.next,
		CustomerLabel: d.CustomerLabel,
		TotalAmount:   d.TotalAmount,
		CreatedAt:     d.CreatedAt,
		Snapshot:      d.Snapshot,
	}
	return l.next, nil
}

func (l *memLedger) Get(ctx context.Context, id int64) (domain.Record, error) {
	if l.release != nil {
		l.entered <- struct{}{}
		select {
		case <-l.release:
		case <-ctx.Done():
			return domain.Record{}, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gets++
	rec, ok := l.records[id]
	if !ok {
		return domain.Record{}, domain.ErrOrderNotFound
	}
	return rec, nil
}

func (l *memLedger) ListRecent(_ context.Context, limit int) ([]domain.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

var errCacheMiss = errors.New("miss")

type memCache struct {
	mu     sync.Mutex
	orders map[int64]domain.Order
	sets   int
}

func newMemCache() *memCache {
	return &memCache{orders: map[int64]domain.Order{}}
}

func (c *memCache) Get(_ context.Context, id int64) (domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return domain.Order{}, errCacheMiss
	}
	return o, nil
}

func (c *memCache) Set(_ context.Context, o domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.orders[o.ID] = o
	return nil
}

type memIdem struct {
	mu   sync.Mutex
	keys map[string]int64
	err  error
}

func newMemIdem() *memIdem {
	return &memIdem{keys: map[string]int64{}}
}

func (m *memIdem) Claim(_ context.Context, key string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, 0, m.err
	}
	if id, ok := m.keys[key]; ok {
		return false, id, nil
	}
	m.keys[key] = 0
	return true, 0, nil
}

func (m *memIdem) Complete(_ context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func fixedClock() Clock {
	t := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func coffee() catalog.Product {
	return catalog.Product{ID: 1, Name: "Cà phê nâu", Variant: "Đá", Price: decimal.NewFromInt(20000)}
}

func tea() catalog.Product {
	return catalog.Product{ID: 2, Name: "Trà đào", Price: decimal.NewFromInt(40000)}
}
