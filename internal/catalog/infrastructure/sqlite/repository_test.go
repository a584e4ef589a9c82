package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
	"github.com/dmehra2102/pos-checkout/internal/platform/sqlitedb"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := sqlitedb.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), db)
}

func TestCreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, domain.Product{
		Name: "Cà phê nâu", Price: decimal.RequireFromString("20000.50"),
		Category: "Đồ uống", Subcategory: "Cà phê", Variant: "Đá",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cà phê nâu (Đá)", p.DisplayName())
	assert.True(t, p.Price.Equal(decimal.RequireFromString("20000.5")))
	assert.Equal(t, "Cà phê", p.Subcategory)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestGet_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	_, err := repo.Get(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestUpdate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, domain.Product{Name: "Bạc xỉu", Price: decimal.NewFromInt(35000)})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, domain.Product{ID: id, Name: "Bạc xỉu", Price: decimal.NewFromInt(99999)}))

	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(99999)))

	err = repo.Update(ctx, domain.Product{ID: 404, Name: "x", Price: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestDelete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, domain.Product{Name: "Trà đào", Price: decimal.NewFromInt(40000)})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrProductNotFound)
}

func TestListAndCount(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	for _, p := range []domain.Product{
		{Name: "Trà đào", Category: "Drinks", Subcategory: "Trà", Price: decimal.NewFromInt(40000)},
		{Name: "Bánh mì", Category: "Food", Price: decimal.NewFromInt(15000)},
		{Name: "Bạc xỉu", Category: "Drinks", Subcategory: "Cà phê", Price: decimal.NewFromInt(35000)},
	} {
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Bạc xỉu", list[0].Name)
	assert.Equal(t, "Trà đào", list[1].Name)
	assert.Equal(t, "Bánh mì", list[2].Name)
}

func TestList_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.List(ctx)
	assert.ErrorIs(t, err, domain.ErrStorage)
}
