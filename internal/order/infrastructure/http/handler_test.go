package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/dmehra2102/pos-checkout/internal/catalog/application"
	catalogdomain "github.com/dmehra2102/pos-checkout/internal/catalog/domain"
	catalogsqlite "github.com/dmehra2102/pos-checkout/internal/catalog/infrastructure/sqlite"
	"github.com/dmehra2102/pos-checkout/internal/order/application"
	"github.com/dmehra2102/pos-checkout/internal/order/domain"
	ordersqlite "github.com/dmehra2102/pos-checkout/internal/order/infrastructure/sqlite"
	"github.com/dmehra2102/pos-checkout/internal/platform/sqlitedb"
	"github.com/dmehra2102/pos-checkout/pkg/httpx"
)

type testEnv struct {
	router  http.Handler
	catalog *catalogapp.Service
	coffee  int64
}

func setup(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlitedb.Open(ctx, filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog := catalogapp.NewService(log, catalogsqlite.NewRepository(log, db))
	coffee, err := catalog.Save(ctx, catalogdomain.Product{Name: "Cà phê nâu", Variant: "Đá", Price: decimal.NewFromInt(20000)})
	require.NoError(t, err)

	svc := application.NewService(log, catalog, ordersqlite.NewRepository(log, db),
		application.WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }))

	r := chi.NewRouter()
	NewHandler(log, svc, application.DefaultHistoryLimit, opts...).Mount(r)
	return &testEnv{router: r, catalog: catalog, coffee: coffee}
}

func (e *testEnv) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestPay_RepricesFromCatalog(t *testing.T) {
	env := setup(t)
	body := fmt.Sprintf(`{"customer_name":"Anh Minh","items":[{"id":%d,"quantity":2,"price":1}]}`, env.coffee)

	rec := env.do(http.MethodPost, "/api/pay", body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[payResp](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.OrderID)
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(40000)))

	rec = env.do(http.MethodGet, "/api/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[invoiceResp](t, rec)
	assert.Equal(t, "Anh Minh", inv.CustomerName)
	assert.Equal(t, "2024-05-01 09:30:00", inv.CreatedAt)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Cà phê nâu (Đá)", inv.Items[0].Name)
	assert.True(t, inv.Items[0].UnitPrice.Equal(decimal.NewFromInt(20000)))
	assert.True(t, inv.Items[0].LineTotal.Equal(decimal.NewFromInt(40000)))
}

func TestPay_UnknownProductGivesEmptyOrder(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodPost, "/api/pay", `{"items":[{"id":999,"quantity":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[payResp](t, rec)
	assert.True(t, resp.Total.IsZero())

	inv := decode[invoiceResp](t, env.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", resp.OrderID), ""))
	assert.Equal(t, domain.DefaultCustomerLabel, inv.CustomerName)
	assert.Empty(t, inv.Items)
}

func TestPay_Validation(t *testing.T) {
	env := setup(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"items":`},
		{"empty cart", `{"items":[]}`},
		{"zero quantity", fmt.Sprintf(`{"items":[{"id":%d,"quantity":0}]}`, env.coffee)},
		{"fractional quantity", fmt.Sprintf(`{"items":[{"id":%d,"quantity":1.5}]}`, env.coffee)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/pay", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, httpx.CodeInvalidRequest, decode[httpx.ErrorResponse](t, rec).Code)
		})
	}

	hist := decode[[]historyRow](t, env.do(http.MethodGet, "/api/history", ""))
	assert.Empty(t, hist)
}

func TestInvoice_UnchangedAfterCatalogEdit(t *testing.T) {
	env := setup(t)
	body := fmt.Sprintf(`{"items":[{"id":%d,"quantity":1}]}`, env.coffee)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/pay", body).Code)

	_, err := env.catalog.Save(context.Background(), catalogdomain.Product{ID: env.coffee, Name: "Cà phê sữa", Price: decimal.NewFromInt(99000)})
	require.NoError(t, err)

	inv := decode[invoiceResp](t, env.do(http.MethodGet, "/api/orders/1", ""))
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Cà phê nâu (Đá)", inv.Items[0].Name)
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(20000)))
}

func TestGetOrder_Errors(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodGet, "/api/orders/41", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httpx.CodeNotFound, decode[httpx.ErrorResponse](t, rec).Code)

	rec = env.do(http.MethodGet, "/api/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	env := setup(t)
	body := fmt.Sprintf(`{"items":[{"id":%d,"quantity":1}]}`, env.coffee)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/pay", body).Code)
	}

	rows := decode[[]historyRow](t, env.do(http.MethodGet, "/api/history?limit=2", ""))
	require.Len(t, rows, 2)
	assert.Equal(t, int64(3), rows[0].ID)
	assert.Equal(t, int64(2), rows[1].ID)
	assert.Equal(t, domain.DefaultCustomerLabel, rows[0].CustomerName)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/history?limit=x", "").Code)
}

func TestTimestamps_ShownInConfiguredLocation(t *testing.T) {
	env := setup(t, WithLocation(time.FixedZone("ICT", 7*60*60)))
	body := fmt.Sprintf(`{"items":[{"id":%d,"quantity":1}]}`, env.coffee)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/pay", body).Code)

	inv := decode[invoiceResp](t, env.do(http.MethodGet, "/api/orders/1", ""))
	assert.Equal(t, "2024-05-01 16:30:00", inv.CreatedAt)

	rows := decode[[]historyRow](t, env.do(http.MethodGet, "/api/history", ""))
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-05-01 16:30:00", rows[0].CreatedAt)

	page := env.do(http.MethodGet, "/invoice/1", "").Body.String()
	assert.Contains(t, page, "2024-05-01 16:30:00")
}

func TestInvoicePage(t *testing.T) {
	env := setup(t)
	body := fmt.Sprintf(`{"customer_name":"<b>Chị Lan</b>","items":[{"id":%d,"quantity":3}]}`, env.coffee)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/pay", body).Code)

	rec := env.do(http.MethodGet, "/invoice/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	page := rec.Body.String()
	assert.Contains(t, page, "HÓA ĐƠN #1")
	assert.Contains(t, page, "Cà phê nâu (Đá)")
	assert.Contains(t, page, "60.000 đ")
	assert.Contains(t, page, "&lt;b&gt;Chị Lan&lt;/b&gt;")
	assert.Contains(t, page, "2024-05-01 09:30:00")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/invoice/9", "").Code)
}

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"0":          "0",
		"950":        "950",
		"40000":      "40.000",
		"1234567.5":  "1.234.567,50",
		"-25000":     "-25.000",
		"20000.004":  "20.000",
		"999999.999": "1.000.000",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}
