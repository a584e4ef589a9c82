package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/pos-checkout/internal/order/application"
	"github.com/dmehra2102/pos-checkout/internal/order/domain"
	"github.com/dmehra2102/pos-checkout/pkg/httpx"
)

// HistoryTimeLayout is how the till shows order timestamps.
const HistoryTimeLayout = "2006-01-02 15:04:05"

//go:embed templates/invoice.html
var templateFS embed.FS

// invoiceTmpl is cloned per handler, which binds "when" to its location.
var invoiceTmpl = template.Must(template.New("invoice.html").
	Funcs(template.FuncMap{"money": FormatMoney, "when": func(domain.Order) string { return "" }}).
	ParseFS(templateFS, "templates/invoice.html"))

type OrderService interface {
	Checkout(ctx context.Context, cart domain.Cart, idempotencyKey string) (application.Receipt, error)
	Invoice(ctx context.Context, id int64) (domain.Order, error)
	History(ctx context.Context, limit int) ([]domain.Summary, error)
}

type Handler struct {
	log          *slog.Logger
	service      OrderService
	historyLimit int
	loc          *time.Location
	invoice      *template.Template
	tracer       trace.Tracer
}

type Option func(*Handler)

// WithLocation sets the time zone order timestamps are shown in. The default
// is UTC.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.loc = loc
		}
	}
}

func NewHandler(log *slog.Logger, service OrderService, historyLimit int, opts ...Option) *Handler {
	h := &Handler{
		log:          log,
		service:      service,
		historyLimit: historyLimit,
		loc:          time.UTC,
		tracer:       otel.Tracer("order-http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.invoice = template.Must(invoiceTmpl.Clone()).Funcs(template.FuncMap{
		"when": func(o domain.Order) string { return h.formatTime(o.CreatedAt) },
	})
	return h
}

func (h *Handler) formatTime(t time.Time) string {
	return t.In(h.loc).Format(HistoryTimeLayout)
}

// payReq carries only product ids and quantities. Any price the till sends
// along is dropped by the decoder.
type payReq struct {
	CustomerName string `json:"customer_name"`
	Items        []struct {
		ID       int64 `json:"id"`
		Quantity int   `json:"quantity"`
	} `json:"items"`
}

type payResp struct {
	Success  bool            `json:"success"`
	OrderID  int64           `json:"order_id"`
	Total    decimal.Decimal `json:"total"`
	Replayed bool            `json:"replayed,omitempty"`
}

type historyRow struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    string          `json:"created_at"`
}

type invoiceItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type invoiceResp struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    string          `json:"created_at"`
	Items        []invoiceItem   `json:"items"`
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/api/pay", h.pay)
	r.Get("/api/history", h.history)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Get("/invoice/{id}", h.invoicePage)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Pay")
	defer span.End()

	var req payReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid JSON body")
		return
	}

	cart := domain.Cart{CustomerLabel: req.CustomerName, Lines: make([]domain.CartLine, 0, len(req.Items))}
	for _, it := range req.Items {
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: it.ID, Quantity: it.Quantity})
	}

	receipt, err := h.service.Checkout(ctx, cart, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	span.SetAttributes(attribute.Int64("order.id", receipt.OrderID))

	httpx.RespondJSON(w, http.StatusOK, payResp{
		Success:  true,
		OrderID:  receipt.OrderID,
		Total:    receipt.Total,
		Replayed: receipt.Replayed,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit := h.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]historyRow, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, historyRow{
			ID:           s.ID,
			CustomerName: s.CustomerLabel,
			TotalAmount:  s.TotalAmount,
			CreatedAt:    h.formatTime(s.CreatedAt),
		})
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "order id must be a positive integer")
		return
	}
	o, err := h.service.Invoice(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]invoiceItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, invoiceItem(it))
	}
	httpx.RespondJSON(w, http.StatusOK, invoiceResp{
		ID:           o.ID,
		CustomerName: o.CustomerLabel,
		TotalAmount:  o.TotalAmount,
		CreatedAt:    h.formatTime(o.CreatedAt),
		Items:        items,
	})
}

func (h *Handler) invoicePage(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	o, err := h.service.Invoice(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log.Error("invoice page failed", "order_id", id, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.invoice.Execute(w, o); err != nil {
		h.log.Error("render invoice failed", "order_id", id, "err", err)
	}
}

func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCart):
		httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		httpx.RespondError(w, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrCheckoutInProgress):
		httpx.RespondError(w, http.StatusConflict, httpx.CodeConflict, err.Error())
	default:
		h.log.Error("order request failed", "err", err)
		httpx.RespondError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal server error")
	}
}

// FormatMoney renders an amount with dot-grouped thousands, the way the
// till prints prices: 1234567.5 becomes "1.234.567,50".
func FormatMoney(d decimal.Decimal) string {
	d = d.Round(2)
	neg := d.IsNegative()
	d = d.Abs()

	intPart := d.Truncate(0).String()
	frac := d.Sub(d.Truncate(0))

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if !frac.IsZero() {
		b.WriteByte(',')
		b.WriteString(frac.StringFixed(2)[2:])
	}
	return b.String()
}
