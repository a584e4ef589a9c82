package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/pos-checkout/internal/catalog/domain"
	"github.com/dmehra2102/pos-checkout/pkg/httpx"
)

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Save(ctx context.Context, p domain.Product) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	log     *slog.Logger
	service CatalogService
}

func NewHandler(log *slog.Logger, service CatalogService) *Handler {
	return &Handler{log: log, service: service}
}

type productDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Variant     string          `json:"variant"`
	DisplayName string          `json:"display_name"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// saveProductReq.Price is a pointer so that a missing or null price is
// rejected instead of being stored as zero.
type saveProductReq struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory"`
	Variant     string           `json:"variant"`
}

type saveProductResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Routes mounts under /api/products.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.listProducts)
	r.Post("/", h.saveProduct)
	r.Delete("/{id}", h.deleteProduct)
	return r
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		out = append(out, productDTO{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			Variant:     p.Variant,
			DisplayName: p.DisplayName(),
			UpdatedAt:   p.UpdatedAt,
		})
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request) {
	var req saveProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Price == nil {
		h.writeError(w, fmt.Errorf("%w: price is required", domain.ErrInvalidProduct))
		return
	}

	id, err := h.service.Save(r.Context(), domain.Product{
		ID:          req.ID,
		Name:        req.Name,
		Price:       *req.Price,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Variant:     req.Variant,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	msg := "Đã thêm sản phẩm mới!"
	if req.ID > 0 {
		msg = "Đã cập nhật sản phẩm!"
	}
	httpx.RespondJSON(w, http.StatusOK, saveProductResp{Success: true, Message: msg, ID: id})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "product id must be a positive integer")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidProduct):
		httpx.RespondError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		httpx.RespondError(w, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	default:
		h.log.Error("catalog request failed", "err", err)
		httpx.RespondError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal server error")
	}
}
