package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dmehra2102/pos-checkout/internal/order/domain"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// Receipt is what the till gets back after paying.
type Receipt struct {
	OrderID  int64
	Total    decimal.Decimal
	Replayed bool
}

type Service struct {
	log      *slog.Logger
	repricer *Repricer
	ledger   Ledger
	cache    InvoiceCache
	idem     IdempotencyStore
	now      Clock
	tracer   trace.Tracer
	sfg      singleflight.Group
}

type Option func(*Service)

func WithInvoiceCache(c InvoiceCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) { s.idem = store }
}

func WithClock(now Clock) Option {
	return func(s *Service) { s.now = now }
}

func NewService(log *slog.Logger, catalog Catalog, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		log:      log,
		repricer: NewRepricer(catalog),
		ledger:   ledger,
		now:      time.Now,
		tracer:   otel.Tracer("order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout reprices the cart and records it as a new order. An empty
// idempotencyKey disables replay protection.
func (s *Service) Checkout(ctx context.Context, cart domain.Cart, idempotencyKey string) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "Checkout")
	defer span.End()

	if err := ValidateCart(cart); err != nil {
		return Receipt{}, err
	}

	if idempotencyKey != "" && s.idem != nil {
		claimed, orderID, err := s.idem.Claim(ctx, idempotencyKey)
		switch {
		case err != nil:
			s.log.Warn("idempotency claim failed, continuing without it", "err", err)
		case !claimed && orderID == 0:
			return Receipt{}, domain.ErrCheckoutInProgress
		case !claimed:
			return s.replay(ctx, orderID)
		default:
			receipt, err := s.checkout(ctx, cart)
			if err != nil {
				if relErr := s.idem.Release(ctx, idempotencyKey); relErr != nil {
					s.log.Warn("idempotency release failed", "err", relErr)
				}
				return Receipt{}, err
			}
			if err := s.idem.Complete(ctx, idempotencyKey, receipt.OrderID); err != nil {
				s.log.Warn("idempotency complete failed", "order_id", receipt.OrderID, "err", err)
			}
			return receipt, nil
		}
	}

	return s.checkout(ctx, cart)
}

func (s *Service) checkout(ctx context.Context, cart domain.Cart) (Receipt, error) {
	priced, err := s.repricer.Price(ctx, cart)
	if err != nil {
		return Receipt{}, err
	}
	if dropped := len(cart.Lines) - len(priced.Items); dropped > 0 {
		s.log.Warn("cart lines dropped, product not in catalog", "dropped", dropped)
	}

	draft, err := domain.NewDraft(cart.CustomerLabel, priced.Items, s.now())
	if err != nil {
		return Receipt{}, err
	}

	id, err := s.ledger.Append(ctx, draft)
	if err != nil {
		return Receipt{}, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("order.id", id))
	s.log.Info("order recorded", "order_id", id, "total", draft.TotalAmount.String(), "items", len(draft.Items))
	return Receipt{OrderID: id, Total: draft.TotalAmount}, nil
}

func (s *Service) replay(ctx context.Context, orderID int64) (Receipt, error) {
	rec, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return Receipt{}, err
	}
	s.log.Info("checkout replayed", "order_id", orderID)
	return Receipt{OrderID: rec.ID, Total: rec.TotalAmount, Replayed: true}, nil
}

// Invoice returns the order exactly as it was recorded.
func (s *Service) Invoice(ctx context.Context, id int64) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Invoice")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	if s.cache != nil {
		o, err := s.cache.Get(ctx, id)
		if err == nil {
			return o, nil
		}
	}

	// The load is shared with concurrent callers, so it must outlive the
	// request that happened to start it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		rec, err := s.ledger.Get(loadCtx, id)
		if err != nil {
			return domain.Order{}, err
		}
		o, err := rec.Order()
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w: order %d: %w", domain.ErrStorage, id, err)
		}
		if s.cache != nil {
			if err := s.cache.Set(loadCtx, o); err != nil {
				s.log.Warn("invoice cache set failed", "order_id", id, "err", err)
			}
		}
		return o, nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			s.log.Error("invoice lookup failed", "order_id", id, "err", err)
		}
		return domain.Order{}, err
	}
	return v.(domain.Order), nil
}

// History lists the most recent orders, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "History")
	defer span.End()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	recs, err := s.ledger.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summary())
	}
	return out, nil
}
