package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/pos-checkout/internal/order/domain"
	"github.com/dmehra2102/pos-checkout/pkg/outbox"
	"github.com/dmehra2102/pos-checkout/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Append inserts the order and its OrderRecorded outbox row in one transaction.
// The id comes from the orders BIGSERIAL.
func (r *Repository) Append(ctx context.Context, d domain.Draft) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", domain.ErrStorage, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO orders (customer_name, total_amount, created_at, items_json)
		VALUES ($1, $2::text::numeric, $3, $4)
		RETURNING id`,
		d.CustomerLabel, d.TotalAmount.String(), d.CreatedAt, d.Snapshot).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert order: %w", domain.ErrStorage, err)
	}

	payload, err := json.Marshal(domain.NewOrderRecorded(uuid.NewString(), id, d))
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		"order", strconv.FormatInt(id, 10), domain.EventOrderRecorded, payload,
		map[string]string{"source": "pos-service"}, tracing.Traceparent(ctx), string(outbox.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("%w: insert outbox: %w", domain.ErrStorage, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}
	return id, nil
}

const selectOrder = `SELECT id, customer_name, total_amount::text, created_at, items_json FROM orders`

func (r *Repository) Get(ctx context.Context, id int64) (domain.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, domain.ErrOrderNotFound
	}
	return rec, err
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.Record, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query orders: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	recs := make([]domain.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %w", domain.ErrStorage, err)
	}
	return recs, nil
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var (
		rec   domain.Record
		total string
	)
	err := row.Scan(&rec.ID, &rec.CustomerLabel, &total, &rec.CreatedAt, &rec.Snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, err
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: scan order: %w", domain.ErrStorage, err)
	}
	if rec.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Record{}, fmt.Errorf("%w: total of order %d: %w", domain.ErrStorage, rec.ID, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
		FROM outbox
		WHERE status = $2 OR (status = $3 AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize, string(outbox.StatusPending), string(outbox.StatusInProgress))
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.RetryCount, &event.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		event.Headers = headers
		event.Status = outbox.StatusInProgress
		event.RelayID = relayID
		events = append(events, event)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status=$4, relay_id=$1, lease_until=now() + $2::bigint * interval '1 millisecond' WHERE id = ANY($3)`,
		relayID, lease.Milliseconds(), ids, string(outbox.StatusInProgress))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status=$2 WHERE id = ANY($1)`, ids, string(outbox.StatusSent))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox
		SET status = CASE WHEN retry_count + 1 >= $3 THEN $4::text ELSE $5::text END,
		    last_error = $2, retry_count = retry_count + 1
		WHERE id = $1`, id, errMsg, outbox.MaxAttempts, string(outbox.StatusFailed), string(outbox.StatusPending))
	return err
}
