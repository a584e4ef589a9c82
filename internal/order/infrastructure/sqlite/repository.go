package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/pos-checkout/internal/order/domain"
	"github.com/dmehra2102/pos-checkout/internal/platform/sqlitedb"
	"github.com/dmehra2102/pos-checkout/pkg/outbox"
	"github.com/dmehra2102/pos-checkout/pkg/tracing"
)

// Repository is the order ledger on top of a single sqlite file.
type Repository struct {
	log *slog.Logger
	db  *sql.DB
	now func() time.Time
}

func NewRepository(log *slog.Logger, db *sql.DB) *Repository {
	return &Repository{log: log, db: db, now: time.Now}
}

// Append writes the order and its OrderRecorded outbox row in one transaction.
func (r *Repository) Append(ctx context.Context, d domain.Draft) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", domain.ErrStorage, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO orders (customer_name, total_amount, created_at, items_json)
		VALUES (?, ?, ?, ?)`,
		d.CustomerLabel, d.TotalAmount.String(), sqlitedb.FormatTime(d.CreatedAt), d.Snapshot)
	if err != nil {
		return 0, fmt.Errorf("%w: insert order: %w", domain.ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %w", domain.ErrStorage, err)
	}

	payload, err := json.Marshal(domain.NewOrderRecorded(uuid.NewString(), id, d))
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	headers, err := json.Marshal(map[string]string{"source": "pos-service"})
	if err != nil {
		return 0, fmt.Errorf("marshal headers: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status, created_at)
		VALUES ('order', ?, ?, ?, ?, ?, ?, ?)`,
		strconv.FormatInt(id, 10), domain.EventOrderRecorded, payload, string(headers), tracing.Traceparent(ctx),
		string(outbox.StatusPending), sqlitedb.FormatTime(r.now()))
	if err != nil {
		return 0, fmt.Errorf("%w: insert outbox: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}
	return id, nil
}

const selectOrder = `SELECT id, customer_name, total_amount, created_at, items_json FROM orders`

func (r *Repository) Get(ctx context.Context, id int64) (domain.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrOrderNotFound
	}
	return rec, err
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+` ORDER BY id DESC LIMIT ?`, limit)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.Record, error) {
	var (
		rec     domain.Record
		created string
	)
	err := s.Scan(&rec.ID, &rec.CustomerLabel, &rec.TotalAmount, &created, &rec.Snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, err
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: scan order: %w", domain.ErrStorage, err)
	}
	if rec.CreatedAt, err = sqlitedb.ParseTime(created); err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return rec, nil
}

type OutboxStore struct {
	log *slog.Logger
	db  *sql.DB
	now func() time.Time
}

func NewOutboxStore(log *slog.Logger, db *sql.DB) *OutboxStore {
	return &OutboxStore{log: log, db: db, now: time.Now}
}

// LockBatch leases pending events, and in-progress ones whose lease ran out.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now()
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
		FROM outbox
		WHERE status = ? OR (status = ? AND lease_until < ?)
		ORDER BY id
		LIMIT ?`, string(outbox.StatusPending), string(outbox.StatusInProgress), sqlitedb.FormatTime(now), batchSize)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var (
			ev      outbox.Event
			headers string
			created string
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload, &headers, &ev.Traceparent, &ev.RetryCount, &created); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &ev.Headers); err != nil {
			rows.Close()
			return nil, fmt.Errorf("outbox %d headers: %w", ev.ID, err)
		}
		if ev.CreatedAt, err = sqlitedb.ParseTime(created); err != nil {
			rows.Close()
			return nil, err
		}
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit()
	}

	until := sqlitedb.FormatTime(now.Add(lease))
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `UPDATE outbox SET status = ?, relay_id = ?, lease_until = ? WHERE id = ?`,
			string(outbox.StatusInProgress), relayID, until, ev.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var updated int64
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `UPDATE outbox SET status = ? WHERE id = ?`, string(outbox.StatusSent), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated += n
	}
	if updated == 0 {
		return errors.New("no rows updated")
	}
	return tx.Commit()
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox
		SET status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
		    last_error = ?, retry_count = retry_count + 1
		WHERE id = ?`, outbox.MaxAttempts, string(outbox.StatusFailed), string(outbox.StatusPending), errMsg, id)
	return err
}
