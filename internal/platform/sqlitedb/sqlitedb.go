// Package sqlitedb opens the single-file store used by a standalone till.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmehra2102/pos-checkout/internal/platform/migrations"
)

// TimeLayout is how timestamps are written to TEXT columns. It is fixed
// width so that string comparison orders instants.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open connects to path, applies migrations and limits the pool to one
// connection so that writers are serialized.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrations.UpSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
