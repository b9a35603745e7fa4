package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DB wraps *sql.DB so every statement executed with a context is recorded
// into that context's Recorder. Calls without a Recorder pass straight
// through; recording never alters results or errors.
type DB struct {
	*sql.DB
}

// Open opens a database handle through the named driver, e.g. "sqlite" from
// modernc.org/sqlite.
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return &DB{DB: db}, nil
}

// Wrap adopts an already-open handle.
func Wrap(db *sql.DB) *DB {
	return &DB{DB: db}
}

// QueryContext executes a query and records it.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	record(ctx, query, start)
	return rows, err
}

// QueryRowContext executes a single-row query and records it.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.DB.QueryRowContext(ctx, query, args...)
	record(ctx, query, start)
	return row
}

// ExecContext executes a statement and records it.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.DB.ExecContext(ctx, query, args...)
	record(ctx, query, start)
	return res, err
}

func record(ctx context.Context, query string, start time.Time) {
	if rec, ok := FromContext(ctx); ok {
		rec.Record(query, time.Since(start))
	}
}
