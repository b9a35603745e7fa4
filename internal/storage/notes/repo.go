// Package notes implements the note repository on SQLite. Statements go
// through the querylog wrapper so per-request instrumentation can report
// them.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/loggate/loggate/internal/domain"
	"github.com/loggate/loggate/internal/storage/querylog"
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);`

// Repository is a SQLite-backed note store.
type Repository struct {
	db *querylog.DB
}

// NewRepository prepares the schema and returns the store.
func NewRepository(ctx context.Context, db *querylog.DB) (*Repository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("preparing notes schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Create stores a new note and returns it with the assigned ID.
func (r *Repository) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	if err := note.Validate(); err != nil {
		return nil, err
	}

	created := *note
	created.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notes (title, body, created_at) VALUES (?, ?, ?)",
		created.Title, created.Body, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading note id: %w", err)
	}
	created.ID = id

	return &created, nil
}

// Get returns the note with the given ID.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Note, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, title, body, created_at FROM notes WHERE id = ?", id)

	var note domain.Note
	err := row.Scan(&note.ID, &note.Title, &note.Body, &note.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("note", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("scanning note: %w", err)
	}

	return &note, nil
}

// List returns all notes, newest first.
func (r *Repository) List(ctx context.Context) ([]*domain.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, body, created_at FROM notes ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		if err := rows.Scan(&note.ID, &note.Title, &note.Body, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note row: %w", err)
		}
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}

	return notes, nil
}

// Delete removes the note with the given ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("note", strconv.FormatInt(id, 10))
	}

	return nil
}

// Count returns the number of stored notes.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, "SELECT count(*) FROM notes")

	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return n, nil
}

// Name identifies the store in health check responses.
func (r *Repository) Name() string {
	return "sqlite"
}

// Check reports store health by pinging the database.
func (r *Repository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
