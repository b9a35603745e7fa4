// Package ports defines the interfaces the application layer depends on.
// Adapters implement them; the app layer never imports an adapter directly.
package ports

import (
	"context"

	"github.com/loggate/loggate/internal/domain"
)

// NoteRepository persists notes.
type NoteRepository interface {
	// Create stores a new note and returns it with the assigned ID.
	Create(ctx context.Context, note *domain.Note) (*domain.Note, error)

	// Get returns the note with the given ID, or a not-found error.
	Get(ctx context.Context, id int64) (*domain.Note, error)

	// List returns all notes, newest first.
	List(ctx context.Context) ([]*domain.Note, error)

	// Delete removes the note with the given ID, or returns not-found.
	Delete(ctx context.Context, id int64) error
}
