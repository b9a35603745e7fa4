// Package app contains application services that orchestrate use cases.
// It coordinates domain logic and storage through ports and carries the
// cross-cutting logging concerns; transport specifics live in adapters.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loggate/loggate/internal/domain"
	"github.com/loggate/loggate/internal/platform/logging"
	"github.com/loggate/loggate/internal/ports"
)

// NoteService orchestrates note use cases.
type NoteService struct {
	repo   ports.NoteRepository
	logger *slog.Logger
}

// NewNoteService creates a note service.
func NewNoteService(repo ports.NoteRepository, logger *slog.Logger) *NoteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteService{
		repo:   repo,
		logger: logger.With(slog.String("component", "app.NoteService")),
	}
}

// Create validates and stores a new note.
func (s *NoteService) Create(ctx context.Context, title, body string) (*domain.Note, error) {
	logger := logging.FromContext(ctx)

	note := &domain.Note{Title: title, Body: body}
	if err := note.Validate(); err != nil {
		return nil, fmt.Errorf("validating note: %w", err)
	}

	created, err := s.repo.Create(ctx, note)
	if err != nil {
		return nil, fmt.Errorf("creating note: %w", err)
	}

	logger.InfoContext(ctx, "note created", slog.Int64("note_id", created.ID))

	return created, nil
}

// Get returns a note by ID.
func (s *NoteService) Get(ctx context.Context, id int64) (*domain.Note, error) {
	note, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}
	return note, nil
}

// List returns all notes, newest first.
func (s *NoteService) List(ctx context.Context) ([]*domain.Note, error) {
	notes, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Delete removes a note by ID.
func (s *NoteService) Delete(ctx context.Context, id int64) error {
	logger := logging.FromContext(ctx)

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}

	logger.InfoContext(ctx, "note deleted", slog.Int64("note_id", id))

	return nil
}
