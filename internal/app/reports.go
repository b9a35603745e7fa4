package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/loggate/loggate/internal/domain"
	"github.com/loggate/loggate/internal/instrument"
	"github.com/loggate/loggate/internal/ports"
)

// ReportService builds incremental note reports. The report body is produced
// chunk by chunk so large stores never need a full in-memory render.
type ReportService struct {
	repo   ports.NoteRepository
	logger *slog.Logger
}

// NewReportService creates a report service.
func NewReportService(repo ports.NoteRepository, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		repo:   repo,
		logger: logger.With(slog.String("component", "app.ReportService")),
	}
}

// Stream returns a stream of report lines over all stored notes. The note
// list is loaded inside a tracked span so its cost and query count land in
// the logs.
func (s *ReportService) Stream(ctx context.Context) (instrument.Stream, error) {
	var notes []*domain.Note

	err := instrument.Track(ctx, s.logger, "report note load",
		instrument.TrackOptions{CountQueries: true},
		func(ctx context.Context) error {
			loaded, err := s.repo.List(ctx)
			if err != nil {
				return err
			}
			notes = loaded
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading notes for report: %w", err)
	}

	return &reportStream{notes: notes}, nil
}

// reportStream renders one header line, one line per note, and a trailing
// summary line.
type reportStream struct {
	notes []*domain.Note
	pos   int
	done  bool
}

// Next implements instrument.Stream.
func (r *reportStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.done {
		return nil, io.EOF
	}

	switch {
	case r.pos == 0:
		r.pos++
		return []byte("NOTES REPORT\n"), nil
	case r.pos <= len(r.notes):
		note := r.notes[r.pos-1]
		r.pos++
		line := fmt.Sprintf("%d\t%s\t%s\n",
			note.ID, note.CreatedAt.Format("2006-01-02 15:04:05"), note.Title)
		return []byte(line), nil
	default:
		r.done = true
		return []byte(fmt.Sprintf("TOTAL: %d note(s)\n", len(r.notes))), nil
	}
}
