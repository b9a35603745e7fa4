package instrument

import (
	"context"
	"log/slog"
	"time"

	"github.com/loggate/loggate/internal/storage/querylog"
)

// TrackOptions tunes Track.
type TrackOptions struct {
	// Level of the tracked line. Defaults to info.
	Level slog.Level

	// CountQueries includes a query count for the tracked span.
	CountQueries bool

	// QueryThreshold raises the tracked line to a warning when the span
	// executed more than this many queries. Zero disables the check.
	QueryThreshold int
}

// Track times fn and logs one line with its name, elapsed time and, when
// enabled, the number of SQL queries the span ran. fn's error is returned
// unchanged; the line is emitted either way.
func Track(ctx context.Context, logger *slog.Logger, name string, opts TrackOptions, fn func(context.Context) error) error {
	rec, ok := querylog.FromContext(ctx)
	if opts.CountQueries && !ok {
		ctx, rec = querylog.WithRecorder(ctx)
	}
	var mark int
	if opts.CountQueries {
		mark = rec.Count()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	level := opts.Level
	attrs := []slog.Attr{
		slog.String("operation", name),
		slog.String("elapsed", FormatElapsed(elapsed)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if opts.CountQueries {
		n := rec.Count() - mark
		attrs = append(attrs, slog.Int("query_count", n))
		if opts.QueryThreshold > 0 && n > opts.QueryThreshold {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Int("query_threshold", opts.QueryThreshold))
		}
	}
	logger.LogAttrs(ctx, level, "execution tracked", attrs...)
	return err
}
