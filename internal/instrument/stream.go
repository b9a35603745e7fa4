package instrument

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Stream produces a response body chunk by chunk. Next returns io.EOF after
// the final chunk; any other error aborts the stream.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
}

// SliceStream serves a fixed set of chunks in order.
type SliceStream struct {
	chunks [][]byte
	pos    int
}

// NewSliceStream builds a stream over the given chunks.
func NewSliceStream(chunks ...[]byte) *SliceStream {
	return &SliceStream{chunks: chunks}
}

// Next implements Stream.
func (s *SliceStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(ctx context.Context) ([]byte, error)

// Next implements Stream.
func (f StreamFunc) Next(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

type loggedStream struct {
	inner     Stream
	logger    *slog.Logger
	requestID string
	started   bool
	done      bool
}

// WrapStream decorates a stream so its lifecycle shows up in the logs: an
// info line before the first chunk, an info line when the stream ends, a
// warning on cancellation, and an error line on any other failure. Chunks
// pass through unaltered and errors propagate unchanged.
func WrapStream(logger *slog.Logger, s Stream, requestID string) Stream {
	return &loggedStream{inner: s, logger: logger, requestID: requestID}
}

// Next implements Stream.
func (ls *loggedStream) Next(ctx context.Context) ([]byte, error) {
	if ls.done {
		return nil, io.EOF
	}
	if !ls.started {
		ls.started = true
		ls.logger.InfoContext(ctx, "streaming started",
			slog.String("request_id", ls.requestID))
	}

	chunk, err := ls.inner.Next(ctx)
	switch {
	case err == nil:
		return chunk, nil
	case errors.Is(err, io.EOF):
		ls.done = true
		ls.logger.InfoContext(ctx, "streaming finished",
			slog.String("request_id", ls.requestID))
		return nil, io.EOF
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		ls.done = true
		ls.logger.WarnContext(ctx, "streaming cancelled",
			slog.String("request_id", ls.requestID))
		return nil, err
	default:
		ls.done = true
		ls.logger.LogAttrs(ctx, slog.LevelError, "streaming failed",
			slog.String("request_id", ls.requestID),
			slog.String("exception", err.Error()))
		return nil, err
	}
}

// Drain pulls every chunk from s into w, flushing after each write when w
// supports it. The first stream or write error stops the drain and is
// returned; io.EOF means a clean end and is not an error.
func Drain(ctx context.Context, s Stream, w io.Writer) error {
	type flusher interface{ Flush() }
	fl, canFlush := w.(flusher)
	for {
		chunk, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		if canFlush {
			fl.Flush()
		}
	}
}
