package format

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// FlatHandler renders each record as a single line of space-joined
// field='value' tokens, in template order, with exception='...' appended only
// when the record carries one.
type FlatHandler struct {
	handler
}

// NewFlatHandler creates a flat-line handler writing to w.
func NewFlatHandler(w io.Writer, template string, opts Options) *FlatHandler {
	return &FlatHandler{handler: newHandler(w, template, opts)}
}

// Enabled implements slog.Handler.
func (h *FlatHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

// Handle implements slog.Handler.
func (h *FlatHandler) Handle(_ context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	rec := h.capture(r)

	var b strings.Builder
	for _, field := range h.fields {
		if field == ExceptionKey {
			continue
		}
		value, ok := h.resolve(rec, field)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s='%v'", field, value)
	}
	if rec.hasExc {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s='%s'", ExceptionKey, rec.exception)
	}
	b.WriteByte('\n')

	return h.write([]byte(b.String()))
}

// WithAttrs implements slog.Handler.
func (h *FlatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FlatHandler{handler: h.withAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *FlatHandler) WithGroup(name string) slog.Handler {
	return &FlatHandler{handler: h.withGroup(name)}
}
