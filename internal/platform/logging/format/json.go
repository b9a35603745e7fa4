package format

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
)

// JSONHandler renders each record as an indented JSON object. Fields follow
// template order; key=value tokens found in the message are promoted to
// typed top-level fields and stripped from it; the cleaned message comes
// after all other fields and exception, when present, comes last of all.
type JSONHandler struct {
	handler
}

// NewJSONHandler creates a JSON handler writing to w.
func NewJSONHandler(w io.Writer, template string, opts Options) *JSONHandler {
	return &JSONHandler{handler: newHandler(w, template, opts)}
}

// Enabled implements slog.Handler.
func (h *JSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

// Handle implements slog.Handler.
func (h *JSONHandler) Handle(_ context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	rec := h.capture(r)

	fields := newOrderedFields()
	for _, field := range h.fields {
		if field == "message" || field == ExceptionKey {
			continue
		}
		if value, ok := h.resolve(rec, field); ok {
			fields.set(field, flatten(value))
		}
	}

	message := rec.message
	if pairs := extractPairs(message); len(pairs) > 0 {
		for _, p := range pairs {
			fields.set(p.key, p.value)
		}
		message = stripPairs(message)
	}
	fields.set("message", cleanMessage(message))

	if rec.hasExc {
		fields.set(ExceptionKey, rec.exception)
	}

	out, err := fields.marshalIndent()
	if err != nil {
		return err
	}
	return h.write(append(out, '\n'))
}

// WithAttrs implements slog.Handler.
func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JSONHandler{handler: h.withAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *JSONHandler) WithGroup(name string) slog.Handler {
	return &JSONHandler{handler: h.withGroup(name)}
}

// orderedFields is a JSON object that keeps insertion order, which
// encoding/json's maps cannot do.
type orderedFields struct {
	keys   []string
	values map[string]any
}

func newOrderedFields() *orderedFields {
	return &orderedFields{values: map[string]any{}}
}

func (f *orderedFields) set(key string, value any) {
	if _, seen := f.values[key]; !seen {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *orderedFields) marshalIndent() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("{")
	for i, key := range f.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("\n  ")

		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteString(": ")

		value, err := json.MarshalIndent(f.values[key], "  ", "  ")
		if err != nil {
			return nil, err
		}
		b.Write(value)
	}
	b.WriteString("\n}")
	return b.Bytes(), nil
}
