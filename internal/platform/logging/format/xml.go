package format

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// XMLHandler renders each record as an indented <log> element with one child
// per declared field. Map-valued fields get one grandchild per key,
// list-valued fields get indexed item_N grandchildren, and exception is
// appended as the final sibling only when present.
type XMLHandler struct {
	handler
}

// NewXMLHandler creates an XML handler writing to w.
func NewXMLHandler(w io.Writer, template string, opts Options) *XMLHandler {
	return &XMLHandler{handler: newHandler(w, template, opts)}
}

// Enabled implements slog.Handler.
func (h *XMLHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

// Handle implements slog.Handler.
func (h *XMLHandler) Handle(_ context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	rec := h.capture(r)

	var b strings.Builder
	b.WriteString("<log>\n")
	for _, field := range h.fields {
		if field == ExceptionKey {
			continue
		}
		value, ok := h.resolve(rec, field)
		if !ok || value == nil || value == "" {
			continue
		}
		writeField(&b, 1, field, flatten(value))
	}
	if rec.hasExc {
		writeField(&b, 1, ExceptionKey, rec.exception)
	}
	b.WriteString("</log>\n")

	return h.write([]byte(b.String()))
}

// WithAttrs implements slog.Handler.
func (h *XMLHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &XMLHandler{handler: h.withAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *XMLHandler) WithGroup(name string) slog.Handler {
	return &XMLHandler{handler: h.withGroup(name)}
}

func writeField(b *strings.Builder, depth int, name string, value any) {
	indent := strings.Repeat("  ", depth)

	switch v := value.(type) {
	case map[string]any:
		fmt.Fprintf(b, "%s<%s>\n", indent, name)
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(b, depth+1, k, v[k])
		}
		fmt.Fprintf(b, "%s</%s>\n", indent, name)
	case []any:
		fmt.Fprintf(b, "%s<%s>\n", indent, name)
		for i, item := range v {
			writeField(b, depth+1, fmt.Sprintf("item_%d", i), item)
		}
		fmt.Fprintf(b, "%s</%s>\n", indent, name)
	default:
		fmt.Fprintf(b, "%s<%s>%s</%s>\n", indent, name, escape(fmt.Sprint(v)), name)
	}
}

func escape(s string) string {
	var b strings.Builder
	// EscapeText only fails on a failing writer; strings.Builder never does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
