package logging

import (
	"context"
	"log/slog"

	"github.com/loggate/loggate/internal/logctx"
)

// ContextKey is the single well-known record field carrying the merged
// request context. Call sites may attach their own explicit context under the
// same key; it wins over ambient entries on collision.
const ContextKey = "context"

// ContextHandler enriches every record with the merged request context right
// before it reaches the wrapped handler. It never drops a record and never
// inspects level or content; routing stays the wrapped handler's concern.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner so each record it handles carries the merged
// context under ContextKey.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// Enabled reports whether the wrapped handler handles records at the level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle merges any explicit context attached to the record over the ambient
// store snapshot and forwards the enriched record. The record is always
// forwarded.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	ambient := logctx.Snapshot(ctx)

	var explicit map[string]any
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ContextKey {
			explicit = attrContext(a.Value)
			return true
		}
		out.AddAttrs(a)
		return true
	})

	merged := logctx.Merge(explicit, ambient)
	if len(merged) > 0 {
		out.AddAttrs(slog.Any(ContextKey, merged))
	}

	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a ContextHandler wrapping the derived inner handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.inner.WithAttrs(attrs))
}

// WithGroup returns a ContextHandler wrapping the derived inner handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return NewContextHandler(h.inner.WithGroup(name))
}

// attrContext interprets a call-site context value. Both map-valued attrs and
// slog groups are accepted.
func attrContext(v slog.Value) map[string]any {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make(map[string]any, len(attrs))
		for _, a := range attrs {
			out[a.Key] = a.Value.Resolve().Any()
		}
		return out
	case slog.KindAny:
		if m, ok := v.Any().(map[string]any); ok {
			return m
		}
	default:
	}
	return nil
}
