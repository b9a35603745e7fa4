// Package format provides structured slog handlers that render records as
// flat key=value lines, JSON, or XML. Each handler is built from a field
// template declaring which record fields appear in the output and in what
// order, e.g. "%(levelname)s | %(asctime)s | %(message)s".
package format

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ExceptionKey is the record attribute carrying exception information. Every
// formatter renders it last, and only when present.
const ExceptionKey = "exception"

// DefaultTimeLayout renders the asctime pseudo-field.
const DefaultTimeLayout = "2006-01-02 15:04:05"

var specifierPattern = regexp.MustCompile(`%\((\w+)\)`)

// Fields extracts the ordered field names declared in a template string.
// Malformed templates are the settings validator's problem; anything that
// does not look like a specifier is simply not a field.
func Fields(template string) []string {
	matches := specifierPattern.FindAllStringSubmatch(template, -1)
	fields := make([]string, 0, len(matches))
	for _, m := range matches {
		fields = append(fields, m[1])
	}
	return fields
}

// Options configures a formatter handler.
type Options struct {
	// Level is the minimum record level the handler emits. Defaults to
	// slog.LevelInfo when nil.
	Level slog.Leveler

	// TimeLayout formats the asctime pseudo-field. Defaults to
	// DefaultTimeLayout.
	TimeLayout string
}

// handler holds the state shared by the flat, JSON, and XML handlers.
type handler struct {
	mu     *sync.Mutex
	w      writerRef
	fields []string
	level  slog.Leveler
	layout string
	attrs  []slog.Attr
	groups []string
}

// writerRef keeps derived handlers (WithAttrs/WithGroup copies) writing
// through the same mutex-guarded writer.
type writerRef struct {
	out io.Writer
}

func newHandler(w io.Writer, template string, opts Options) handler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	layout := opts.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return handler{
		mu:     &sync.Mutex{},
		w:      writerRef{out: w},
		fields: Fields(template),
		level:  level,
		layout: layout,
	}
}

func (h handler) enabled(level slog.Level) bool {
	return level >= h.level.Level()
}

func (h handler) withAttrs(attrs []slog.Attr) handler {
	next := h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.qualify(a))
	}
	return next
}

func (h handler) withGroup(name string) handler {
	if name == "" {
		return h
	}
	next := h
	next.groups = make([]string, 0, len(h.groups)+1)
	next.groups = append(next.groups, h.groups...)
	next.groups = append(next.groups, name)
	return next
}

func (h handler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func (h handler) write(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.out.Write(p)
	return err
}

// record is the resolved view of one slog.Record a renderer works from.
type record struct {
	attrs     map[string]any
	message   string
	time      time.Time
	level     slog.Level
	pc        uintptr
	exception string
	hasExc    bool
}

func (h handler) capture(r slog.Record) record {
	rec := record{
		attrs:   make(map[string]any, r.NumAttrs()+len(h.attrs)),
		message: r.Message,
		time:    r.Time,
		level:   r.Level,
		pc:      r.PC,
	}
	for _, a := range h.attrs {
		rec.addAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.addAttr(h.qualify(a))
		return true
	})
	return rec
}

func (rec *record) addAttr(a slog.Attr) {
	if a.Key == ExceptionKey {
		rec.exception = exceptionText(a.Value)
		rec.hasExc = true
		return
	}
	rec.attrs[a.Key] = attrValue(a.Value)
}

func exceptionText(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}

// attrValue converts a slog.Value into plain Go data: groups become maps,
// everything else resolves to its underlying value.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	if v.Kind() == slog.KindGroup {
		attrs := v.Group()
		out := make(map[string]any, len(attrs))
		for _, a := range attrs {
			out[a.Key] = attrValue(a.Value)
		}
		return out
	}
	return v.Any()
}

// resolve returns the value for one declared field. Unresolved fields report
// ok=false and are dropped or skipped by the renderer, never an error.
func (h handler) resolve(rec record, field string) (any, bool) {
	switch field {
	case "message":
		return rec.message, true
	case "asctime":
		if rec.time.IsZero() {
			return nil, false
		}
		return rec.time.Format(h.layout), true
	case "levelname":
		return rec.level.String(), true
	case "levelno":
		return int(rec.level), true
	case "module", "filename", "lineno", "funcname":
		return sourceField(rec.pc, field)
	case ExceptionKey:
		// Rendered separately, always last.
		return nil, false
	default:
		v, ok := rec.attrs[field]
		return v, ok
	}
}

func sourceField(pc uintptr, field string) (any, bool) {
	if pc == 0 {
		return nil, false
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	switch field {
	case "filename":
		return shortFile(frame.File), frame.File != ""
	case "lineno":
		return frame.Line, frame.Line != 0
	case "funcname":
		return shortFunc(frame.Function), frame.Function != ""
	case "module":
		return packageName(frame.Function), frame.Function != ""
	}
	return nil, false
}

func shortFile(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		return file[i+1:]
	}
	return file
}

func shortFunc(fn string) string {
	if i := strings.LastIndexByte(fn, '.'); i >= 0 {
		return fn[i+1:]
	}
	return fn
}

func packageName(fn string) string {
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.IndexByte(fn, '.'); i >= 0 {
		return fn[:i]
	}
	return fn
}

// flatten recursively prepares a value for rendering: maps and slices keep
// their shape with stringified leaves, everything else becomes a string.
func flatten(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = flatten(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flatten(item)
		}
		return out
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}
