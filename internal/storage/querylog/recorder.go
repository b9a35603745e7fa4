// Package querylog records the SQL statements executed while handling a
// request so instrumentation can report a per-request query summary. A
// Recorder travels on the request context; the DB wrapper feeds it.
package querylog

import (
	"context"
	"sync"
	"time"
)

// Query is one executed statement.
type Query struct {
	SQL      string
	Duration time.Duration
}

// Recorder accumulates the queries of one request. The count only ever grows;
// readers treat it as monotonically non-decreasing.
type Recorder struct {
	mu      sync.Mutex
	queries []Query
}

// Record appends one executed statement.
func (r *Recorder) Record(sql string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, Query{SQL: sql, Duration: d})
}

// Count returns how many statements have been recorded so far.
func (r *Recorder) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// Since returns a copy of the statements recorded after the first n.
func (r *Recorder) Since(n int) []Query {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n >= len(r.queries) {
		return nil
	}
	out := make([]Query, len(r.queries)-n)
	copy(out, r.queries[n:])
	return out
}

type ctxKey struct{}

// WithRecorder returns a context carrying a fresh Recorder, plus the
// Recorder. An existing Recorder on ctx is reused so nested instrumentation
// shares one count.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	if rec, ok := FromContext(ctx); ok {
		return ctx, rec
	}
	rec := &Recorder{}
	return context.WithValue(ctx, ctxKey{}, rec), rec
}

// FromContext returns the Recorder on ctx, if any.
func FromContext(ctx context.Context) (*Recorder, bool) {
	if ctx == nil {
		return nil, false
	}
	rec, ok := ctx.Value(ctxKey{}).(*Recorder)
	return rec, ok
}
