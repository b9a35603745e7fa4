package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loggate/loggate/internal/logctx"
	"github.com/loggate/loggate/internal/storage/querylog"
)

// Principal identifies the authenticated caller of a request.
type Principal interface {
	ID() int64
	Username() string
}

// Request is the transport-agnostic view of an inbound request. Header
// lookups must be case-insensitive, the way net/http headers behave.
type Request interface {
	Method() string
	Path() string
	Query() map[string][]string
	Header(name string) string
	RemoteAddr() string
	Principal() (Principal, bool)
}

// Response is the transport-agnostic view of an outbound response.
type Response interface {
	StatusCode() int
	Header(name string) string
}

// StreamingResponse is a response whose body is produced incrementally.
// Instrumentation swaps the body for a wrapped one that logs stream edges.
type StreamingResponse interface {
	Response
	Body() Stream
	SetBody(Stream)
}

const (
	// DefaultRequestIDHeader is the inbound header consulted first for a
	// request id.
	DefaultRequestIDHeader = "X-Request-ID"

	unknownIP        = "Unknown IP"
	unknownUserAgent = "Unknown User Agent"
)

type requestIDKey struct{}

// ContextWithRequestID stores a transport-metadata request id on the
// context. It is consulted only when the inbound header carries none.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the transport-metadata request id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

type stateKey struct{}

type requestState struct {
	requestID      string
	initialQueries int
	recorder       *querylog.Recorder
}

// Options tunes the instrumentor.
type Options struct {
	// RequestIDHeader overrides DefaultRequestIDHeader.
	RequestIDHeader string

	// CountQueries enables the per-request SQL query summary on the
	// finished log line.
	CountQueries bool
}

// Instrumentor runs the prepare and finalize halves of request
// instrumentation: prepare binds request metadata into the log context and
// emits the started line, finalize emits the finished line with principal,
// status, timing and the optional query summary.
type Instrumentor struct {
	logger       *slog.Logger
	idHeader     string
	countQueries bool
}

// NewInstrumentor builds an instrumentor logging through logger.
func NewInstrumentor(logger *slog.Logger, opts Options) *Instrumentor {
	header := opts.RequestIDHeader
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return &Instrumentor{
		logger:       logger,
		idHeader:     header,
		countQueries: opts.CountQueries,
	}
}

// Logger returns the instrumentor's logger.
func (i *Instrumentor) Logger() *slog.Logger {
	return i.logger
}

// Prepare resolves the request identity, binds it into the log context, and
// emits the request-started line. The returned context carries everything
// finalize needs; all bindings die with it.
//
// The request id is taken from the configured header, then from transport
// metadata on ctx, and is generated fresh when neither is present. The
// client IP prefers the first X-Forwarded-For entry over the socket address.
func (i *Instrumentor) Prepare(ctx context.Context, req Request) (context.Context, string) {
	id := req.Header(i.idHeader)
	if id == "" {
		if metaID, ok := RequestIDFromContext(ctx); ok {
			id = metaID
		} else {
			id = uuid.NewString()
		}
	}

	ctx = logctx.Bind(ctx, map[string]any{
		"request_id": id,
		"ip_address": clientIP(req),
		"user_agent": userAgent(req),
	})

	st := &requestState{requestID: id}
	if i.countQueries {
		var rec *querylog.Recorder
		ctx, rec = querylog.WithRecorder(ctx)
		st.recorder = rec
		st.initialQueries = rec.Count()
	}
	ctx = context.WithValue(ctx, stateKey{}, st)

	i.logger.InfoContext(ctx, "request started",
		slog.String("method", req.Method()),
		slog.String("path", req.Path()),
		slog.String("query_params", formatQueryParams(req.Query())),
		slog.String("referrer", referrer(req)),
	)
	return ctx, id
}

// Finalize emits the request-finished line. The response may be nil when the
// handler failed; the line is still emitted so every prepared request has a
// terminal record.
func (i *Instrumentor) Finalize(ctx context.Context, req Request, resp Response, start time.Time) {
	attrs := []slog.Attr{
		slog.String("user", principalLabel(req)),
		slog.String("response_time", FormatElapsed(time.Since(start))),
	}
	if resp != nil {
		attrs = append(attrs,
			slog.Int("status_code", resp.StatusCode()),
			slog.String("content_type", resp.Header("Content-Type")),
		)
	}
	if st, ok := ctx.Value(stateKey{}).(*requestState); ok && st.recorder != nil {
		if delta := st.recorder.Since(st.initialQueries); len(delta) > 0 {
			attrs = append(attrs, slog.String("sql_queries", querySummary(delta)))
		}
	}
	i.logger.LogAttrs(ctx, slog.LevelInfo, "request finished", attrs...)
}

func clientIP(req Request) string {
	if fwd := req.Header("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := req.RemoteAddr()
	if addr == "" {
		return unknownIP
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func userAgent(req Request) string {
	if ua := req.Header("User-Agent"); ua != "" {
		return ua
	}
	return unknownUserAgent
}

func referrer(req Request) string {
	if ref := req.Header("Referer"); ref != "" {
		return ref
	}
	return "None"
}

func principalLabel(req Request) string {
	p, ok := req.Principal()
	if !ok {
		return "Anonymous"
	}
	return fmt.Sprintf("[%s (ID:%d)]", p.Username(), p.ID())
}

func formatQueryParams(params map[string][]string) string {
	if len(params) == 0 {
		return "None"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for n, k := range keys {
		if n > 0 {
			b.WriteString(", ")
		}
		vals := params[k]
		if len(vals) == 1 {
			fmt.Fprintf(&b, "%q: %q", k, vals[0])
		} else {
			fmt.Fprintf(&b, "%q: %q", k, vals)
		}
	}
	b.WriteByte('}')
	return b.String()
}

func querySummary(queries []querylog.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d SQL QUERIES EXECUTED", len(queries))
	for n, q := range queries {
		fmt.Fprintf(&b, "\n\tQuery%d={Time: %.3f(s), Query: [%s]}", n+1, q.Duration.Seconds(), q.SQL)
	}
	return b.String()
}
