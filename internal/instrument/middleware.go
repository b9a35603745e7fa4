package instrument

import (
	"context"
	"errors"
	"time"
)

// Middleware couples an Instrumentor with a Dispatcher: every request is
// prepared, routed through the mode-appropriate path, and finalized. The
// log-context bindings made during prepare live only on the request's
// context, so they vanish when the request ends regardless of how it ends.
type Middleware struct {
	*Dispatcher
	inst *Instrumentor
}

// NewMiddleware wires the instrumentor around the downstream handler. The
// dispatch mode is fixed here and never re-inspected.
func NewMiddleware(inst *Instrumentor, downstream any) (*Middleware, error) {
	d, err := NewDispatcher(downstream)
	if err != nil {
		return nil, err
	}
	m := &Middleware{Dispatcher: d, inst: inst}
	d.CallBlocking = m.invokeBlocking
	d.CallCooperative = m.invokeCooperative
	return m, nil
}

func (m *Middleware) invokeBlocking(ctx context.Context, req Request, next Handler) (Response, error) {
	ctx, id := m.inst.Prepare(ctx, req)
	start := time.Now()

	resp, err := next.Handle(ctx, req)
	if err != nil {
		// Handler errors propagate unchanged; the bindings die with ctx.
		return nil, err
	}

	resp = m.wrapStreaming(resp, id)
	m.inst.Finalize(ctx, req, resp, start)
	return resp, nil
}

func (m *Middleware) invokeCooperative(ctx context.Context, req Request, next AsyncHandler) (Response, error) {
	ctx, id := m.inst.Prepare(ctx, req)
	start := time.Now()

	var out Outcome
	select {
	case <-ctx.Done():
		m.inst.Logger().WarnContext(ctx, "request was cancelled")
		return nil, context.Cause(ctx)
	case out = <-next.HandleAsync(ctx, req):
	}

	if out.Err != nil {
		if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
			m.inst.Logger().WarnContext(ctx, "request was cancelled")
		}
		return nil, out.Err
	}

	resp := m.wrapStreaming(out.Response, id)
	m.inst.Finalize(ctx, req, resp, start)
	return resp, nil
}

func (m *Middleware) wrapStreaming(resp Response, requestID string) Response {
	if sr, ok := resp.(StreamingResponse); ok && sr.Body() != nil {
		sr.SetBody(WrapStream(m.inst.Logger(), sr.Body(), requestID))
		return sr
	}
	return resp
}
