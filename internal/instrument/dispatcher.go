// Package instrument provides request-scoped instrumentation: a dispatcher
// that fixes the blocking-vs-cooperative call strategy at construction, the
// prepare/finalize request lifecycle that binds request metadata into the log
// context, and a streaming-body wrapper that marks the start, end, and
// failure edges of incremental responses.
package instrument

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotImplemented is returned when an invocation is routed to a dispatch
// path the concrete middleware did not supply. Failing loudly here forces
// every middleware to implement both paths explicitly.
var ErrNotImplemented = errors.New("instrument: dispatch path not implemented")

// Mode is the call strategy fixed for the lifetime of one middleware
// instance.
type Mode int

const (
	// ModeBlocking means one worker goroutine carries a request from start
	// to finish.
	ModeBlocking Mode = iota + 1

	// ModeCooperative means the downstream handler completes asynchronously
	// and is awaited on a result channel.
	ModeCooperative
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeCooperative:
		return "cooperative"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Handler is the blocking calling convention: the call returns only when the
// response is ready.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Outcome is the single result a cooperative handler delivers.
type Outcome struct {
	Response Response
	Err      error
}

// AsyncHandler is the cooperative calling convention: the call returns
// immediately with a channel that yields exactly one Outcome.
type AsyncHandler interface {
	HandleAsync(ctx context.Context, req Request) <-chan Outcome
}

// AsyncHandlerFunc adapts a function to AsyncHandler.
type AsyncHandlerFunc func(ctx context.Context, req Request) <-chan Outcome

// HandleAsync implements AsyncHandler.
func (f AsyncHandlerFunc) HandleAsync(ctx context.Context, req Request) <-chan Outcome {
	return f(ctx, req)
}

// Dispatcher inspects the downstream handler's calling convention exactly
// once, at construction, and routes every subsequent invocation through the
// stored mode. The mode never changes afterwards.
//
// Concrete middlewares supply the two path implementations; a nil path that
// gets selected fails with ErrNotImplemented rather than silently doing
// nothing.
type Dispatcher struct {
	mode     Mode
	blocking Handler
	async    AsyncHandler

	// CallBlocking runs an invocation in blocking mode.
	CallBlocking func(ctx context.Context, req Request, next Handler) (Response, error)

	// CallCooperative runs an invocation in cooperative mode.
	CallCooperative func(ctx context.Context, req Request, next AsyncHandler) (Response, error)
}

// NewDispatcher determines the dispatch mode from the downstream handler. A
// handler implementing both conventions is treated as cooperative, matching
// the convention check's precedence.
func NewDispatcher(downstream any) (*Dispatcher, error) {
	switch h := downstream.(type) {
	case AsyncHandler:
		return &Dispatcher{mode: ModeCooperative, async: h}, nil
	case Handler:
		return &Dispatcher{mode: ModeBlocking, blocking: h}, nil
	default:
		return nil, fmt.Errorf("instrument: downstream handler %T implements neither Handler nor AsyncHandler", downstream)
	}
}

// Mode reports the dispatch mode fixed at construction.
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Invoke routes the request through the path selected at construction.
func (d *Dispatcher) Invoke(ctx context.Context, req Request) (Response, error) {
	switch d.mode {
	case ModeCooperative:
		if d.CallCooperative == nil {
			return nil, fmt.Errorf("%w: cooperative", ErrNotImplemented)
		}
		return d.CallCooperative(ctx, req, d.async)
	default:
		if d.CallBlocking == nil {
			return nil, fmt.Errorf("%w: blocking", ErrNotImplemented)
		}
		return d.CallBlocking(ctx, req, d.blocking)
	}
}
