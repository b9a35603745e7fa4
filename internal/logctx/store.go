// Package logctx provides an execution-scoped key/value store for request
// metadata that is merged into every log record emitted while handling the
// request.
//
// The store is carried on context.Context and is immutable: every mutation
// returns a derived context holding a copied map. Isolation between
// concurrently handled requests therefore falls out of context propagation
// itself; no locking is involved. Code that branches a context never observes
// bindings made on a sibling branch.
package logctx

import (
	"context"
	"sort"
)

type ctxKey struct{}

// entry is a single stored value. A tombstoned entry reads as absent but is
// distinguishable from a key that was never set, so an explicit Unbind cannot
// be resurrected by an outer scope's stale value.
type entry struct {
	value     any
	tombstone bool
}

type store map[string]entry

// Token captures the state one key held before a bind, sufficient to restore
// it exactly, including "was absent". Tokens for the same key must be applied
// in last-in-first-out order; Reset handles that.
type Token struct {
	key     string
	prev    entry
	existed bool
}

// Key reports which entry this token restores.
func (t Token) Key() string { return t.key }

func fromContext(ctx context.Context) store {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(ctxKey{}).(store); ok {
		return s
	}
	return nil
}

func (s store) clone() store {
	next := make(store, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	return next
}

// Bind sets entries for every pair and returns the derived context.
func Bind(ctx context.Context, pairs map[string]any) context.Context {
	if len(pairs) == 0 {
		return ctx
	}
	next := fromContext(ctx).clone()
	for k, v := range pairs {
		next[k] = entry{value: v}
	}
	return context.WithValue(ctx, ctxKey{}, next)
}

// BatchBind sets entries like Bind and additionally returns one Token per key
// so the caller can restore the prior state with Reset. Tokens are issued in
// sorted key order to keep behavior deterministic.
func BatchBind(ctx context.Context, pairs map[string]any) (context.Context, []Token) {
	if len(pairs) == 0 {
		return ctx, nil
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	current := fromContext(ctx)
	next := current.clone()
	tokens := make([]Token, 0, len(keys))

	for _, k := range keys {
		prev, existed := current[k]
		tokens = append(tokens, Token{key: k, prev: prev, existed: existed})
		next[k] = entry{value: pairs[k]}
	}

	return context.WithValue(ctx, ctxKey{}, next), tokens
}

// Unbind tombstones the entry: it reads as absent from Snapshot, yet remains
// distinct from never-set so a later Reset restores exactly the prior state.
func Unbind(ctx context.Context, key string) context.Context {
	next := fromContext(ctx).clone()
	next[key] = entry{tombstone: true}
	return context.WithValue(ctx, ctxKey{}, next)
}

// Reset restores each tokened key to its pre-bind state. Tokens are applied in
// reverse order of issuance, which yields strict LIFO restoration when the
// same key was bound more than once.
func Reset(ctx context.Context, tokens []Token) context.Context {
	if len(tokens) == 0 {
		return ctx
	}
	next := fromContext(ctx).clone()
	for i := len(tokens) - 1; i >= 0; i-- {
		t := tokens[i]
		if t.existed {
			next[t.key] = t.prev
		} else {
			delete(next, t.key)
		}
	}
	return context.WithValue(ctx, ctxKey{}, next)
}

// ClearAll tombstones every entry currently visible in ctx.
func ClearAll(ctx context.Context) context.Context {
	current := fromContext(ctx)
	if len(current) == 0 {
		return ctx
	}
	next := make(store, len(current))
	for k := range current {
		next[k] = entry{tombstone: true}
	}
	return context.WithValue(ctx, ctxKey{}, next)
}

// Snapshot returns all non-tombstoned entries visible in ctx. Tombstoned keys
// do not appear at all. The returned map is the caller's to mutate.
func Snapshot(ctx context.Context) map[string]any {
	current := fromContext(ctx)
	out := make(map[string]any, len(current))
	for k, e := range current {
		if e.tombstone {
			continue
		}
		out[k] = e.value
	}
	return out
}

// Merge combines an explicit per-record context with the ambient store
// snapshot. Explicit wins on key collision; keys unique to either side pass
// through.
func Merge(explicit, ambient map[string]any) map[string]any {
	out := make(map[string]any, len(explicit)+len(ambient))
	for k, v := range ambient {
		out[k] = v
	}
	for k, v := range explicit {
		out[k] = v
	}
	return out
}

// Scoped binds pairs for the duration of body. The body receives the derived
// context; the caller's context is untouched on every exit path, including an
// error return or a panic, so a snapshot taken after Scoped equals one taken
// before. Errors from body propagate unchanged.
func Scoped(ctx context.Context, pairs map[string]any, body func(context.Context) error) error {
	bound, _ := BatchBind(ctx, pairs)
	return body(bound)
}
