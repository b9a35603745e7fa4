package logctx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Empty(t *testing.T) {
	snap := Snapshot(context.Background())
	assert.Empty(t, snap)
}

func TestBind_SetsEntries(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{
		"request_id": "req-1",
		"ip_address": "203.0.113.5",
	})

	snap := Snapshot(ctx)
	assert.Equal(t, "req-1", snap["request_id"])
	assert.Equal(t, "203.0.113.5", snap["ip_address"])
}

func TestBind_DoesNotMutateParent(t *testing.T) {
	parent := Bind(context.Background(), map[string]any{"a": 1})
	child := Bind(parent, map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"a": 1}, Snapshot(parent))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, Snapshot(child))
}

func TestUnbind_Tombstones(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"a": 1, "b": 2})
	ctx = Unbind(ctx, "a")

	snap := Snapshot(ctx)
	_, present := snap["a"]
	assert.False(t, present, "tombstoned key must not appear in snapshot")
	assert.Equal(t, 2, snap["b"])
}

func TestUnbind_NotResurrectedByReset(t *testing.T) {
	// Outer scope binds a; inner scope rebinds then unbinds it. Resetting the
	// inner tokens must restore the outer value, but an unbind performed
	// outside any token scope stays absent.
	ctx := Bind(context.Background(), map[string]any{"a": "outer"})

	inner, tokens := BatchBind(ctx, map[string]any{"a": "inner"})
	inner = Unbind(inner, "a")
	assert.NotContains(t, Snapshot(inner), "a")

	restored := Reset(inner, tokens)
	assert.Equal(t, "outer", Snapshot(restored)["a"])
}

func TestBatchBind_TokensRestoreAbsent(t *testing.T) {
	ctx, tokens := BatchBind(context.Background(), map[string]any{"fresh": true})
	require.Len(t, tokens, 1)
	assert.Equal(t, "fresh", tokens[0].Key())

	restored := Reset(ctx, tokens)
	assert.NotContains(t, Snapshot(restored), "fresh")
}

func TestReset_LIFOPerKey(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"k": "v0"})

	ctx1, t1 := BatchBind(ctx, map[string]any{"k": "v1"})
	ctx2, t2 := BatchBind(ctx1, map[string]any{"k": "v2"})
	assert.Equal(t, "v2", Snapshot(ctx2)["k"])

	// Restore in strict last-in-first-out order.
	back1 := Reset(ctx2, t2)
	assert.Equal(t, "v1", Snapshot(back1)["k"])

	back0 := Reset(back1, t1)
	assert.Equal(t, "v0", Snapshot(back0)["k"])
}

func TestReset_MultipleTokensSingleCall(t *testing.T) {
	ctx, tokens := BatchBind(context.Background(), map[string]any{"a": 1, "b": 2, "c": 3})
	ctx, more := BatchBind(ctx, map[string]any{"a": 10})

	ctx = Reset(ctx, more)
	ctx = Reset(ctx, tokens)
	assert.Empty(t, Snapshot(ctx))
}

func TestClearAll_TombstonesEverything(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"a": 1, "b": 2})
	ctx = ClearAll(ctx)
	assert.Empty(t, Snapshot(ctx))
}

func TestMerge_ExplicitWins(t *testing.T) {
	tests := []struct {
		name     string
		explicit map[string]any
		ambient  map[string]any
		want     map[string]any
	}{
		{
			name:     "collision resolved in favor of explicit",
			explicit: map[string]any{"a": "explicit"},
			ambient:  map[string]any{"a": "ambient", "b": 2},
			want:     map[string]any{"a": "explicit", "b": 2},
		},
		{
			name:     "disjoint keys pass through",
			explicit: map[string]any{"x": 1},
			ambient:  map[string]any{"y": 2},
			want:     map[string]any{"x": 1, "y": 2},
		},
		{
			name:     "both empty",
			explicit: nil,
			ambient:  nil,
			want:     map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.explicit, tt.ambient))
		})
	}
}

func TestScoped_RestoresOnReturn(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"a": "outer"})
	before := Snapshot(ctx)

	err := Scoped(ctx, map[string]any{"a": "inner", "b": true}, func(inner context.Context) error {
		snap := Snapshot(inner)
		assert.Equal(t, "inner", snap["a"])
		assert.Equal(t, true, snap["b"])
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, before, Snapshot(ctx))
}

func TestScoped_RestoresOnError(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"a": "outer"})
	before := Snapshot(ctx)

	wantErr := errors.New("body failed")
	err := Scoped(ctx, map[string]any{"a": "inner"}, func(context.Context) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr, "scoped must not suppress the body's error")
	assert.Equal(t, before, Snapshot(ctx))
}

func TestScoped_RestoresOnPanic(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"a": "outer"})
	before := Snapshot(ctx)

	assert.Panics(t, func() {
		_ = Scoped(ctx, map[string]any{"a": "inner"}, func(context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, before, Snapshot(ctx))
}

func TestIsolation_ConcurrentExecutions(t *testing.T) {
	// An entry bound while handling one logical request must never be visible
	// to a concurrently handled request, even on a shared worker pool.
	base := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			ctx := Bind(base, map[string]any{"request_id": n})
			snap := Snapshot(ctx)
			assert.Equal(t, n, snap["request_id"])
			assert.Len(t, snap, 1)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, Snapshot(base))
}

func TestSnapshot_ReturnedMapIsDetached(t *testing.T) {
	ctx := Bind(context.Background(), map[string]any{"a": 1})
	snap := Snapshot(ctx)
	snap["a"] = 99
	assert.Equal(t, 1, Snapshot(ctx)["a"])
}
