// File: internal/stack/stack.go
package stack

import (
	"context"
	"sync/atomic"
)

// Flags describe how a pushed entry relates to the resource it carries.
type Flags struct {
	// Owned is set when the scope that pushed the entry created the resource
	// and is responsible for releasing it.
	Owned bool
	// Nested is set when the entry entered a savepoint inside an already
	// running transaction.
	Nested bool
	// Depth is the transaction depth the entry entered, zero for plain sessions.
	Depth int
}

// Handle is one pushed entry of a Stack.
type Handle struct {
	Flags
	released atomic.Bool
}

// Release marks the entry as exited. Lookups skip released entries, even
// through contexts that still reference them. Release reports whether this
// call did the release.
func (h *Handle) Release() bool {
	return h.released.CompareAndSwap(false, true)
}

// Released reports whether the entry has exited.
func (h *Handle) Released() bool {
	return h.released.Load()
}

type node[T any] struct {
	value  T
	handle *Handle
	next   *node[T]
}

type key struct{ id *byte }

// Stack is a resource stack kept in a context.Context. Nodes are immutable,
// so a context handed to another goroutine keeps the stack as it was at that
// moment and neither side observes the other's later pushes.
type Stack[T any] struct {
	key key
}

// New returns a stack with its own context key.
func New[T any]() *Stack[T] {
	return &Stack[T]{key: key{id: new(byte)}}
}

func (s *Stack[T]) head(ctx context.Context) *node[T] {
	n, _ := ctx.Value(s.key).(*node[T])
	return n
}

// Push returns a context whose stack has value on top.
func (s *Stack[T]) Push(ctx context.Context, value T, flags Flags) (context.Context, *Handle) {
	h := &Handle{Flags: flags}
	n := &node[T]{value: value, handle: h, next: s.head(ctx)}
	return context.WithValue(ctx, s.key, n), h
}

// Top returns the topmost live entry.
func (s *Stack[T]) Top(ctx context.Context) (T, *Handle, bool) {
	for n := s.head(ctx); n != nil; n = n.next {
		if !n.handle.Released() {
			return n.value, n.handle, true
		}
	}
	var zero T
	return zero, nil, false
}

// Len counts live entries.
func (s *Stack[T]) Len(ctx context.Context) int {
	count := 0
	for n := s.head(ctx); n != nil; n = n.next {
		if !n.handle.Released() {
			count++
		}
	}
	return count
}

// Values lists live entries from bottom to top.
func (s *Stack[T]) Values(ctx context.Context) []T {
	var out []T
	for n := s.head(ctx); n != nil; n = n.next {
		if !n.handle.Released() {
			out = append(out, n.value)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
