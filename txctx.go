// Package txctx gives code ambient access to the current database session
// or transaction through context.Context. Scopes push a session onto a stack
// carried by the context; goroutines started from a context see the stack as
// it was when they were started and never observe each other's pushes.
package txctx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/TechXTT/txctx/internal/stack"
)

const instrumentationName = "github.com/TechXTT/txctx"

// DB is the entry point for scoped sessions and transactions.
type DB struct {
	maker       SessionMaker
	stack       *stack.Stack[Session]
	autoContext bool
	autoForceTx bool
	logger      *slog.Logger
	tracer      trace.Tracer
	hooks       Hooks
}

// New returns a DB whose scopes acquire sessions from maker unless a scope
// supplies its own.
func New(maker SessionMaker, opts ...Option) *DB {
	d := &DB{
		maker:  maker,
		stack:  stack.New[Session](),
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetSession returns the current session or ErrNoSession.
func (d *DB) GetSession(ctx context.Context) (Session, error) {
	s, _, ok := d.stack.Top(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// LookupSession returns the current session, or nil when there is none.
func (d *DB) LookupSession(ctx context.Context) Session {
	s, _, _ := d.stack.Top(ctx)
	return s
}

// Depth reports how many scopes are active on ctx's branch.
func (d *DB) Depth(ctx context.Context) int {
	return d.stack.Len(ctx)
}

// Sessions lists the live sessions on ctx's branch, outermost first. A
// session reused by nested scopes appears once per scope.
func (d *DB) Sessions(ctx context.Context) []Session {
	return d.stack.Values(ctx)
}
