package txctx

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TechXTT/txctx/internal/stack"
)

const (
	spanSession     = "txctx.session"
	spanTransaction = "txctx.transaction"
)

// ScopeFunc is the body of a scope. ctx carries s as the current session;
// pass it on to anything that should run inside the scope.
type ScopeFunc func(ctx context.Context, s Session) error

// Session runs fn with a current session. If a session is already current
// it fails with ErrSessionAlreadyActive, unless ReuseIfExists(true) was given
// and that session is outside a transaction, in which case fn joins it.
// A session created here is closed when fn returns; nothing is committed.
func (d *DB) Session(ctx context.Context, fn ScopeFunc, opts ...ScopeOption) error {
	o := d.scopeOptions(opts)
	if cur, _, ok := d.stack.Top(ctx); ok {
		if !o.reuse {
			return ErrSessionAlreadyActive
		}
		if !cur.InTransaction() {
			return d.traced(ctx, spanSession, false, func(ctx context.Context, _ trace.Span) error {
				return d.enter(ctx, cur, stack.Flags{}, fn)
			})
		}
	}
	return d.newSession(ctx, o.maker, fn)
}

// NewSession runs fn with a freshly acquired session, even when one is
// already current. The outer session stays on the stack underneath.
func (d *DB) NewSession(ctx context.Context, fn ScopeFunc, opts ...ScopeOption) error {
	o := d.scopeOptions(opts)
	return d.newSession(ctx, o.maker, fn)
}

func (d *DB) newSession(ctx context.Context, maker SessionMaker, fn ScopeFunc) error {
	return d.traced(ctx, spanSession, true, func(ctx context.Context, _ trace.Span) error {
		return d.owned(ctx, maker, func(ctx context.Context, s Session) error {
			return d.enter(ctx, s, stack.Flags{Owned: true}, fn)
		})
	})
}

// Transaction runs fn inside a transaction. With no current session one is
// acquired and closed afterwards. On a current session outside a transaction
// a top-level transaction is begun; inside one, a nested level (savepoint)
// is opened unless AllowNestedTransactions(false), which fails with
// ErrTransactionAlreadyActive. The level opened here is committed when fn
// returns nil and rolled back otherwise, including on panic and context
// cancellation. fn's error is returned unchanged.
func (d *DB) Transaction(ctx context.Context, fn ScopeFunc, opts ...ScopeOption) error {
	o := d.scopeOptions(opts)
	cur, _, ok := d.stack.Top(ctx)
	if !ok {
		return d.newTransaction(ctx, o.maker, fn)
	}
	if cur.InTransaction() && !o.allowNested {
		return ErrTransactionAlreadyActive
	}
	return d.traced(ctx, spanTransaction, false, func(ctx context.Context, span trace.Span) error {
		return d.transact(ctx, span, cur, stack.Flags{}, fn)
	})
}

// NewTransaction runs fn in a top-level transaction on a freshly acquired
// session, independent of whatever is current.
func (d *DB) NewTransaction(ctx context.Context, fn ScopeFunc, opts ...ScopeOption) error {
	o := d.scopeOptions(opts)
	return d.newTransaction(ctx, o.maker, fn)
}

func (d *DB) newTransaction(ctx context.Context, maker SessionMaker, fn ScopeFunc) error {
	return d.traced(ctx, spanTransaction, true, func(ctx context.Context, span trace.Span) error {
		return d.owned(ctx, maker, func(ctx context.Context, s Session) error {
			return d.transact(ctx, span, s, stack.Flags{Owned: true}, fn)
		})
	})
}

func (d *DB) traced(ctx context.Context, name string, owned bool, body func(context.Context, trace.Span) error) (err error) {
	ctx, span := d.tracer.Start(ctx, name, trace.WithAttributes(attribute.Bool("txctx.owned", owned)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return body(ctx, span)
}

// owned acquires a session, runs body and closes the session on every exit path.
func (d *DB) owned(ctx context.Context, maker SessionMaker, body func(context.Context, Session) error) (err error) {
	if maker == nil {
		return &ScopeError{Op: OpAcquire, Err: errors.New("no session maker configured")}
	}
	s, err := maker(ctx)
	if err != nil {
		return &ScopeError{Op: OpAcquire, Err: err}
	}
	d.logger.DebugContext(ctx, "session acquired", "session_id", sessionID(s))

	defer func() {
		closeCtx := context.WithoutCancel(ctx)
		closeErr := s.Close(closeCtx)
		d.runHook(closeCtx, "after_close", s, func(h Hooks) error { return h.AfterClose(closeCtx, s) })
		if closeErr == nil {
			d.logger.DebugContext(closeCtx, "session closed", "session_id", sessionID(s))
			return
		}
		d.logger.WarnContext(closeCtx, "close session", "session_id", sessionID(s), "error", closeErr)
		if err == nil {
			err = &ScopeError{Op: OpClose, Err: closeErr}
		}
	}()
	return body(ctx, s)
}

func (d *DB) enter(ctx context.Context, s Session, flags stack.Flags, fn ScopeFunc) error {
	ctx, h := d.stack.Push(ctx, s, flags)
	defer h.Release()
	return fn(ctx, s)
}

func (d *DB) transact(ctx context.Context, span trace.Span, s Session, flags stack.Flags, fn ScopeFunc) error {
	nested := s.InTransaction()
	if err := s.Begin(ctx); err != nil {
		return &ScopeError{Op: OpBegin, Err: err}
	}
	fallback := 1
	if nested {
		fallback = 2
	}
	flags.Nested = nested
	flags.Depth = sessionDepth(s, fallback)
	span.SetAttributes(attribute.Bool("txctx.nested", nested), attribute.Int("txctx.depth", flags.Depth))
	d.logger.DebugContext(ctx, "transaction begun", "session_id", sessionID(s), "nested", nested, "depth", flags.Depth)
	d.runHook(ctx, "after_begin", s, func(h Hooks) error { return h.AfterBegin(ctx, s, nested) })

	ctx, h := d.stack.Push(ctx, s, flags)
	finished := false
	defer func() {
		h.Release()
		if !finished {
			d.rollback(ctx, s, flags)
		}
	}()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.unwind(ctx, s, flags.Depth)
	switch cur := sessionDepth(s, flags.Depth); {
	case cur < flags.Depth:
		finished = true
		return &ScopeError{Op: OpCommit, Err: fmt.Errorf("transaction level %d already ended", flags.Depth)}
	case cur > flags.Depth:
		return &ScopeError{Op: OpCommit, Err: fmt.Errorf("transaction level %d still open above level %d", cur, flags.Depth)}
	}
	if err := s.Commit(ctx); err != nil {
		return &ScopeError{Op: OpCommit, Err: err}
	}
	finished = true
	d.logger.DebugContext(ctx, "transaction committed", "session_id", sessionID(s), "nested", nested, "depth", flags.Depth)
	d.runHook(ctx, "after_commit", s, func(h Hooks) error { return h.AfterCommit(ctx, s, nested) })
	return nil
}

func (d *DB) rollback(ctx context.Context, s Session, flags stack.Flags) {
	ctx = context.WithoutCancel(ctx)
	d.unwind(ctx, s, flags.Depth)
	switch cur := sessionDepth(s, flags.Depth); {
	case cur < flags.Depth:
		return
	case cur > flags.Depth:
		// Rolling back now would hit a level this scope never opened.
		d.logger.WarnContext(ctx, "transaction level left open", "session_id", sessionID(s), "depth", cur, "scope_depth", flags.Depth)
		return
	}
	if err := s.Rollback(ctx); err != nil {
		d.logger.WarnContext(ctx, "rollback transaction", "session_id", sessionID(s), "depth", flags.Depth, "error", err)
		return
	}
	d.logger.DebugContext(ctx, "transaction rolled back", "session_id", sessionID(s), "nested", flags.Nested, "depth", flags.Depth)
	d.runHook(ctx, "after_rollback", s, func(h Hooks) error { return h.AfterRollback(ctx, s, flags.Nested) })
}

// unwind rolls back levels the scope body opened and left behind, so that
// commit or rollback hits exactly the level the scope entered.
func (d *DB) unwind(ctx context.Context, s Session, depth int) {
	if _, ok := s.(depthReporter); !ok {
		return
	}
	for cur := sessionDepth(s, depth); cur > depth; {
		d.logger.WarnContext(ctx, "rolling back unfinished transaction level", "session_id", sessionID(s), "depth", cur)
		if err := s.Rollback(context.WithoutCancel(ctx)); err != nil {
			d.logger.WarnContext(ctx, "rollback transaction", "session_id", sessionID(s), "depth", cur, "error", err)
			return
		}
		next := sessionDepth(s, depth)
		if next >= cur {
			return
		}
		cur = next
	}
}
