package txctx

import (
	"context"

	"github.com/TechXTT/txctx/pkg/query"
)

// Execute runs q on the current session. With no current session it fails
// with ErrNoSession, unless auto context is enabled: then a session is opened
// for this call alone, with a transaction when the query is mutating, when
// ForceTransaction is passed, or when auto context is configured to always
// force one. Params, execution options and bind arguments reach the session
// untouched.
func (d *DB) Execute(ctx context.Context, q query.Query, opts ...ExecOption) (*Result, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	o := newExecOptions(opts)
	if s, h, ok := d.stack.Top(ctx); ok {
		d.logger.DebugContext(ctx, "execute", "session_id", sessionID(s), "kind", q.Kind().String(), "owned", h.Owned, "depth", h.Depth)
		return s.Execute(ctx, q, o.args)
	}
	if !d.autoContext {
		return nil, ErrNoSession
	}

	var res *Result
	run := func(ctx context.Context, s Session) error {
		var err error
		res, err = s.Execute(ctx, q, o.args)
		return err
	}
	transactional := o.forceTransaction || d.autoForceTx || q.Kind().Mutating()
	d.logger.DebugContext(ctx, "auto context", "kind", q.Kind().String(), "transactional", transactional)

	err := d.Session(ctx, func(ctx context.Context, s Session) error {
		if transactional {
			return d.Transaction(ctx, run)
		}
		return run(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
