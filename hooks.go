package txctx

import "context"

// Hooks defines lifecycle callbacks for scopes. Errors returned by hooks are
// logged and do not change the outcome of the scope.
type Hooks interface {
	AfterBegin(ctx context.Context, s Session, nested bool) error
	AfterCommit(ctx context.Context, s Session, nested bool) error
	AfterRollback(ctx context.Context, s Session, nested bool) error
	AfterClose(ctx context.Context, s Session) error
}

// NopHooks implements Hooks with no-ops; embed it to override a subset.
type NopHooks struct{}

func (NopHooks) AfterBegin(context.Context, Session, bool) error    { return nil }
func (NopHooks) AfterCommit(context.Context, Session, bool) error   { return nil }
func (NopHooks) AfterRollback(context.Context, Session, bool) error { return nil }
func (NopHooks) AfterClose(context.Context, Session) error          { return nil }

func (d *DB) runHook(ctx context.Context, name string, s Session, call func(Hooks) error) {
	if d.hooks == nil {
		return
	}
	if err := call(d.hooks); err != nil {
		d.logger.WarnContext(ctx, "scope hook failed", "hook", name, "session_id", sessionID(s), "error", err)
	}
}
