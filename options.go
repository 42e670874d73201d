package txctx

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a DB.
type Option func(*DB)

// WithAutoContextOnExecute lets Execute open a scope of its own when no
// session is current.
func WithAutoContextOnExecute(enabled bool) Option {
	return func(d *DB) { d.autoContext = enabled }
}

// WithAutoContextForceTransaction makes auto-opened scopes always transactional.
func WithAutoContextForceTransaction(enabled bool) Option {
	return func(d *DB) { d.autoForceTx = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *DB) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithHooks registers scope lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(d *DB) { d.hooks = h }
}

// ScopeOption configures a single Session or Transaction call.
type ScopeOption func(*scopeOptions)

type scopeOptions struct {
	maker       SessionMaker
	reuse       bool
	allowNested bool
}

// WithSessionMaker overrides the default SessionMaker for one scope.
func WithSessionMaker(m SessionMaker) ScopeOption {
	return func(o *scopeOptions) {
		if m != nil {
			o.maker = m
		}
	}
}

// ReuseIfExists lets Session join the current session instead of failing.
func ReuseIfExists(reuse bool) ScopeOption {
	return func(o *scopeOptions) { o.reuse = reuse }
}

// AllowNestedTransactions controls whether Transaction may open a savepoint
// inside a running transaction. Defaults to true.
func AllowNestedTransactions(allow bool) ScopeOption {
	return func(o *scopeOptions) { o.allowNested = allow }
}

func (d *DB) scopeOptions(opts []ScopeOption) scopeOptions {
	o := scopeOptions{maker: d.maker, allowNested: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ExecOption configures a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	args             ExecArgs
	forceTransaction bool
}

// WithParams appends positional parameters after the query's own arguments.
func WithParams(params ...any) ExecOption {
	return func(o *execOptions) { o.args.Params = append(o.args.Params, params...) }
}

func WithExecutionOptions(opts map[string]any) ExecOption {
	return func(o *execOptions) { o.args.ExecutionOptions = opts }
}

func WithBindArguments(args map[string]any) ExecOption {
	return func(o *execOptions) { o.args.BindArguments = args }
}

// ForceTransaction makes an auto-opened scope transactional. It has no
// effect when a session is already current.
func ForceTransaction() ExecOption {
	return func(o *execOptions) { o.forceTransaction = true }
}

func newExecOptions(opts []ExecOption) execOptions {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
