package txctx

import (
	"context"

	"github.com/TechXTT/txctx/pkg/query"
)

// Session is a live, connection-bound unit of work. Begin on a session that
// is already in a transaction opens a nested level (savepoint); Commit and
// Rollback act on the innermost level only.
type Session interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Execute(ctx context.Context, q query.Query, args ExecArgs) (*Result, error)
	InTransaction() bool
	InNestedTransaction() bool
	// Close releases the session. An open transaction is rolled back.
	Close(ctx context.Context) error
}

// SessionMaker produces a new Session.
type SessionMaker func(ctx context.Context) (Session, error)

// ExecArgs is forwarded untouched from Execute to Session.Execute.
type ExecArgs struct {
	Params           []any
	ExecutionOptions map[string]any
	BindArguments    map[string]any
}

// depthReporter is implemented by sessions that expose their transaction depth.
type depthReporter interface {
	Depth() int
}

// identified is implemented by sessions with a stable id for logs and spans.
type identified interface {
	ID() string
}

func sessionDepth(s Session, fallback int) int {
	if d, ok := s.(depthReporter); ok {
		return d.Depth()
	}
	return fallback
}

func sessionID(s Session) string {
	if i, ok := s.(identified); ok {
		return i.ID()
	}
	return ""
}
