package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/query"
)

// TimeoutOption is the execution option key bounding a single Execute call.
// Its value must be a time.Duration.
const TimeoutOption = "timeout"

// Session holds one pinned DB connection and tracks its transaction depth.
// Depth 1 is a real transaction; deeper levels are savepoints.
type Session struct {
	id      string
	dialect Dialect

	mu     sync.Mutex
	conn   *sql.Conn
	tx     *sql.Tx
	depth  int
	closed bool
}

var _ txctx.Session = (*Session)(nil)

// NewSession pins a connection from db.
func NewSession(ctx context.Context, db *sql.DB, dialect Dialect) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{id: uuid.NewString(), dialect: dialect, conn: conn}, nil
}

// Maker returns a SessionMaker that pins a new connection per session.
func Maker(db *sql.DB, dialect Dialect) txctx.SessionMaker {
	return func(ctx context.Context) (txctx.Session, error) {
		return NewSession(ctx, db, dialect)
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

func (s *Session) InTransaction() bool { return s.Depth() > 0 }

func (s *Session) InNestedTransaction() bool { return s.Depth() > 1 }

func savepoint(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}

// Begin starts a transaction, or a savepoint when one is already running.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txctx.ErrSessionClosed
	}
	if s.depth == 0 {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
		s.depth = 1
		return nil
	}
	next := s.depth + 1
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+savepoint(next)); err != nil {
		return fmt.Errorf("create savepoint %s: %w", savepoint(next), err)
	}
	s.depth = next
	return nil
}

// Commit commits the innermost level. For a savepoint that only releases it;
// its writes become durable with the outer commit. Outside a transaction it
// is a no-op.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txctx.ErrSessionClosed
	}
	switch {
	case s.depth == 0:
		return nil
	case s.depth == 1:
		err := s.tx.Commit()
		s.tx = nil
		s.depth = 0
		if err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint(s.depth)); err != nil {
		return fmt.Errorf("release savepoint %s: %w", savepoint(s.depth), err)
	}
	s.depth--
	return nil
}

// Rollback rolls back the innermost level, leaving outer levels usable.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txctx.ErrSessionClosed
	}
	return s.rollbackLocked(ctx)
}

func (s *Session) rollbackLocked(ctx context.Context) error {
	switch {
	case s.depth == 0:
		return nil
	case s.depth == 1:
		err := s.tx.Rollback()
		s.tx = nil
		s.depth = 0
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fmt.Errorf("rollback transaction: %w", err)
		}
		return nil
	}
	// depth only drops once the savepoint is gone, so a failed rollback can
	// be retried at the same level.
	name := savepoint(s.depth)
	if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return fmt.Errorf("rollback to savepoint %s: %w", name, err)
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	s.depth--
	return nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execute runs q on the connection, inside the transaction when one is open.
// args.Params are appended to the query's own arguments. Driver errors are
// returned as is.
func (s *Session) Execute(ctx context.Context, q query.Query, args txctx.ExecArgs) (*txctx.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, txctx.ErrSessionClosed
	}

	stmt, qargs := q.Build()
	qargs = append(qargs, args.Params...)
	if s.dialect == DialectPostgres {
		stmt = query.Dollar(stmt)
	}
	if d, ok := args.ExecutionOptions[TimeoutOption].(time.Duration); ok && d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var ex executor = s.conn
	if s.tx != nil {
		ex = s.tx
	}

	if !q.ReturnsRows() {
		res, err := ex.ExecContext(ctx, stmt, qargs...)
		if err != nil {
			return nil, err
		}
		out := &txctx.Result{}
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
		return out, nil
	}

	rows, err := ex.QueryContext(ctx, stmt, qargs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) (*txctx.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	out := &txctx.Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	out.RowsAffected = int64(len(out.Rows))
	return out, nil
}

// Close rolls back any open transaction and returns the connection to the pool.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txctx.ErrSessionClosed
	}
	s.closed = true

	var rbErr error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			rbErr = fmt.Errorf("rollback transaction: %w", err)
		}
		s.tx = nil
		s.depth = 0
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return rbErr
}
