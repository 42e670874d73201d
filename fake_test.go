package txctx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/TechXTT/txctx/pkg/query"
)

// fakeEngine is a tiny single-table store. Writes made inside a transaction
// stay private to their session until the top-level commit.
type fakeEngine struct {
	mu        sync.Mutex
	committed []string
	sessions  []*fakeSession
	commitErr error
	// rollbackFailsAt makes Rollback fail at that depth and keep the level.
	rollbackFailsAt int
}

func (e *fakeEngine) maker() SessionMaker {
	return func(ctx context.Context) (Session, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		s := &fakeSession{engine: e, id: fmt.Sprintf("s%d", len(e.sessions)+1)}
		e.sessions = append(e.sessions, s)
		return s, nil
	}
}

func (e *fakeEngine) rows() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := slices.Clone(e.committed)
	slices.Sort(out)
	return out
}

func (e *fakeEngine) made() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

type fakeSession struct {
	engine *fakeEngine
	id     string

	mu       sync.Mutex
	levels   [][]string
	closed   bool
	calls    []string
	lastArgs ExecArgs
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func (s *fakeSession) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.levels)
}

func (s *fakeSession) InTransaction() bool       { return s.Depth() > 0 }
func (s *fakeSession) InNestedTransaction() bool { return s.Depth() > 1 }

func (s *fakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.levels = append(s.levels, nil)
	s.record(fmt.Sprintf("begin:%d", len(s.levels)))
	return nil
}

func (s *fakeSession) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	depth := len(s.levels)
	if depth == 0 {
		return nil
	}
	if depth == 1 && s.engine.commitErr != nil {
		return s.engine.commitErr
	}
	s.record(fmt.Sprintf("commit:%d", depth))
	top := s.levels[depth-1]
	s.levels = s.levels[:depth-1]
	if depth > 1 {
		s.levels[depth-2] = append(s.levels[depth-2], top...)
		return nil
	}
	s.engine.mu.Lock()
	s.engine.committed = append(s.engine.committed, top...)
	s.engine.mu.Unlock()
	return nil
}

func (s *fakeSession) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	depth := len(s.levels)
	if depth == 0 {
		return nil
	}
	if depth == s.engine.rollbackFailsAt {
		s.record(fmt.Sprintf("rollback:%d:failed", depth))
		return errEngine
	}
	s.record(fmt.Sprintf("rollback:%d", depth))
	s.levels = s.levels[:depth-1]
	return nil
}

func (s *fakeSession) Execute(ctx context.Context, q query.Query, args ExecArgs) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.lastArgs = args
	sql, qargs := q.Build()
	s.record("execute:" + q.Kind().String())

	switch q.Kind() {
	case query.KindInsert:
		value, _ := qargs[0].(string)
		if value == "boom" {
			return nil, errEngine
		}
		if n := len(s.levels); n > 0 {
			s.levels[n-1] = append(s.levels[n-1], value)
		} else {
			s.engine.mu.Lock()
			s.engine.committed = append(s.engine.committed, value)
			s.engine.mu.Unlock()
		}
		return &Result{RowsAffected: 1}, nil
	case query.KindSelect, query.KindExists:
		visible := s.visibleLocked()
		if q.Kind() == query.KindExists {
			return &Result{Columns: []string{"exists"}, Rows: [][]any{{int64(len(visible))}}}, nil
		}
		if strings.Contains(sql, "COUNT(*)") {
			return &Result{Columns: []string{"count"}, Rows: [][]any{{int64(len(visible))}}}, nil
		}
		res := &Result{Columns: []string{"value"}}
		for _, v := range visible {
			res.Rows = append(res.Rows, []any{v})
		}
		return res, nil
	default:
		return &Result{}, nil
	}
}

func (s *fakeSession) visibleLocked() []string {
	s.engine.mu.Lock()
	out := slices.Clone(s.engine.committed)
	s.engine.mu.Unlock()
	for _, level := range s.levels {
		out = append(out, level...)
	}
	slices.Sort(out)
	return out
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.record("close")
	s.levels = nil
	s.closed = true
	return nil
}

var errEngine = errors.New("engine failure")

func insert(value string) query.Query {
	return query.InsertInto("example").Columns("value").Values(value)
}

func values() query.SelectQuery {
	return query.Select("example", "value")
}
