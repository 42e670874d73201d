package txctx

import (
	"context"

	"github.com/TechXTT/txctx/pkg/query"
)

// Deferred binds a query to whatever session is current when Exec is
// called. It holds no session of its own and may be executed many times.
type Deferred[R any] struct {
	db    *DB
	q     query.Query
	shape func(*Result) (R, error)
}

// Query returns the wrapped statement.
func (d Deferred[R]) Query() query.Query { return d.q }

// Exec runs the query through DB.Execute and shapes the result.
func (d Deferred[R]) Exec(ctx context.Context, opts ...ExecOption) (R, error) {
	res, err := d.db.Execute(ctx, d.q, opts...)
	if err != nil {
		var zero R
		return zero, err
	}
	return d.shape(res)
}

func rows(res *Result) (*Result, error) { return res, nil }

// Select defers a SELECT; the result carries the rows.
func (d *DB) Select(q query.SelectQuery) Deferred[*Result] {
	return Deferred[*Result]{db: d, q: q, shape: rows}
}

// Insert defers an INSERT; RowsAffected and any RETURNING rows are set.
func (d *DB) Insert(q query.InsertQuery) Deferred[*Result] {
	return Deferred[*Result]{db: d, q: q, shape: rows}
}

func (d *DB) Update(q query.UpdateQuery) Deferred[*Result] {
	return Deferred[*Result]{db: d, q: q, shape: rows}
}

func (d *DB) Delete(q query.DeleteQuery) Deferred[*Result] {
	return Deferred[*Result]{db: d, q: q, shape: rows}
}

// Exists defers SELECT EXISTS (q) and yields its boolean.
func (d *DB) Exists(q query.SelectQuery) Deferred[bool] {
	return Deferred[bool]{db: d, q: query.Exists(q), shape: func(res *Result) (bool, error) {
		return toBool(res.Scalar())
	}}
}

// Count defers SELECT COUNT(*) over q's filters and yields the count.
func (d *DB) Count(q query.SelectQuery) Deferred[int64] {
	return Deferred[int64]{db: d, q: q.Count(), shape: func(res *Result) (int64, error) {
		return toInt64(res.Scalar())
	}}
}
