// File: pkg/query/builder.go
package query

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the closed set of statement shapes a Query can take.
type Kind int

const (
	KindRaw Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindExists
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindExists:
		return "exists"
	default:
		return "raw"
	}
}

// Mutating reports whether statements of this kind write data.
func (k Kind) Mutating() bool {
	return k == KindInsert || k == KindUpdate || k == KindDelete
}

// Query is an immutable statement. Placeholders are always "?".
type Query interface {
	Kind() Kind
	Build() (string, []any)
	// ReturnsRows reports whether executing the statement yields a row set.
	ReturnsRows() bool
}

// SelectQuery is a fluent SELECT builder. Every method returns a modified copy.
type SelectQuery struct {
	table       string
	selectCols  []string
	whereOps    []string
	args        []any
	joinClauses []string
	orderBy     string
	limit       int
	offset      int
}

// Select starts a SELECT against table.
func Select(table string, cols ...string) SelectQuery {
	return SelectQuery{table: table, selectCols: slices.Clone(cols)}
}

func (q SelectQuery) Kind() Kind        { return KindSelect }
func (q SelectQuery) ReturnsRows() bool { return true }

// Table returns the FROM target.
func (q SelectQuery) Table() string { return q.table }

func (q SelectQuery) Columns(cols ...string) SelectQuery {
	q.selectCols = slices.Clone(cols)
	return q
}

func (q SelectQuery) Where(cond string, vals ...any) SelectQuery {
	q.whereOps = append(slices.Clip(q.whereOps), cond)
	q.args = append(slices.Clip(q.args), vals...)
	return q
}

// Join adds a JOIN clause (e.g. "JOIN other_table ON ...")
func (q SelectQuery) Join(clause string) SelectQuery {
	q.joinClauses = append(slices.Clip(q.joinClauses), clause)
	return q
}

// OrderBy sets the ORDER BY clause
func (q SelectQuery) OrderBy(order string) SelectQuery {
	q.orderBy = order
	return q
}

// Limit sets the LIMIT clause
func (q SelectQuery) Limit(n int) SelectQuery {
	q.limit = n
	return q
}

// Offset sets the OFFSET clause
func (q SelectQuery) Offset(n int) SelectQuery {
	q.offset = n
	return q
}

// Count returns the same query selecting COUNT(*) with ordering and paging dropped.
func (q SelectQuery) Count() SelectQuery {
	q.selectCols = []string{"COUNT(*)"}
	q.orderBy = ""
	q.limit = 0
	q.offset = 0
	return q
}

// Build assembles the SQL query string and returns it with args
func (q SelectQuery) Build() (string, []any) {
	parts := []string{"SELECT"}
	if len(q.selectCols) > 0 {
		parts = append(parts, strings.Join(q.selectCols, ", "))
	} else {
		parts = append(parts, "*")
	}
	parts = append(parts, "FROM", q.table)
	if len(q.joinClauses) > 0 {
		parts = append(parts, strings.Join(q.joinClauses, " "))
	}
	if len(q.whereOps) > 0 {
		parts = append(parts, "WHERE", strings.Join(q.whereOps, " AND "))
	}
	if q.orderBy != "" {
		parts = append(parts, "ORDER BY", q.orderBy)
	}
	if q.limit > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", q.limit))
	}
	if q.offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", q.offset))
	}
	return strings.Join(parts, " "), slices.Clone(q.args)
}

// ExistsQuery wraps a SELECT in SELECT EXISTS (...).
type ExistsQuery struct {
	inner SelectQuery
}

// Exists builds an existence check around sel.
func Exists(sel SelectQuery) ExistsQuery {
	return ExistsQuery{inner: sel}
}

func (q ExistsQuery) Kind() Kind        { return KindExists }
func (q ExistsQuery) ReturnsRows() bool { return true }

func (q ExistsQuery) Build() (string, []any) {
	inner, args := q.inner.Build()
	return "SELECT EXISTS (" + inner + ")", args
}

// RawQuery is a hand-written statement tagged with its kind.
type RawQuery struct {
	kind      Kind
	sql       string
	args      []any
	returning bool
}

// Raw wraps sql as a query of the given kind. Select and exists kinds return rows.
func Raw(kind Kind, sql string, args ...any) RawQuery {
	return RawQuery{
		kind:      kind,
		sql:       sql,
		args:      slices.Clone(args),
		returning: kind == KindSelect || kind == KindExists,
	}
}

func (q RawQuery) Kind() Kind        { return q.kind }
func (q RawQuery) ReturnsRows() bool { return q.returning }

// WithRows marks the statement as producing rows, e.g. DML with RETURNING.
func (q RawQuery) WithRows() RawQuery {
	q.returning = true
	return q
}

func (q RawQuery) Build() (string, []any) {
	return q.sql, slices.Clone(q.args)
}
