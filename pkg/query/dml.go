package query

import (
	"slices"
	"strings"
)

type assignment struct {
	col string
	val any
}

// InsertQuery builds INSERT statements.
type InsertQuery struct {
	table     string
	cols      []string
	rows      [][]any
	returning []string
}

// InsertInto starts an INSERT into table.
func InsertInto(table string) InsertQuery {
	return InsertQuery{table: table}
}

func (q InsertQuery) Kind() Kind        { return KindInsert }
func (q InsertQuery) ReturnsRows() bool { return len(q.returning) > 0 }

func (q InsertQuery) Columns(cols ...string) InsertQuery {
	q.cols = slices.Clone(cols)
	return q
}

// Values appends one row. The number of values must match Columns.
func (q InsertQuery) Values(vals ...any) InsertQuery {
	q.rows = append(slices.Clip(q.rows), slices.Clone(vals))
	return q
}

func (q InsertQuery) Returning(cols ...string) InsertQuery {
	q.returning = slices.Clone(cols)
	return q
}

func (q InsertQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(q.table)
	if len(q.cols) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(q.cols, ", "))
		b.WriteString(")")
	}
	var args []any
	if len(q.rows) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" VALUES ")
		groups := make([]string, len(q.rows))
		for i, row := range q.rows {
			groups[i] = "(" + placeholders(len(row)) + ")"
			args = append(args, row...)
		}
		b.WriteString(strings.Join(groups, ", "))
	}
	writeReturning(&b, q.returning)
	return b.String(), args
}

// UpdateQuery builds UPDATE statements.
type UpdateQuery struct {
	table     string
	sets      []assignment
	whereOps  []string
	args      []any
	returning []string
}

// Update starts an UPDATE of table.
func Update(table string) UpdateQuery {
	return UpdateQuery{table: table}
}

func (q UpdateQuery) Kind() Kind        { return KindUpdate }
func (q UpdateQuery) ReturnsRows() bool { return len(q.returning) > 0 }

func (q UpdateQuery) Set(col string, val any) UpdateQuery {
	q.sets = append(slices.Clip(q.sets), assignment{col: col, val: val})
	return q
}

func (q UpdateQuery) Where(cond string, vals ...any) UpdateQuery {
	q.whereOps = append(slices.Clip(q.whereOps), cond)
	q.args = append(slices.Clip(q.args), vals...)
	return q
}

func (q UpdateQuery) Returning(cols ...string) UpdateQuery {
	q.returning = slices.Clone(cols)
	return q
}

func (q UpdateQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(q.table)
	b.WriteString(" SET ")
	args := make([]any, 0, len(q.sets)+len(q.args))
	sets := make([]string, len(q.sets))
	for i, s := range q.sets {
		sets[i] = s.col + " = ?"
		args = append(args, s.val)
	}
	b.WriteString(strings.Join(sets, ", "))
	if len(q.whereOps) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.whereOps, " AND "))
		args = append(args, q.args...)
	}
	writeReturning(&b, q.returning)
	return b.String(), args
}

// DeleteQuery builds DELETE statements.
type DeleteQuery struct {
	table     string
	whereOps  []string
	args      []any
	returning []string
}

// DeleteFrom starts a DELETE from table.
func DeleteFrom(table string) DeleteQuery {
	return DeleteQuery{table: table}
}

func (q DeleteQuery) Kind() Kind        { return KindDelete }
func (q DeleteQuery) ReturnsRows() bool { return len(q.returning) > 0 }

func (q DeleteQuery) Where(cond string, vals ...any) DeleteQuery {
	q.whereOps = append(slices.Clip(q.whereOps), cond)
	q.args = append(slices.Clip(q.args), vals...)
	return q
}

func (q DeleteQuery) Returning(cols ...string) DeleteQuery {
	q.returning = slices.Clone(cols)
	return q
}

func (q DeleteQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(q.table)
	if len(q.whereOps) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.whereOps, " AND "))
	}
	writeReturning(&b, q.returning)
	return b.String(), slices.Clone(q.args)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func writeReturning(b *strings.Builder, cols []string) {
	if len(cols) == 0 {
		return
	}
	b.WriteString(" RETURNING ")
	b.WriteString(strings.Join(cols, ", "))
}
