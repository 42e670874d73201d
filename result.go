package txctx

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Result is the materialized outcome of Session.Execute.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// First returns the first row, or nil when there are none.
func (r *Result) First() []any {
	if r.Len() == 0 {
		return nil
	}
	return r.Rows[0]
}

// Scalar returns the first column of the first row, or nil.
func (r *Result) Scalar() any {
	row := r.First()
	if len(row) == 0 {
		return nil
	}
	return row[0]
}

// ScanAll appends every row to dest, which must be a pointer to a slice of
// structs. Columns bind to the field tagged `db:"name"`, otherwise to the
// field whose snake_case name matches. Unmatched columns are ignored.
func (r *Result) ScanAll(dest any) error {
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to a slice")
	}
	sliceVal := destVal.Elem()
	elemType := sliceVal.Type().Elem()
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to a slice of structs")
	}
	if r == nil {
		return nil
	}

	index := fieldIndex(elemType)
	for _, row := range r.Rows {
		elemVal := reflect.New(elemType).Elem()
		for i, col := range r.Columns {
			if i >= len(row) {
				break
			}
			fi, ok := index[strings.ToLower(col)]
			if !ok {
				continue
			}
			if err := assign(elemVal.Field(fi), row[i]); err != nil {
				return fmt.Errorf("scan column %s: %w", col, err)
			}
		}
		sliceVal.Set(reflect.Append(sliceVal, elemVal))
	}
	return nil
}

func fieldIndex(t reflect.Type) map[string]int {
	index := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("db")
		if name == "-" {
			continue
		}
		if name == "" {
			name = snakeCase(f.Name)
		}
		index[strings.ToLower(name)] = i
	}
	return index
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func assign(field reflect.Value, v any) error {
	if scanner, ok := field.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(v)
	}
	if v == nil {
		field.SetZero()
		return nil
	}
	if b, ok := v.([]byte); ok && field.Kind() == reflect.String {
		field.SetString(string(b))
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	switch {
	case isNumeric(rv.Kind()) && isNumeric(field.Kind()):
		field.Set(rv.Convert(field.Type()))
		return nil
	case field.Kind() == reflect.Bool && isNumeric(rv.Kind()):
		field.SetBool(!rv.IsZero())
		return nil
	case field.Kind() == reflect.String && rv.Kind() == reflect.String:
		field.SetString(rv.String())
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, field.Type())
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	}
	rv := reflect.ValueOf(v)
	if isNumeric(rv.Kind()) {
		return !rv.IsZero(), nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	rv := reflect.ValueOf(v)
	if isNumeric(rv.Kind()) {
		return rv.Convert(reflect.TypeOf(int64(0))).Int(), nil
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}
