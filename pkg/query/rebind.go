package query

import (
	"strconv"
	"strings"
)

// Dollar rewrites "?" placeholders to PostgreSQL's $1, $2, ... form.
// Question marks are left alone inside single-quoted literals, double-quoted
// identifiers, -- and /* */ comments and dollar-quoted bodies ($$...$$ or
// $tag$...$tag$). Every other "?" is a placeholder, including the jsonb
// ? ?| ?& operators; write those as jsonb_exists, jsonb_exists_any and
// jsonb_exists_all instead. Nested block comments are not tracked.
func Dollar(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i++
			continue
		}
		end := skip(sql, i)
		b.WriteString(sql[i:end])
		i = end
	}
	return b.String()
}

// skip returns where the literal, identifier, comment or dollar-quoted body
// starting at i ends, or i+1 when none starts there. Unterminated regions run
// to the end of sql.
func skip(sql string, i int) int {
	rest := sql[i:]
	switch {
	case rest[0] == '\'' || rest[0] == '"':
		if j := strings.IndexByte(rest[1:], rest[0]); j >= 0 {
			return i + j + 2
		}
		return len(sql)
	case strings.HasPrefix(rest, "--"):
		if j := strings.IndexByte(rest, '\n'); j >= 0 {
			return i + j + 1
		}
		return len(sql)
	case strings.HasPrefix(rest, "/*"):
		if j := strings.Index(rest[2:], "*/"); j >= 0 {
			return i + j + 4
		}
		return len(sql)
	case rest[0] == '$':
		tag := dollarTag(rest)
		if tag == "" {
			break
		}
		if j := strings.Index(rest[len(tag):], tag); j >= 0 {
			return i + 2*len(tag) + j
		}
		return len(sql)
	}
	return i + 1
}

// dollarTag returns the opening $tag$ at the start of s, or "".
func dollarTag(s string) string {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1]
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && j > 1:
		default:
			return ""
		}
	}
	return ""
}
