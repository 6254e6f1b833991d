package db

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/tordrt/schemacache/internal/raw"
)

// parseDefault turns a PostgreSQL or SQLite column default into a Go value:
// quoted literals become strings, numbers int64 or float64, TRUE/FALSE bool and
// NULL nil. Anything else is kept as a raw.Expression.
func parseDefault(def *string) any {
	if def == nil {
		return nil
	}

	v := strings.TrimSpace(*def)
	if v == "" {
		return nil
	}
	if head, target, ok := literalBeforeCast(v); ok {
		v = head
		// negative numbers come back quoted, as in '-1'::integer
		if isQuoted(v) && numericCasts[target] {
			if n, ok := parseNumber(unquote(v)); ok {
				return n
			}
		}
	}
	v = trimParens(v)

	switch {
	case strings.EqualFold(v, "null"):
		return nil
	case strings.EqualFold(v, "true"):
		return true
	case strings.EqualFold(v, "false"):
		return false
	case isQuoted(v):
		return unquote(v)
	}
	if n, ok := parseNumber(v); ok {
		return n
	}
	return raw.Expression(strings.TrimSpace(*def))
}

// parseMySQLDefault interprets information_schema.columns.column_default, which
// MySQL reports unquoted. Expression defaults are flagged in the extra column.
func parseMySQLDefault(def sql.NullString, dataType, extra string) any {
	if !def.Valid {
		return nil
	}
	v := def.String

	if strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED") {
		return raw.Expression(v)
	}
	if strings.HasPrefix(strings.ToUpper(v), "CURRENT_TIMESTAMP") {
		return raw.Expression(v)
	}
	// MariaDB quotes string defaults
	if isQuoted(v) {
		return unquote(v)
	}

	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "decimal", "numeric",
		"float", "double", "real", "bit", "year":
		if n, ok := parseNumber(v); ok {
			return n
		}
		if strings.EqualFold(v, "null") {
			return nil
		}
		return raw.Expression(v)
	default:
		return v
	}
}

// numericCasts are the cast targets whose quoted literals are numbers
var numericCasts = map[string]bool{
	"smallint": true, "integer": true, "bigint": true,
	"numeric": true, "real": true, "double precision": true,
}

// literalBeforeCast strips a trailing ::type cast when what it casts is a literal,
// e.g. 'active'::character varying -> 'active', and returns the cast target.
func literalBeforeCast(v string) (string, string, bool) {
	cast := -1
	walkSQL(v, func(i, _ int) bool {
		if strings.HasPrefix(v[i:], "::") {
			cast = i
			return false
		}
		return true
	})
	if cast < 0 {
		return v, "", false
	}

	head := trimParens(strings.TrimSpace(v[:cast]))
	target := castTarget(v[cast+len("::"):])
	if isQuoted(head) || strings.EqualFold(head, "null") {
		return head, target, true
	}
	if _, ok := parseNumber(head); ok {
		return head, target, true
	}
	return v, "", false
}

// castTarget drops modifiers from a cast type, e.g. numeric(10,2) -> numeric
func castTarget(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func parseNumber(v string) (any, bool) {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f, true
	}
	return nil, false
}

// trimParens removes parentheses that wrap the whole of v
func trimParens(v string) string {
	for len(v) >= 2 && v[0] == '(' && closingParen(v, 0) == len(v)-1 {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

func isQuoted(v string) bool {
	if len(v) < 2 || v[0] != '\'' || v[len(v)-1] != '\'' {
		return false
	}
	// the literal must not close early, as in 'a' || 'b'
	inner := v[1 : len(v)-1]
	return !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'")
}

func unquote(v string) string {
	return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
}
