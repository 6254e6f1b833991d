package db

import (
	"strings"
)

// checksMentioning returns the clauses whose text contains column.
// Matching is textual, so a clause on "paid" also matches a column "id".
func checksMentioning(checks []string, column string) []string {
	var out []string
	for _, check := range checks {
		if strings.Contains(check, column) {
			out = append(out, check)
		}
	}
	return out
}

// sqliteCheckClauses extracts every CHECK (...) clause from a CREATE TABLE statement
func sqliteCheckClauses(createSQL string) []string {
	var starts []int
	walkSQL(createSQL, func(i, _ int) bool {
		if keywordAt(createSQL, i, "CHECK") {
			starts = append(starts, i)
		}
		return true
	})

	var clauses []string
	for _, start := range starts {
		open := start + len("CHECK")
		for open < len(createSQL) && isSpace(createSQL[open]) {
			open++
		}
		if open >= len(createSQL) || createSQL[open] != '(' {
			continue
		}
		closing := closingParen(createSQL, open)
		if closing < 0 {
			continue
		}
		clauses = append(clauses, "CHECK "+createSQL[open:closing+1])
	}
	return clauses
}

// partialWhere returns the predicate of a CREATE INDEX ... WHERE statement
func partialWhere(createIndexSQL string) string {
	where := -1
	walkSQL(createIndexSQL, func(i, depth int) bool {
		if depth == 0 && keywordAt(createIndexSQL, i, "WHERE") {
			where = i
			return false
		}
		return true
	})
	if where < 0 {
		return ""
	}
	predicate := strings.TrimSpace(createIndexSQL[where+len("WHERE"):])
	return strings.TrimSpace(strings.TrimSuffix(predicate, ";"))
}

// closingParen returns the index of the parenthesis matching the one at open
func closingParen(s string, open int) int {
	closing := -1
	walkSQL(s[open:], func(i, depth int) bool {
		if s[open+i] == ')' && depth == 0 {
			closing = open + i
			return false
		}
		return true
	})
	return closing
}

// walkSQL calls visit for each byte of s outside quoted literals and identifiers,
// passing the parenthesis depth after that byte. It stops when visit returns false.
func walkSQL(s string, visit func(i, depth int) bool) {
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		case '[':
			quote = ']'
			continue
		case '(':
			depth++
		case ')':
			depth--
		}
		if !visit(i, depth) {
			return
		}
	}
}

// keywordAt reports whether kw appears at s[i] as a whole word, ignoring case
func keywordAt(s string, i int, kw string) bool {
	end := i + len(kw)
	if end > len(s) || !strings.EqualFold(s[i:end], kw) {
		return false
	}
	if i > 0 && isIdentChar(s[i-1]) {
		return false
	}
	return end == len(s) || !isIdentChar(s[end])
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
