package dialect

import (
	"regexp"
	"strings"
)

var castSuffix = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_ ]*(\(\d+(,\s*\d+)?\))?(\[\])?$`)

// unwrapDefault turns a stored default expression back into the value a
// caller would have supplied: ('18') and ((18)) become 18, N'x' becomes x.
// Expressions that are not plain literals, such as getdate(), are returned
// with only their outer parentheses removed.
func unwrapDefault(expr string) string {
	e := strings.TrimSpace(expr)
	for len(e) >= 2 && e[0] == '(' && outerParens(e) {
		e = strings.TrimSpace(e[1 : len(e)-1])
	}
	if len(e) >= 3 && (e[0] == 'N' || e[0] == 'n') && e[1] == '\'' {
		e = e[1:]
	}
	if len(e) >= 2 && e[0] == '\'' && e[len(e)-1] == '\'' && singleLiteral(e) {
		return strings.ReplaceAll(e[1:len(e)-1], "''", "'")
	}
	return e
}

// outerParens reports whether the '(' at the start of e closes at its end.
func outerParens(e string) bool {
	depth, quoted := 0, false
	for i := 0; i < len(e); i++ {
		switch c := e[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(e)-1 {
				return false
			}
		}
	}
	return depth == 0 && !quoted
}

// singleLiteral reports whether e, which starts and ends with a quote, is one
// string literal rather than e.g. 'a' + 'b'.
func singleLiteral(e string) bool {
	inner := e[1 : len(e)-1]
	return !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'")
}

// stripCast removes a trailing PostgreSQL type cast such as ::character varying.
func stripCast(expr string) string {
	return strings.TrimSpace(castSuffix.ReplaceAllString(strings.TrimSpace(expr), ""))
}
