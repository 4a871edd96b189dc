package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

var (
	identPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{Nd}_$#@]{0,127}$`)
	typePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]{0,63}$`)
	sizePattern  = regexp.MustCompile(`^(?i:max|\d+(,\d+)?)$`)
)

// CleanIdent NFC-normalizes name and checks it against the allowed
// identifier character set: letters of any script, digits, _ $ # @. A name
// typed with combining marks matches its precomposed spelling.
func CleanIdent(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	if !identPattern.MatchString(n) {
		return "", fmt.Errorf("%w: identifier %q is not allowed", schema.ErrInvalid, name)
	}
	return n, nil
}

func quoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// renderType validates a type name and size and joins them.
func renderType(dataType string, size schema.Size) (string, error) {
	t := strings.ToUpper(strings.Join(strings.Fields(dataType), " "))
	if !typePattern.MatchString(t) {
		return "", fmt.Errorf("%w: type %q is not allowed", schema.ErrInvalid, dataType)
	}
	s := strings.ToUpper(strings.ReplaceAll(string(size), " ", ""))
	if s == "" {
		return t, nil
	}
	if !sizePattern.MatchString(s) {
		return "", fmt.Errorf("%w: size %q is not allowed", schema.ErrInvalid, size)
	}
	return t + "(" + s + ")", nil
}

func nullClause(nullable schema.Flag) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// quoteAll quotes several identifiers with q, stopping at the first error.
func quoteAll(q func(string) (string, error), names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		quoted, err := q(n)
		if err != nil {
			return nil, err
		}
		out[i] = quoted
	}
	return out, nil
}
