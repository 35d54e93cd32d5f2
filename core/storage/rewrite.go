package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// Callers write SQL in one canonical dialect: positional `?` placeholders
// and the sqlite date helpers DATE(<col>, 'localtime') and
// DATE('now', 'localtime'). The adapter rewrites for the networked backend
// so backend syntax never bleeds upward.

var dateColRe = regexp.MustCompile(`DATE\(([a-zA-Z_][a-zA-Z0-9_.]*),\s*'localtime'\)`)

// rewriteDates normalises the date helpers for postgres using the
// configured time zone.
func rewriteDates(query, tz string) string {
	query = strings.ReplaceAll(query, "DATE('now', 'localtime')", "CURRENT_DATE")
	return dateColRe.ReplaceAllString(query, fmt.Sprintf("(${1} AT TIME ZONE '%s')::date", tz))
}

// rewritePlaceholders converts `?` to `$1, $2, ...` in order, skipping
// quoted string literals.
func rewritePlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			// A doubled quote inside a literal stays inside it.
			if inQuote && i+1 < len(query) && query[i+1] == '\'' {
				b.WriteByte(c)
				b.WriteByte(query[i+1])
				i++
				continue
			}
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (a *Adapter) rewrite(query string) string {
	if a.backend != BackendPostgres {
		return query
	}
	return rewritePlaceholders(rewriteDates(query, a.tz))
}
