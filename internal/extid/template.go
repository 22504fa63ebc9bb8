package extid

import (
	"strings"
)

// FieldLookup resolves a field name to its raw row value. Unknown fields
// must return "" — templates never crash on a missing column.
type FieldLookup func(field string) string

// Render evaluates an ID template against one row. Templates are literal
// text with {expr} placeholders; an expression is one of
//
//	slug(field)
//	concat(a, b, ...)     joins non-empty parts with "_"
//	a or b                left when non-empty, else right
//	field                 column value, slugged
//	'literal'             quoted text
//
// The rendered base is truncated to 60 runes before dedup so a suffix
// still fits, and the final ID never exceeds 64.
func Render(template string, lookup FieldLookup, tracker *DedupTracker) (id string, dup bool) {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		closeIdx := strings.IndexByte(rest[open:], '}')
		if closeIdx < 0 {
			// Unterminated placeholder renders as nothing.
			break
		}
		expr := rest[open+1 : open+closeIdx]
		b.WriteString(evalExpr(expr, lookup))
		rest = rest[open+closeIdx+1:]
	}

	base := b.String()
	if len(base) > baseLen {
		base = strings.TrimRight(base[:baseLen], "_")
	}
	if tracker == nil {
		return base, false
	}
	id, dup = tracker.Track(base)
	if len(id) > MaxIDLen {
		id = id[:MaxIDLen]
	}
	return id, dup
}

// evalExpr evaluates one placeholder expression.
func evalExpr(expr string, lookup FieldLookup) string {
	// "a or b" binds loosest; both sides are fully rendered first.
	if parts := splitTop(expr, " or "); len(parts) > 1 {
		for _, p := range parts {
			if v := evalExpr(strings.TrimSpace(p), lookup); v != "" {
				return v
			}
		}
		return ""
	}

	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "slug(") && strings.HasSuffix(expr, ")"):
		field := strings.TrimSpace(expr[5 : len(expr)-1])
		return Slug(lookup(field))
	case strings.HasPrefix(expr, "concat(") && strings.HasSuffix(expr, ")"):
		var parts []string
		for _, arg := range splitTop(expr[7:len(expr)-1], ",") {
			if v := evalExpr(strings.TrimSpace(arg), lookup); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, "_")
	case len(expr) >= 2 && (expr[0] == '\'' || expr[0] == '"') && expr[len(expr)-1] == expr[0]:
		return expr[1 : len(expr)-1]
	case expr == "":
		return ""
	default:
		// Bare identifiers are slugged too; every placeholder form keeps
		// the rendered ID inside the slug charset.
		return Slug(lookup(expr))
	}
}

// splitTop splits on sep outside parentheses.
func splitTop(s, sep string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			out = append(out, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	out = append(out, s[start:])
	return out
}
