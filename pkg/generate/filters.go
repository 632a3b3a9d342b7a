package generate

import (
	"regexp"
	"strings"
	"text/template"

	"github.com/v2-io/descent/pkg/charclass"
)

// Filters is the stable extension surface shared between the core and the
// target templates. Nothing else crosses that boundary.
func Filters() template.FuncMap {
	return template.FuncMap{
		"escape_rust_char":    charclass.EscapeRustChar,
		"pascalcase":          PascalCase,
		"rust_expr":           RustExpr,
		"transform_call_args": TransformCallArgs,
	}
}

// PascalCase converts snake_case, camelCase, kebab-case, or space-separated
// identifiers to PascalCase. Existing PascalCase survives unchanged, which
// makes the filter idempotent.
func PascalCase(s string) string {
	var parts []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) {
			if start < i {
				parts = append(parts, s[start:i])
			}
			break
		}
		switch ch := s[i]; {
		case ch == '_' || ch == ' ' || ch == '-':
			if start < i {
				parts = append(parts, s[start:i])
			}
			start = i + 1
		case ch >= 'A' && ch <= 'Z' && i > start && isLower(s[i-1]):
			parts = append(parts, s[start:i])
			start = i
		}
	}
	var b strings.Builder
	for _, part := range parts {
		b.WriteByte(upperByte(part[0]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func isLower(ch byte) bool { return ch >= 'a' && ch <= 'z' }

func upperByte(ch byte) byte {
	if isLower(ch) {
		return ch - 'a' + 'A'
	}
	return ch
}

var (
	callPattern     = regexp.MustCompile(`/([A-Za-z_][A-Za-z0-9_]*)\(([^()]*)\)`)
	bareCallPattern = regexp.MustCompile(`/([A-Za-z_][A-Za-z0-9_]*)`)
	paramPattern    = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
	charPattern     = regexp.MustCompile(`'(\\.|[^'\\])'`)
)

// Embedded escape tokens usable inside expressions where the raw byte
// would collide with .desc syntax.
var escapeTokens = map[string]string{
	"<P>":  `b'|'`,
	"<L>":  `b'<'`,
	"<R>":  `b'>'`,
	"<LB>": `b'['`,
	"<RB>": `b']'`,
	"<LP>": `b'('`,
	"<RP>": `b')'`,
	"<SQ>": `b'\''`,
	"<DQ>": `b'"'`,
	"<BS>": `b'\\'`,
}

// RustExpr expands a DSL expression into target syntax: function calls,
// the COL/LINE/PREV accessors, :param references, embedded escape tokens,
// and character literals.
//
// Calls rewrite first; expanding COL into self.col() beforehand would hand
// /f(COL) a closing paren that is not the call's own.
func RustExpr(expr string) string {
	expr = callPattern.ReplaceAllStringFunc(expr, func(m string) string {
		sub := callPattern.FindStringSubmatch(m)
		name, args := sub[1], strings.TrimSpace(sub[2])
		if args == "" {
			return "self.parse_" + name + "(on_event)"
		}
		return "self.parse_" + name + "(" + strings.Join(TransformCallArgs(args), ", ") + ", on_event)"
	})
	expr = bareCallPattern.ReplaceAllString(expr, "self.parse_$1(on_event)")

	expr = replaceWord(expr, "COL", "self.col()")
	expr = replaceWord(expr, "LINE", "self.line as i32")
	expr = replaceWord(expr, "PREV", "self.prev()")

	expr = paramPattern.ReplaceAllString(expr, "$1")

	for tok, lit := range escapeTokens {
		expr = strings.ReplaceAll(expr, tok, lit)
	}

	return replaceCharLiterals(expr)
}

// replaceCharLiterals rewrites 'x' to the byte-literal token, skipping
// text that is already a b'x' literal.
func replaceCharLiterals(s string) string {
	var b strings.Builder
	idx := 0
	for _, loc := range charPattern.FindAllStringIndex(s, -1) {
		if loc[0] < idx || loc[0] > 0 && s[loc[0]-1] == 'b' {
			continue
		}
		decoded, err := charclass.Parse(s[loc[0]:loc[1]])
		if err != nil || len(decoded.Chars) != 1 {
			continue
		}
		b.WriteString(s[idx:loc[0]])
		b.WriteString(charclass.EscapeRustChar(decoded.Chars[0]))
		idx = loc[1]
	}
	b.WriteString(s[idx:])
	return b.String()
}

// TransformCallArgs splits an argument list respecting quotes and angle
// brackets, and expands each argument.
func TransformCallArgs(args string) []string {
	parts := splitArgs(args)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = RustExpr(p)
	}
	return out
}

// splitArgs splits on commas outside quotes, parens, and <...> classes.
func splitArgs(s string) []string {
	var args []string
	depth := 0
	var inSingle, inDouble, escaped bool
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case (inSingle || inDouble) && ch == '\\':
			escaped = true
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
			}
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		case ch == '(' || ch == '<':
			depth++
		case ch == ')' || ch == '>':
			depth--
		case ch == ',' && depth == 0:
			if a := strings.TrimSpace(s[start:i]); a != "" {
				args = append(args, a)
			}
			start = i + 1
		}
	}
	if a := strings.TrimSpace(s[start:]); a != "" {
		args = append(args, a)
	}
	return args
}

// replaceWord substitutes whole-word occurrences only, so a COL inside
// COLUMN or protocol stays untouched.
func replaceWord(s, word, repl string) string {
	var b strings.Builder
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			b.WriteString(s[idx:])
			return b.String()
		}
		i += idx
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(s) || !isWordByte(s[afterIdx])
		b.WriteString(s[idx:i])
		if before && after {
			b.WriteString(repl)
		} else {
			b.WriteString(word)
		}
		idx = afterIdx
	}
}
