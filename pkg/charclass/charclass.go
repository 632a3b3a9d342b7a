// Package charclass parses the character, string, and class literal
// sublanguage shared by every stage that needs byte content: c[...]
// selectors, ->[...] targets, call arguments, PREPEND, and inline emits.
//
// Routing all character handling through one parser is deliberate; the
// per-site variants it replaced disagreed on escapes and quoting.
package charclass

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Result is the normalised form of a parsed literal.
type Result struct {
	Chars        []byte // sorted unique byte set, empty for <> and special classes
	SpecialClass string // XID_START, XID_CONT, XLBL_START, XLBL_CONT
	ParamRef     string // parameter name for :name references
	Bytes        string // decoded string content, in source order
	ClassName    string // LETTER, DIGIT, ... when the input was one named class
}

// IsEmpty reports whether the result matches nothing: the empty class <>.
func (r Result) IsEmpty() bool {
	return len(r.Chars) == 0 && r.SpecialClass == "" && r.ParamRef == ""
}

// byteRange expands into the inclusive range lo..hi.
type byteRange struct{ lo, hi byte }

var namedRanges = map[string][]byteRange{
	"0-9": {{'0', '9'}},
	"1-9": {{'1', '9'}},
	"a-z": {{'a', 'z'}},
	"A-Z": {{'A', 'Z'}},
	"a-f": {{'a', 'f'}},
	"A-F": {{'A', 'F'}},
}

var namedClasses = map[string][]byteRange{
	"LETTER":      {{'a', 'z'}, {'A', 'Z'}},
	"DIGIT":       {{'0', '9'}},
	"HEX_DIGIT":   {{'0', '9'}, {'a', 'f'}, {'A', 'F'}},
	"LABEL_START": {{'a', 'z'}, {'A', 'Z'}, {'_', '_'}},
	"LABEL_CONT":  {{'a', 'z'}, {'A', 'Z'}, {'0', '9'}, {'_', '_'}, {'-', '-'}},
	"WS":          {{' ', ' '}, {'\t', '\t'}},
	"NL":          {{'\n', '\n'}},
}

var specialClasses = map[string]bool{
	"XID_START":  true,
	"XID_CONT":   true,
	"XLBL_START": true,
	"XLBL_CONT":  true,
}

// Single-character names for bytes that collide with .desc syntax.
var reservedChars = map[string]byte{
	"P":  '|',
	"L":  '<',
	"R":  '>',
	"LB": '[',
	"RB": ']',
	"LP": '(',
	"RP": ')',
	"SQ": '\'',
	"DQ": '"',
	"BS": '\\',
}

// Parse parses a character, string, or class literal. The input may be a
// quoted literal, a <...> class, a :name parameter reference, or one or
// more space-separated bare tokens.
func Parse(s string) (Result, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") && len(s) >= 2 {
		return parseTokens(s[1 : len(s)-1])
	}
	return parseTokens(s)
}

func parseTokens(s string) (Result, error) {
	var res Result
	set := map[byte]bool{}
	toks, err := splitTokens(s)
	if err != nil {
		return res, err
	}
	for _, tok := range toks {
		one, err := parseToken(tok)
		if err != nil {
			return res, err
		}
		if len(toks) == 1 {
			res.ClassName = one.ClassName
		}
		for _, b := range one.Chars {
			set[b] = true
		}
		res.Bytes += one.Bytes
		if one.SpecialClass != "" {
			if res.SpecialClass != "" && res.SpecialClass != one.SpecialClass {
				return res, fmt.Errorf("cannot combine classes %s and %s", res.SpecialClass, one.SpecialClass)
			}
			res.SpecialClass = one.SpecialClass
		}
		if one.ParamRef != "" {
			if res.ParamRef != "" {
				return res, fmt.Errorf("multiple parameter references in one class")
			}
			res.ParamRef = one.ParamRef
		}
	}
	res.Chars = sortedBytes(set)
	return res, nil
}

// splitTokens splits class contents on whitespace, keeping quoted literals
// and nested <...> groups intact.
func splitTokens(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		switch ch := s[i]; {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case ch == '\'' || ch == '"':
			end, err := scanQuoted(s, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, s[i:end])
			i = end
		case ch == '<':
			depth := 0
			j := i
			for ; j < len(s); j++ {
				if s[j] == '<' {
					depth++
				} else if s[j] == '>' {
					depth--
					if depth == 0 {
						j++
						break
					}
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unterminated class")
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

func scanQuoted(s string, start int) (int, error) {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == quote {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated quote in %q", s[start:])
}

func parseToken(tok string) (Result, error) {
	switch {
	case tok == "<>":
		return Result{}, nil
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return parseTokens(tok[1 : len(tok)-1])
	case strings.HasPrefix(tok, "'") || strings.HasPrefix(tok, "\""):
		return parseQuoted(tok)
	case strings.HasPrefix(tok, ":"):
		name := tok[1:]
		if name == "" {
			return Result{}, fmt.Errorf("empty parameter reference")
		}
		return Result{ParamRef: name}, nil
	default:
		return parseBare(tok)
	}
}

func parseQuoted(tok string) (Result, error) {
	if len(tok) < 2 || tok[len(tok)-1] != tok[0] {
		return Result{}, fmt.Errorf("unterminated quote in %q", tok)
	}
	decoded, err := decodeEscapes(tok[1 : len(tok)-1])
	if err != nil {
		return Result{}, err
	}
	set := map[byte]bool{}
	for i := 0; i < len(decoded); i++ {
		set[decoded[i]] = true
	}
	return Result{Chars: sortedBytes(set), Bytes: decoded}, nil
}

func parseBare(tok string) (Result, error) {
	if r, ok := namedRanges[tok]; ok {
		return Result{Chars: expandRanges(r)}, nil
	}
	upper := strings.ToUpper(tok)
	if r, ok := namedClasses[upper]; ok {
		return Result{Chars: expandRanges(r), ClassName: upper}, nil
	}
	if specialClasses[upper] {
		return Result{SpecialClass: upper}, nil
	}
	if b, ok := reservedChars[tok]; ok {
		return Result{Chars: []byte{b}, Bytes: string(b)}, nil
	}
	// Every remaining bare character stands for itself, but anything
	// outside the identifier alphabet must be quoted or named.
	set := map[byte]bool{}
	for i := 0; i < len(tok); i++ {
		ch := tok[i]
		if !isBareChar(ch) {
			return Result{}, fmt.Errorf("character %q must be quoted or named", string(ch))
		}
		set[ch] = true
	}
	return Result{Chars: sortedBytes(set), Bytes: tok}, nil
}

func isBareChar(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	case ch == '_' || ch == '-':
		return true
	}
	return false
}

// decodeEscapes resolves \n \t \r \\ \' \" \0 \xHH and \uXXXX sequences.
// \u escapes encode as UTF-8 bytes.
func decodeEscapes(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		case '0':
			b.WriteByte(0)
		case 'x':
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated \\x escape in %q", s)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("invalid \\x escape in %q", s)
			}
			b.WriteByte(byte(v))
			i += 2
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("truncated \\u escape in %q", s)
			}
			v, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("invalid \\u escape in %q", s)
			}
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], rune(v))
			b.Write(buf[:n])
			i += 4
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

func expandRanges(ranges []byteRange) []byte {
	set := map[byte]bool{}
	for _, r := range ranges {
		for b := int(r.lo); b <= int(r.hi); b++ {
			set[byte(b)] = true
		}
	}
	return sortedBytes(set)
}

func sortedBytes(set map[byte]bool) []byte {
	out := make([]byte, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
