package generate

import "strings"

// analyzeHelpers walks every expression and character-class case in the
// context, keyword fallback arguments included, and records which runtime
// helpers the template must emit. content_end (UsesSpan) is also flagged
// for every mark, term and inline emit and for content-kind or
// content-on-close functions, whether or not a generated line calls it.
func analyzeHelpers(ctx *Context) {
	h := &ctx.Helpers
	for _, k := range ctx.Keywords {
		for _, arg := range k.FallbackArgs {
			analyzeExpr(h, arg)
		}
	}
	for fi := range ctx.Functions {
		f := &ctx.Functions[fi]
		if f.Kind == "content" || f.EmitsContentOnClose {
			h.UsesSpan = true
		}
		analyzeCommands(h, f.EntryActions)
		analyzeCommands(h, f.EOFHandler)
		for _, s := range f.States {
			if n := len(s.ScanChars); n > h.MaxScanArity {
				h.MaxScanArity = n
			}
			analyzeCommands(h, s.EOFHandler)
			for _, c := range s.Cases {
				analyzeCase(ctx, h, c)
			}
		}
	}
}

func analyzeCase(ctx *Context, h *Helpers, c CaseContext) {
	switch c.ClassName {
	case "LETTER", "LABEL_START":
		h.UsesIsLetter = true
	case "LABEL_CONT":
		h.UsesIsLetter = true
		h.UsesIsDigit = true
	case "DIGIT":
		h.UsesIsDigit = true
	case "HEX_DIGIT":
		h.UsesIsHexDigit = true
	case "WS":
		h.UsesIsWhitespace = true
	}
	if c.SpecialClass != "" {
		ctx.UsesUnicode = true
	}
	if c.Condition != "" {
		analyzeExpr(h, c.Condition)
	}
	analyzeCommands(h, c.Commands)
}

func analyzeCommands(h *Helpers, cmds []CommandContext) {
	for _, cmd := range cmds {
		switch cmd.Kind {
		case "advance_to":
			if n := len(cmd.Bytes); n > h.MaxScanArity {
				h.MaxScanArity = n
			}
		case "term":
			if cmd.Offset != 0 {
				h.UsesSetTerm = true
			}
			h.UsesSpan = true
		case "mark":
			h.UsesSpan = true
		case "return":
			if cmd.Type != "" && (cmd.Mode == "mark" || cmd.Mode == "bare" && cmd.Shape == "content") {
				h.UsesSpan = true
			}
		case "emit":
			h.UsesSpan = true
		case "keywords":
			h.UsesKeywords = true
			h.UsesSpan = true
		case "prepend", "prepend_param":
			h.UsesPrepend = true
		case "call":
			for _, arg := range cmd.Args {
				analyzeExpr(h, arg)
			}
		case "assign", "add_assign", "sub_assign":
			analyzeExpr(h, cmd.Expr)
		case "conditional":
			for _, cl := range cmd.Clauses {
				analyzeExpr(h, cl.Condition)
				analyzeCommands(h, cl.Commands)
			}
		}
	}
}

// analyzeExpr looks for the special accessor variables in a DSL
// expression.
func analyzeExpr(h *Helpers, expr string) {
	if containsWord(expr, "COL") {
		h.UsesCol = true
	}
	if containsWord(expr, "PREV") {
		h.UsesPrev = true
	}
}

func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(s) || !isWordByte(s[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}
