// Package parser implements a recursive descent parser over the .desc
// token stream, producing the structural AST.
package parser

import (
	"fmt"
	"strings"

	"github.com/v2-io/descent/pkg/ast"
	"github.com/v2-io/descent/pkg/lexer"
)

// ParseError is a fatal structural failure with its originating line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func perrf(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Parse builds an AST from a token stream.
func Parse(toks []lexer.Token) (*ast.Machine, error) {
	p := &parser{toks: toks}
	return p.parseMachine()
}

// ParseSource tokenizes and parses a .desc source in one step.
func ParseSource(src string) (*ast.Machine, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(toks)
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) cur() lexer.Token { return p.toks[p.pos] }

func (p *parser) next() { p.pos++ }

var topLevelTags = map[string]bool{
	"parser":      true,
	"entry-point": true,
	"type":        true,
	"function":    true,
	"keywords":    true,
}

var classNameTags = map[string]bool{
	"letter":      true,
	"digit":       true,
	"hex_digit":   true,
	"ws":          true,
	"nl":          true,
	"label_start": true,
	"label_cont":  true,
	"xid_start":   true,
	"xid_cont":    true,
	"xlbl_start":  true,
	"xlbl_cont":   true,
}

func (p *parser) parseMachine() (*ast.Machine, error) {
	m := &ast.Machine{}
	for !p.done() {
		tok := p.cur()
		switch tok.Tag {
		case "parser":
			m.Name = strings.TrimSpace(tok.ID)
			p.next()
		case "entry-point":
			m.EntryPoint = strings.TrimSpace(tok.ID)
			p.next()
		case "type":
			m.Types = append(m.Types, ast.TypeDecl{
				Name: strings.TrimSpace(tok.ID),
				Kind: strings.ToLower(strings.TrimSpace(tok.Rest)),
				Line: tok.Line,
			})
			p.next()
		case "function":
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			m.Functions = append(m.Functions, fn)
		case "keywords":
			kw, err := p.parseKeywords()
			if err != nil {
				return nil, err
			}
			m.Keywords = append(m.Keywords, kw)
		default:
			return nil, perrf(tok.Line, "unknown top-level directive %q", tok.Tag)
		}
	}
	return m, nil
}

// parseFunctionHeader splits "name(:a :b) > type" into its pieces.
// The '>' separating the return type is only recognised outside the
// parameter list.
func parseFunctionHeader(id string, line int) (string, []string, string, error) {
	id = strings.TrimSpace(id)
	depth := 0
	cut := -1
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '>':
			if depth == 0 {
				cut = i
			}
		}
	}
	head, ret := id, ""
	if cut >= 0 {
		head = strings.TrimSpace(id[:cut])
		ret = strings.TrimSpace(id[cut+1:])
	}
	name := head
	var params []string
	if i := strings.IndexByte(head, '('); i >= 0 {
		if !strings.HasSuffix(head, ")") {
			return "", nil, "", perrf(line, "malformed parameter list in function %q", id)
		}
		name = strings.TrimSpace(head[:i])
		for _, f := range strings.FieldsFunc(head[i+1:len(head)-1], func(r rune) bool {
			return r == ' ' || r == ',' || r == '\t'
		}) {
			if !strings.HasPrefix(f, ":") || len(f) < 2 {
				return "", nil, "", perrf(line, "parameter %q must use the :name form", f)
			}
			params = append(params, f[1:])
		}
	}
	if name == "" {
		return "", nil, "", perrf(line, "function with no name")
	}
	return name, params, ret, nil
}

func (p *parser) parseFunction() (ast.Function, error) {
	tok := p.cur()
	name, params, ret, err := parseFunctionHeader(tok.ID, tok.Line)
	if err != nil {
		return ast.Function{}, err
	}
	fn := ast.Function{Name: name, Params: params, ReturnType: ret, Line: tok.Line}
	p.next()

	var st *ast.State       // current state, nil at function level
	var curCase *ast.Case   // current case within st
	var sink *[]ast.Command // active EOF handler, when set
	entryCond := -1         // index of an open Conditional among entry actions
	caseClosed := false

	newState := func(name string, line int) {
		fn.States = append(fn.States, ast.State{Name: name, Line: line})
		st = &fn.States[len(fn.States)-1]
		curCase = nil
		sink = nil
		caseClosed = false
	}

	for !p.done() && !topLevelTags[p.cur().Tag] {
		t := p.cur()
		switch {
		case t.Tag == "state":
			newState(strings.TrimPrefix(strings.TrimSpace(t.ID), ":"), t.Line)
			p.next()

		case t.Tag == "eof":
			if st == nil {
				sink = &fn.EOFHandler
			} else {
				sink = &st.EOFHandler
				curCase = nil
			}
			if t.Rest != "" {
				cmd, err := parseInlineCommand(t.Rest, t.Line)
				if err != nil {
					return fn, err
				}
				*sink = append(*sink, cmd)
			}
			p.next()

		case t.Tag == "if" && st == nil && sink == nil:
			// Function-level guard: entry actions after it run conditionally.
			if entryCond < 0 {
				fn.EntryActions = append(fn.EntryActions, ast.Conditional{})
				entryCond = len(fn.EntryActions) - 1
			}
			cond := fn.EntryActions[entryCond].(ast.Conditional)
			clause := ast.CondClause{Condition: strings.TrimSpace(t.ID)}
			if t.Rest != "" {
				cmd, err := parseInlineCommand(t.Rest, t.Line)
				if err != nil {
					return fn, err
				}
				clause.Commands = append(clause.Commands, cmd)
			}
			cond.Clauses = append(cond.Clauses, clause)
			fn.EntryActions[entryCond] = cond
			p.next()

		case isHardCaseStarter(t.Tag):
			if st == nil {
				newState("", t.Line)
			}
			if err := p.startCase(st, t); err != nil {
				return fn, err
			}
			curCase = &st.Cases[len(st.Cases)-1]
			sink = nil
			caseClosed = false
			p.next()

		case isCommandLike(t.Tag) && sink == nil && (st == nil || curCase == nil || caseClosed):
			// Bare-action case: the token itself is its first command.
			if st == nil {
				newState("", t.Line)
			}
			if err := p.startCase(st, t); err != nil {
				return fn, err
			}
			curCase = &st.Cases[len(st.Cases)-1]
			caseClosed = false
			p.next()

		default:
			cmd, err := p.command(t)
			if err != nil {
				return fn, err
			}
			switch {
			case sink != nil:
				*sink = append(*sink, cmd)
			case curCase != nil:
				curCase.Commands = append(curCase.Commands, cmd)
				if isReturn(cmd) && curCase.Condition != "" {
					caseClosed = true
				}
			case st != nil:
				return fn, perrf(t.Line, "command outside any case")
			case entryCond >= 0:
				cond := fn.EntryActions[entryCond].(ast.Conditional)
				last := len(cond.Clauses) - 1
				cond.Clauses[last].Commands = append(cond.Clauses[last].Commands, cmd)
				fn.EntryActions[entryCond] = cond
			default:
				fn.EntryActions = append(fn.EntryActions, cmd)
			}
			p.next()
		}
	}
	return fn, nil
}

// startCase opens a new case in st from the starter token. Command-like
// starters become bare-action cases carrying the token as their first
// command.
func (p *parser) startCase(st *ast.State, tok lexer.Token) error {
	c := ast.Case{Line: tok.Line}
	bareAction := false
	switch {
	case tok.Tag == "c":
		c.Chars = strings.TrimSpace(tok.ID)
		if c.Chars == "" {
			return perrf(tok.Line, "empty character selector")
		}
	case tok.Tag == "default":
		c.IsDefault = true
	case tok.Tag == "if":
		c.Condition = strings.TrimSpace(tok.ID)
		if c.Condition == "" {
			return perrf(tok.Line, "empty condition")
		}
	case classNameTags[tok.Tag]:
		c.Chars = strings.ToUpper(tok.Tag)
	default:
		cmd, err := p.command(tok)
		if err != nil {
			return err
		}
		c.Commands = append(c.Commands, cmd)
		bareAction = true
	}

	if !bareAction {
		rest := strings.TrimSpace(tok.Rest)
		if strings.HasPrefix(rest, ".") {
			sub := rest[1:]
			if i := strings.IndexAny(sub, " \t"); i >= 0 {
				c.Substate = sub[:i]
				rest = strings.TrimSpace(sub[i:])
			} else {
				c.Substate = sub
				rest = ""
			}
		}
		if rest != "" {
			cmd, err := parseInlineCommand(rest, tok.Line)
			if err != nil {
				return err
			}
			c.Commands = append(c.Commands, cmd)
		}
	}

	st.Cases = append(st.Cases, c)
	return nil
}

func (p *parser) parseKeywords() (ast.Keywords, error) {
	tok := p.cur()
	kw := ast.Keywords{Name: strings.TrimSpace(tok.ID), Line: tok.Line}
	p.next()
	for !p.done() && !topLevelTags[p.cur().Tag] {
		t := p.cur()
		if strings.HasPrefix(t.Tag, "/") {
			name, args, err := parseCallTag(t.Tag, t.Line)
			if err != nil {
				return kw, err
			}
			kw.FallbackFunc = name
			kw.FallbackArgs = args
			p.next()
			continue
		}
		rest := strings.TrimSpace(t.Rest)
		if !strings.HasPrefix(rest, "->") {
			return kw, perrf(t.Line, "keyword mapping must use the %q form", "word -> EventType")
		}
		kw.Mappings = append(kw.Mappings, ast.KeywordMapping{
			Keyword:   t.Tag,
			EventType: strings.TrimSpace(rest[2:]),
		})
		p.next()
	}
	return kw, nil
}

// isHardCaseStarter reports tokens that always open a new case.
func isHardCaseStarter(tag string) bool {
	return tag == "c" || tag == "default" || tag == "if" || classNameTags[tag]
}

// isCommandLike reports tokens that may open a bare-action case: calls,
// advance/transition arrows, inline event emits, and bare command
// keywords.
func isCommandLike(tag string) bool {
	if tag == "" {
		return false
	}
	if strings.HasPrefix(tag, "/") || strings.HasPrefix(tag, "->") || strings.HasPrefix(tag, ">>") {
		return true
	}
	if tag[0] >= 'A' && tag[0] <= 'Z' {
		return true
	}
	switch tag {
	case "return", "err", "mark", "term":
		return true
	}
	return strings.HasPrefix(tag, "term(") ||
		strings.HasPrefix(tag, "prepend(") ||
		strings.HasPrefix(tag, "keywords(") ||
		strings.HasPrefix(tag, "emit(")
}

func isReturn(cmd ast.Command) bool {
	_, ok := cmd.(ast.Return)
	return ok
}
