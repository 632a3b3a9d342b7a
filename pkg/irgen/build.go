// Package irgen transforms the AST into the semantic IR. One lowering
// traversal resolves character literals and normalises commands; the
// inference passes then fill in SCAN sets, expected terminators,
// parameter types, and locals, and rewrite call arguments against the
// inferred callee signatures.
package irgen

import (
	"fmt"
	"strings"

	"github.com/v2-io/descent/pkg/ast"
	"github.com/v2-io/descent/pkg/charclass"
	"github.com/v2-io/descent/pkg/ir"
)

// ValidationError is a fatal semantic failure with its originating line.
type ValidationError struct {
	Line int
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func verrf(line int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// advanceToMax caps ->[...] targets at the arity of the chained multi-byte
// search in generated code.
const advanceToMax = 6

// Build lowers an AST machine into the IR and runs every inference pass.
func Build(m *ast.Machine) (*ir.Parser, error) {
	p := &ir.Parser{Name: m.Name, EntryPoint: m.EntryPoint}

	typeKinds := map[string]string{}
	for _, t := range m.Types {
		isBracket := t.Kind == "bracket"
		p.Types = append(p.Types, ir.TypeInfo{
			Name:       t.Name,
			Kind:       t.Kind,
			EmitsStart: isBracket,
			EmitsEnd:   isBracket,
			Line:       t.Line,
		})
		if _, dup := typeKinds[t.Name]; !dup {
			typeKinds[t.Name] = t.Kind
		}
	}

	for i := range m.Functions {
		fn, err := buildFunction(&m.Functions[i], typeKinds)
		if err != nil {
			return nil, err
		}
		p.Functions = append(p.Functions, fn)
	}

	for _, k := range m.Keywords {
		p.Keywords = append(p.Keywords, ir.KeywordTable{
			Name:         k.Name,
			ConstName:    keywordConstName(k.Name),
			FallbackFunc: k.FallbackFunc,
			FallbackArgs: append([]string(nil), k.FallbackArgs...),
			Mappings:     keywordMappings(k.Mappings),
			Line:         k.Line,
		})
	}

	inferParamTypes(p)
	for _, f := range p.Functions {
		for _, s := range f.States {
			inferScan(s)
			injectNewline(s)
		}
		inferExpectsChar(f)
		inferLocals(f)
		fixupInlineEmitReturns(f)
	}
	collectPrependValues(p)
	if err := rewriteCallArgs(p); err != nil {
		return nil, err
	}
	p.CustomErrorCodes = collectErrorCodes(p)
	return p, nil
}

func keywordMappings(in []ast.KeywordMapping) []ir.KeywordMapping {
	out := make([]ir.KeywordMapping, len(in))
	for i, m := range in {
		out[i] = ir.KeywordMapping{Keyword: m.Keyword, EventType: m.EventType}
	}
	return out
}

// keywordConstName derives the stable constant name for a keywords block.
func keywordConstName(name string) string {
	return "KW_" + strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(name, "-", "_"), " ", "_"))
}

func buildFunction(fn *ast.Function, typeKinds map[string]string) (*ir.Function, error) {
	f := &ir.Function{
		Name:            fn.Name,
		ReturnType:      fn.ReturnType,
		Params:          append([]string(nil), fn.Params...),
		ParamTypes:      map[string]ir.ParamType{},
		LocalInitValues: map[string]string{},
		PrependValues:   map[string][]byte{},
		Line:            fn.Line,
	}
	for _, name := range f.Params {
		f.ParamTypes[name] = ir.TypeI32
	}
	if kind, ok := typeKinds[fn.ReturnType]; ok {
		f.EmitsEvents = kind == "bracket" || kind == "content"
	}

	var err error
	if f.EntryActions, err = lowerCommands(fn.EntryActions, f, 0); err != nil {
		return nil, err
	}
	if f.EOFHandler, err = lowerCommands(fn.EOFHandler, f, 0); err != nil {
		return nil, err
	}
	for i := range fn.States {
		st, err := buildState(&fn.States[i], f)
		if err != nil {
			return nil, err
		}
		f.States = append(f.States, st)
	}
	return f, nil
}

func buildState(st *ast.State, f *ir.Function) (*ir.State, error) {
	s := &ir.State{Name: st.Name, Line: st.Line}
	var err error
	if s.EOFHandler, err = lowerCommands(st.EOFHandler, f, 0); err != nil {
		return nil, err
	}
	for i := range st.Cases {
		c, err := buildCase(&st.Cases[i], f)
		if err != nil {
			return nil, err
		}
		if c.IsDefault {
			s.HasDefault = true
		}
		if i == 0 && !c.HasMatch && !c.IsDefault && c.Condition == "" {
			s.IsUnconditional = true
		}
		if selfLoops(c.Commands) {
			s.IsSelfLooping = true
		}
		s.Cases = append(s.Cases, c)
	}
	return s, nil
}

func buildCase(c *ast.Case, f *ir.Function) (ir.Case, error) {
	out := ir.Case{
		Condition: c.Condition,
		IsDefault: c.IsDefault,
		Substate:  c.Substate,
		Line:      c.Line,
	}
	if c.Chars != "" {
		match, err := charclass.Parse(c.Chars)
		if err != nil {
			return out, verrf(c.Line, "in c[%s]: %s", c.Chars, err)
		}
		out.Match = match
		out.HasMatch = true
	}
	cmds, err := lowerCommands(c.Commands, f, c.Line)
	if err != nil {
		return out, err
	}
	out.Commands = cmds
	return out, nil
}

func selfLoops(cmds []ir.Command) bool {
	for _, cmd := range cmds {
		if t, ok := cmd.(ir.Transition); ok && t.Target == "" {
			return true
		}
	}
	return false
}

func lowerCommands(cmds []ast.Command, f *ir.Function, line int) ([]ir.Command, error) {
	var out []ir.Command
	for _, cmd := range cmds {
		lowered, err := lowerCommand(cmd, f, line)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered)
	}
	return out, nil
}

func lowerCommand(cmd ast.Command, f *ir.Function, line int) (ir.Command, error) {
	switch c := cmd.(type) {
	case ast.Advance:
		return ir.Advance{}, nil

	case ast.AdvanceTo:
		match, err := charclass.Parse(c.Chars)
		if err != nil {
			return nil, verrf(c.Line, "in ->[%s]: %s", c.Chars, err)
		}
		if match.SpecialClass != "" {
			return nil, verrf(c.Line, "advance_to cannot use class %s", match.SpecialClass)
		}
		if match.ParamRef != "" {
			return nil, verrf(c.Line, "advance_to cannot use parameter :%s", match.ParamRef)
		}
		if len(match.Chars) > advanceToMax {
			return nil, verrf(c.Line, "advance_to limited to %d bytes, got %d", advanceToMax, len(match.Chars))
		}
		return ir.AdvanceTo{Bytes: match.Chars}, nil

	case ast.Mark:
		return ir.Mark{}, nil

	case ast.Term:
		return ir.Term{Offset: c.Offset}, nil

	case ast.Transition:
		return ir.Transition{Target: c.Target, Line: c.Line}, nil

	case ast.Return:
		return ir.Return{
			EmitType: c.EmitType,
			EmitMode: ir.EmitMode(c.EmitMode),
			EmitLit:  c.EmitLit,
		}, nil

	case ast.Call:
		for _, arg := range c.Args {
			if isBareIdent(arg) && hasParam(f, arg) {
				return nil, verrf(c.Line, "argument %q collides with a parameter; use :%s", arg, arg)
			}
		}
		return ir.Call{Name: c.Name, Args: append([]string(nil), c.Args...), Line: c.Line}, nil

	case ast.ErrorCmd:
		return ir.ErrorCmd{Code: c.Code, Line: c.Line}, nil

	case ast.Assign:
		return ir.Assign{Var: c.Var, Expr: c.Expr}, nil

	case ast.AddAssign:
		return ir.AddAssign{Var: c.Var, Expr: c.Expr}, nil

	case ast.SubAssign:
		return ir.SubAssign{Var: c.Var, Expr: c.Expr}, nil

	case ast.Prepend:
		if isBareIdent(c.Chars) && hasParam(f, c.Chars) {
			return nil, verrf(c.Line, "PREPEND argument %q collides with a parameter; use :%s", c.Chars, c.Chars)
		}
		match, err := charclass.Parse(c.Chars)
		if err != nil {
			return nil, verrf(c.Line, "in PREPEND(%s): %s", c.Chars, err)
		}
		if match.SpecialClass != "" || match.ParamRef != "" {
			return nil, verrf(c.Line, "PREPEND requires literal bytes")
		}
		bytes := []byte(match.Bytes)
		if len(bytes) == 0 {
			bytes = match.Chars
		}
		return ir.Prepend{Bytes: bytes}, nil

	case ast.PrependParam:
		return ir.PrependParam{Name: c.Name}, nil

	case ast.InlineEmit:
		return ir.InlineEmit{Type: c.Type, Mode: ir.EmitMode(c.Mode), Lit: c.Lit, Line: c.Line}, nil

	case ast.KeywordsLookup:
		return ir.KeywordsLookup{Name: c.Name, Line: c.Line}, nil

	case ast.Conditional:
		out := ir.Conditional{}
		for _, cl := range c.Clauses {
			cmds, err := lowerCommands(cl.Commands, f, line)
			if err != nil {
				return nil, err
			}
			out.Clauses = append(out.Clauses, ir.CondClause{Condition: cl.Condition, Commands: cmds})
		}
		return out, nil

	case ast.Noop:
		return ir.Noop{}, nil
	}
	return nil, verrf(line, "unknown command kind %T", cmd)
}

func hasParam(f *ir.Function, name string) bool {
	for _, p := range f.Params {
		if p == name {
			return true
		}
	}
	return false
}

// isBareIdent reports identifier-looking text with no quoting, class
// wrapper, or :prefix.
func isBareIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
