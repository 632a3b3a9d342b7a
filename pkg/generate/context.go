// Package generate renders a built IR into target-language source through
// a template. The render context carries the IR flattened into
// template-friendly records plus the helper-usage flags that let the
// template emit only the runtime helpers the generated parser calls.
package generate

import (
	"strings"

	"github.com/v2-io/descent/pkg/charclass"
	"github.com/v2-io/descent/pkg/ir"
)

// Context is the root value handed to the target template.
type Context struct {
	Name        string
	EntryPoint  string
	Trace       bool
	UsesUnicode bool
	Types       []TypeContext
	Functions   []FunctionContext
	Keywords    []KeywordContext
	ErrorCodes  []string
	Helpers     Helpers
}

// Helpers records which runtime helper methods the generated parser needs.
type Helpers struct {
	UsesCol          bool
	UsesPrev         bool
	UsesSetTerm      bool
	UsesSpan         bool
	UsesIsLetter     bool
	UsesIsDigit      bool
	UsesIsHexDigit   bool
	UsesIsWhitespace bool
	UsesKeywords     bool
	UsesPrepend      bool
	MaxScanArity     int
}

// TypeContext is a declared event type.
type TypeContext struct {
	Name       string
	PascalName string
	Kind       string
	EmitsStart bool
	EmitsEnd   bool
}

// ParamContext is one function parameter with its inferred type name
// (i32, byte, or bytes); the template maps it to target syntax.
type ParamContext struct {
	Name string
	Type string
}

// LocalContext is one inferred local with its optional initialiser.
type LocalContext struct {
	Name string
	Init string
}

// FunctionContext is one parse function ready for rendering.
type FunctionContext struct {
	Name                string
	PascalName          string
	ReturnType          string
	ReturnPascal        string
	Kind                string // bracket, content, internal, or ""
	Trace               bool
	EmitsEvents         bool
	Params              []ParamContext
	Locals              []LocalContext
	EntryActions        []CommandContext
	States              []StateContext
	EOFHandler          []CommandContext
	HasExpectsChar      bool
	ExpectsChar         byte
	EmitsContentOnClose bool
	PrependValues       map[string][]byte
	UnclosedCode        string
	Line                int
}

// StateContext is one state with resolved transition indexes.
type StateContext struct {
	Name            string
	Index           int
	Cases           []CaseContext
	EOFHandler      []CommandContext
	ScanChars       []byte
	NewlineInjected bool
	IsUnconditional bool
	HasDefault      bool
}

// CaseContext is one case. Kind is chars, class, special, param,
// condition, default, or bare.
type CaseContext struct {
	Kind         string
	Chars        []byte
	ClassName    string
	SpecialClass string
	ParamRef     string
	Condition    string
	Commands     []CommandContext
}

// CommandContext is one lowered command, flattened for template dispatch
// on Kind. FnKind and FnEvent carry the enclosing function's return kind
// and event name so return commands can render the auto emit; Shape
// distinguishes content-carrying emits from span-only ones.
type CommandContext struct {
	Kind        string
	Bytes       []byte
	Offset      int
	Target      string
	TargetIndex int
	Name        string
	Const       string // keywords table constant
	Args        []string
	Code        string
	Var         string
	Expr        string
	Type        string
	Mode        string
	Lit         string
	Shape       string // content or span
	Suppress    bool
	FnKind      string
	FnEvent     string
	Clauses     []ClauseContext
}

// ClauseContext is one arm of a conditional command.
type ClauseContext struct {
	Condition string
	Commands  []CommandContext
}

// KeywordContext is one keywords block.
type KeywordContext struct {
	Name         string
	ConstName    string
	FallbackFunc string
	FallbackArgs []string
	Mappings     []ir.KeywordMapping
}

// BuildContext flattens the IR into the render context and runs the
// helper-usage analysis.
func BuildContext(p *ir.Parser, opts Options) *Context {
	ctx := &Context{
		Name:       p.Name,
		EntryPoint: p.EntryPoint,
		Trace:      opts.Trace,
	}

	b := &ctxBuilder{typeKinds: map[string]string{}, kwConst: map[string]string{}}
	for _, t := range p.Types {
		ctx.Types = append(ctx.Types, TypeContext{
			Name:       t.Name,
			PascalName: PascalCase(t.Name),
			Kind:       t.Kind,
			EmitsStart: t.EmitsStart,
			EmitsEnd:   t.EmitsEnd,
		})
		b.typeKinds[normalizeName(t.Name)] = t.Kind
	}
	for _, k := range p.Keywords {
		b.kwConst[k.Name] = k.ConstName
	}

	for _, f := range p.Functions {
		ctx.Functions = append(ctx.Functions, b.buildFunctionContext(f, opts.Trace))
	}

	kwIndex := map[string]int{}
	for _, k := range p.Keywords {
		kc := KeywordContext{
			Name:         k.Name,
			ConstName:    k.ConstName,
			FallbackFunc: k.FallbackFunc,
			FallbackArgs: k.FallbackArgs,
			Mappings:     k.Mappings,
		}
		if i, ok := kwIndex[k.Name]; ok {
			ctx.Keywords[i] = kc // duplicate name: the latest block wins
			continue
		}
		kwIndex[k.Name] = len(ctx.Keywords)
		ctx.Keywords = append(ctx.Keywords, kc)
	}

	ctx.ErrorCodes = buildErrorCodes(ctx.Functions, p.CustomErrorCodes)
	analyzeHelpers(ctx)
	return ctx
}

// buildErrorCodes assembles the generated ErrorCode enum: the builtin set,
// one UnclosedFoo per expects-char function, then every custom code.
func buildErrorCodes(funcs []FunctionContext, custom []string) []string {
	codes := []string{"UnexpectedByte", "UnexpectedEof"}
	seen := map[string]bool{"UnexpectedByte": true, "UnexpectedEof": true}
	for _, f := range funcs {
		if f.UnclosedCode != "" && !seen[f.UnclosedCode] {
			codes = append(codes, f.UnclosedCode)
			seen[f.UnclosedCode] = true
		}
	}
	for _, c := range custom {
		if !seen[c] {
			codes = append(codes, c)
			seen[c] = true
		}
	}
	return codes
}

// ctxBuilder threads the lookup tables every nested record needs.
type ctxBuilder struct {
	typeKinds map[string]string
	kwConst   map[string]string

	fnKind  string
	fnEvent string
}

func (b *ctxBuilder) buildFunctionContext(f *ir.Function, trace bool) FunctionContext {
	fc := FunctionContext{
		Name:                f.Name,
		PascalName:          PascalCase(f.Name),
		ReturnType:          f.ReturnType,
		ReturnPascal:        PascalCase(f.ReturnType),
		Kind:                b.typeKinds[normalizeName(f.ReturnType)],
		Trace:               trace,
		EmitsEvents:         f.EmitsEvents,
		HasExpectsChar:      f.HasExpectsChar,
		ExpectsChar:         f.ExpectsChar,
		EmitsContentOnClose: f.EmitsContentOnClose,
		PrependValues:       f.PrependValues,
		Line:                f.Line,
	}
	if f.HasExpectsChar {
		fc.UnclosedCode = "Unclosed" + fc.PascalName
	}
	b.fnKind = fc.Kind
	b.fnEvent = fc.ReturnPascal
	for _, name := range f.Params {
		fc.Params = append(fc.Params, ParamContext{Name: name, Type: f.ParamTypes[name].String()})
	}
	for _, name := range f.Locals {
		fc.Locals = append(fc.Locals, LocalContext{Name: name, Init: localInit(f, name)})
	}

	stateIndex := map[string]int{}
	for i, s := range f.States {
		stateIndex[s.Name] = i
	}
	fc.EntryActions = b.buildCommands(f.EntryActions, stateIndex, -1)
	fc.EOFHandler = b.buildCommands(f.EOFHandler, stateIndex, -1)
	for i, s := range f.States {
		sc := StateContext{
			Name:            s.Name,
			Index:           i,
			ScanChars:       s.ScanChars,
			NewlineInjected: s.NewlineInjected,
			IsUnconditional: s.IsUnconditional,
			HasDefault:      s.HasDefault,
			EOFHandler:      b.buildCommands(s.EOFHandler, stateIndex, i),
		}
		for _, c := range s.Cases {
			sc.Cases = append(sc.Cases, b.buildCaseContext(c, stateIndex, i))
		}
		fc.States = append(fc.States, sc)
	}
	return fc
}

func localInit(f *ir.Function, name string) string {
	if v, ok := f.LocalInitValues[name]; ok {
		return v
	}
	return "0"
}

// normalizeName folds string_value and StringValue to the same key.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func (b *ctxBuilder) buildCaseContext(c ir.Case, stateIndex map[string]int, self int) CaseContext {
	cc := CaseContext{
		Condition: c.Condition,
		Commands:  b.buildCommands(c.Commands, stateIndex, self),
	}
	switch {
	case c.IsDefault:
		cc.Kind = "default"
	case c.Condition != "":
		cc.Kind = "condition"
	case c.HasMatch && c.Match.SpecialClass != "":
		cc.Kind = "special"
		cc.SpecialClass = c.Match.SpecialClass
	case c.HasMatch && c.Match.ParamRef != "":
		cc.Kind = "param"
		cc.ParamRef = c.Match.ParamRef
	case c.HasMatch && c.Match.ClassName != "":
		cc.Kind = "class"
		cc.ClassName = c.Match.ClassName
		cc.Chars = c.Match.Chars
	case c.HasMatch:
		cc.Kind = "chars"
		cc.Chars = c.Match.Chars
	default:
		cc.Kind = "bare"
	}
	return cc
}

func (b *ctxBuilder) buildCommands(cmds []ir.Command, stateIndex map[string]int, self int) []CommandContext {
	var out []CommandContext
	for _, cmd := range cmds {
		out = append(out, b.buildCommandContext(cmd, stateIndex, self))
	}
	return out
}

func (b *ctxBuilder) buildCommandContext(cmd ir.Command, stateIndex map[string]int, self int) CommandContext {
	switch c := cmd.(type) {
	case ir.Advance:
		return CommandContext{Kind: "advance"}
	case ir.AdvanceTo:
		return CommandContext{Kind: "advance_to", Bytes: c.Bytes}
	case ir.Mark:
		return CommandContext{Kind: "mark"}
	case ir.Term:
		return CommandContext{Kind: "term", Offset: c.Offset}
	case ir.Transition:
		idx := self
		if c.Target != "" {
			if i, ok := stateIndex[strings.TrimPrefix(c.Target, ":")]; ok {
				idx = i
			}
		}
		return CommandContext{Kind: "transition", Target: c.Target, TargetIndex: idx}
	case ir.Return:
		return CommandContext{
			Kind:     "return",
			Type:     c.EmitType,
			Mode:     emitModeName(c.EmitMode),
			Lit:      decodeEmitLit(c.EmitLit),
			Shape:    b.emitShape(c.EmitType),
			Suppress: c.SuppressAutoEmit,
			FnKind:   b.fnKind,
			FnEvent:  b.fnEvent,
		}
	case ir.Call:
		return CommandContext{Kind: "call", Name: c.Name, Args: c.Args}
	case ir.ErrorCmd:
		return CommandContext{Kind: "error", Code: c.Code}
	case ir.Assign:
		return CommandContext{Kind: "assign", Var: c.Var, Expr: c.Expr}
	case ir.AddAssign:
		return CommandContext{Kind: "add_assign", Var: c.Var, Expr: c.Expr}
	case ir.SubAssign:
		return CommandContext{Kind: "sub_assign", Var: c.Var, Expr: c.Expr}
	case ir.Prepend:
		return CommandContext{Kind: "prepend", Bytes: c.Bytes}
	case ir.PrependParam:
		return CommandContext{Kind: "prepend_param", Name: c.Name}
	case ir.InlineEmit:
		return CommandContext{
			Kind:  "emit",
			Type:  c.Type,
			Mode:  emitModeName(c.Mode),
			Lit:   decodeEmitLit(c.Lit),
			Shape: b.emitShape(c.Type),
		}
	case ir.KeywordsLookup:
		return CommandContext{Kind: "keywords", Name: c.Name, Const: b.kwConst[c.Name]}
	case ir.Conditional:
		cc := CommandContext{Kind: "conditional"}
		for _, cl := range c.Clauses {
			cc.Clauses = append(cc.Clauses, ClauseContext{
				Condition: cl.Condition,
				Commands:  b.buildCommands(cl.Commands, stateIndex, self),
			})
		}
		return cc
	case ir.Noop:
		return CommandContext{Kind: "noop"}
	}
	return CommandContext{Kind: "noop"}
}

// emitShape reports whether an emitted event carries content. Only
// declared content types do; bracket Start/End and unknown names are
// span-only.
func (b *ctxBuilder) emitShape(emitType string) string {
	if emitType == "" {
		return ""
	}
	if b.typeKinds[normalizeName(emitType)] == "content" {
		return "content"
	}
	return "span"
}

// decodeEmitLit resolves the raw literal of a TypeName('lit') emit to its
// byte content.
func decodeEmitLit(lit string) string {
	if lit == "" {
		return ""
	}
	match, err := charclass.Parse(lit)
	if err != nil {
		return lit
	}
	if match.Bytes != "" {
		return match.Bytes
	}
	return string(match.Chars)
}

func emitModeName(m ir.EmitMode) string {
	switch m {
	case ir.EmitMark:
		return "mark"
	case ir.EmitLiteral:
		return "literal"
	}
	return "bare"
}
