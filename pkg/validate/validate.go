// Package validate cross-checks a built IR: undefined references and
// duplicate declarations become errors or warnings. Errors abort
// generation; warnings describe likely grammar mistakes but let it
// proceed.
package validate

import (
	"fmt"
	"strings"

	"github.com/v2-io/descent/pkg/ir"
)

// Issue is one diagnostic with its originating line.
type Issue struct {
	Line int
	Msg  string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Msg)
}

// Report collects the validator's findings.
type Report struct {
	Errors   []Issue
	Warnings []Issue
}

// OK reports whether generation may use this IR.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) errorf(line int, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Issue{Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(line int, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Issue{Line: line, Msg: fmt.Sprintf(format, args...)})
}

var typeKinds = map[string]bool{
	"bracket":  true,
	"content":  true,
	"internal": true,
}

// Builtin emit names that need no type declaration.
var builtinEmits = map[string]bool{
	"Error":   true,
	"Warning": true,
}

// Validate runs every cross-reference check over the IR.
func Validate(p *ir.Parser) *Report {
	r := &Report{}

	types := map[string]bool{}
	for _, t := range p.Types {
		if types[normalizeTypeName(t.Name)] {
			r.errorf(t.Line, "duplicate type %q", t.Name)
			continue
		}
		types[normalizeTypeName(t.Name)] = true
		if !typeKinds[t.Kind] {
			r.errorf(t.Line, "unknown kind %q for type %q", t.Kind, t.Name)
		}
	}

	funcs := map[string]bool{}
	for _, f := range p.Functions {
		if funcs[f.Name] {
			r.warnf(f.Line, "duplicate function %q", f.Name)
		}
		funcs[f.Name] = true
	}

	if p.EntryPoint != "" && !funcs[p.EntryPoint] {
		r.errorf(0, "entry point %q is not a defined function", p.EntryPoint)
	}

	keywords := map[string]bool{}
	for _, k := range p.Keywords {
		if keywords[k.Name] {
			r.warnf(k.Line, "duplicate keywords block %q", k.Name)
		}
		keywords[k.Name] = true
		if k.FallbackFunc != "" && !funcs[k.FallbackFunc] {
			r.warnf(k.Line, "keywords %q fallback calls undefined function %q", k.Name, k.FallbackFunc)
		}
	}

	for _, f := range p.Functions {
		r.checkFunction(p, f, types, funcs, keywords)
	}
	return r
}

func (r *Report) checkFunction(p *ir.Parser, f *ir.Function, types, funcs, keywords map[string]bool) {
	if len(f.States) == 0 {
		r.warnf(f.Line, "function %q has no states", f.Name)
	}
	if f.ReturnType != "" && !types[normalizeTypeName(f.ReturnType)] {
		r.warnf(f.Line, "function %q returns undeclared type %q", f.Name, f.ReturnType)
	}

	stateNames := map[string]bool{}
	for _, s := range f.States {
		stateNames[s.Name] = true
	}

	check := func(line int, cmds []ir.Command) {
		r.checkCommands(f, cmds, line, stateNames, types, funcs, keywords)
	}
	check(f.Line, f.EntryActions)
	check(f.Line, f.EOFHandler)
	for _, s := range f.States {
		if len(s.Cases) == 0 {
			r.warnf(s.Line, "empty state %q in function %q", s.Name, f.Name)
		}
		check(s.Line, s.EOFHandler)
		for _, c := range s.Cases {
			line := c.Line
			if line == 0 {
				line = s.Line
			}
			r.checkCommands(f, c.Commands, line, stateNames, types, funcs, keywords)
		}
	}
}

func (r *Report) checkCommands(f *ir.Function, cmds []ir.Command, line int, stateNames, types, funcs, keywords map[string]bool) {
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case ir.Call:
			if !funcs[c.Name] {
				r.warnf(lineOr(c.Line, line), "call to undefined function %q", c.Name)
			}
		case ir.InlineEmit:
			if !emitTypeKnown(c.Type, types) {
				r.warnf(lineOr(c.Line, line), "emit of undefined type %q", c.Type)
			}
		case ir.Return:
			if c.EmitType != "" && !emitTypeKnown(c.EmitType, types) {
				r.warnf(line, "emit of undefined type %q", c.EmitType)
			}
		case ir.Transition:
			r.checkTransition(f, c, stateNames, lineOr(c.Line, line))
		case ir.KeywordsLookup:
			if !keywords[c.Name] {
				r.warnf(lineOr(c.Line, line), "KEYWORDS(%s) has no matching keywords block", c.Name)
			}
		case ir.Conditional:
			for _, cl := range c.Clauses {
				r.checkCommands(f, cl.Commands, line, stateNames, types, funcs, keywords)
			}
		}
	}
}

// checkTransition validates a >> target: empty self-loops are always fine,
// other targets must use the :state form and name a state of the same
// function.
func (r *Report) checkTransition(f *ir.Function, t ir.Transition, stateNames map[string]bool, line int) {
	if t.Target == "" {
		return
	}
	if !strings.HasPrefix(t.Target, ":") {
		r.warnf(line, "malformed transition target %q in function %q", t.Target, f.Name)
		return
	}
	if !stateNames[t.Target[1:]] {
		r.warnf(line, "transition to undeclared state %q in function %q", t.Target, f.Name)
	}
}

// emitTypeKnown resolves an emit name against the declared types, allowing
// the builtin names and the generated Start/End/Anon suffixes. Types are
// declared snake_case while emits are PascalCase, so both sides compare in
// normalized form.
func emitTypeKnown(name string, types map[string]bool) bool {
	if builtinEmits[name] || types[normalizeTypeName(name)] {
		return true
	}
	for _, suffix := range []string{"Start", "End", "Anon"} {
		if base, ok := strings.CutSuffix(name, suffix); ok && types[normalizeTypeName(base)] {
			return true
		}
	}
	return false
}

// normalizeTypeName folds string_value and StringValue to the same key.
func normalizeTypeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func lineOr(line, fallback int) int {
	if line != 0 {
		return line
	}
	return fallback
}
