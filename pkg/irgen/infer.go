package irgen

import (
	"sort"
	"strconv"
	"strings"

	"github.com/v2-io/descent/pkg/ir"
)

// walkCommands visits every command in the list, descending into
// conditional clauses.
func walkCommands(cmds []ir.Command, visit func(ir.Command)) {
	for _, cmd := range cmds {
		visit(cmd)
		if cond, ok := cmd.(ir.Conditional); ok {
			for _, cl := range cond.Clauses {
				walkCommands(cl.Commands, visit)
			}
		}
	}
}

// walkFunction visits every command of a function: entry actions, case
// bodies, and EOF handlers.
func walkFunction(f *ir.Function, visit func(ir.Command)) {
	walkCommands(f.EntryActions, visit)
	walkCommands(f.EOFHandler, visit)
	for _, s := range f.States {
		walkCommands(s.EOFHandler, visit)
		for _, c := range s.Cases {
			walkCommands(c.Commands, visit)
		}
	}
}

// inferScan marks a state for SIMD multi-byte search when its default case
// only advances and self-loops, and the literal bytes of the remaining
// cases fit the scan arity.
func inferScan(s *ir.State) {
	var def *ir.Case
	for i := range s.Cases {
		if s.Cases[i].IsDefault {
			def = &s.Cases[i]
			break
		}
	}
	if def == nil {
		return
	}
	hasAdvance := false
	for _, cmd := range def.Commands {
		switch c := cmd.(type) {
		case ir.Advance:
			hasAdvance = true
		case ir.Transition:
			if c.Target != "" {
				return
			}
		default:
			return
		}
	}
	if !hasAdvance {
		return
	}

	set := map[byte]bool{}
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.IsDefault || c.Condition != "" {
			continue
		}
		if !c.HasMatch || c.Match.SpecialClass != "" || c.Match.ParamRef != "" {
			return
		}
		for _, b := range c.Match.Chars {
			set[b] = true
		}
	}
	if len(set) == 0 || len(set) > advanceToMax {
		return
	}
	chars := make([]byte, 0, len(set))
	for b := range set {
		chars = append(chars, b)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	s.ScanChars = chars
}

// injectNewline prepends '\n' to a scan set that lacks it, so emitted
// scans stop at line boundaries and line/column tracking stays exact.
func injectNewline(s *ir.State) {
	if len(s.ScanChars) == 0 || len(s.ScanChars) >= advanceToMax {
		return
	}
	for _, b := range s.ScanChars {
		if b == '\n' {
			return
		}
	}
	s.ScanChars = append([]byte{'\n'}, s.ScanChars...)
	s.NewlineInjected = true
}

// inferExpectsChar finds the unique single byte on which every
// return-bearing case of the function matches. When present it drives the
// unclosed-at-EOF error in generated code; EmitsContentOnClose additionally
// flushes accumulated content first when any such case runs TERM before
// returning.
func inferExpectsChar(f *ir.Function) {
	var expects byte
	found := false
	contentOnClose := false
	for _, s := range f.States {
		for _, c := range s.Cases {
			if !caseReturns(c.Commands) {
				continue
			}
			if !c.HasMatch || c.Match.SpecialClass != "" || c.Match.ParamRef != "" || len(c.Match.Chars) != 1 {
				return
			}
			b := c.Match.Chars[0]
			if found && b != expects {
				return
			}
			expects = b
			found = true
			if termBeforeReturn(c.Commands) {
				contentOnClose = true
			}
		}
	}
	if found {
		f.HasExpectsChar = true
		f.ExpectsChar = expects
		f.EmitsContentOnClose = contentOnClose
	}
}

func caseReturns(cmds []ir.Command) bool {
	for _, cmd := range cmds {
		if _, ok := cmd.(ir.Return); ok {
			return true
		}
	}
	return false
}

func termBeforeReturn(cmds []ir.Command) bool {
	for _, cmd := range cmds {
		switch cmd.(type) {
		case ir.Term:
			return true
		case ir.Return:
			return false
		}
	}
	return false
}

// inferParamTypes assigns byte/bytes/i32 to every parameter. Direct
// evidence comes from c[:param] selectors, character comparisons in
// conditions, and PREPEND usage; empty-class call arguments force bytes;
// a fix-point pass then flows types from callees back to callers.
func inferParamTypes(p *ir.Parser) {
	for _, f := range p.Functions {
		for _, s := range f.States {
			for _, c := range s.Cases {
				if c.HasMatch && c.Match.ParamRef != "" && hasParam(f, c.Match.ParamRef) {
					f.ParamTypes[c.Match.ParamRef] = ir.TypeByte
				}
				if c.Condition != "" {
					markCharComparisons(f, c.Condition)
				}
			}
		}
		walkFunction(f, func(cmd ir.Command) {
			switch c := cmd.(type) {
			case ir.PrependParam:
				if hasParam(f, c.Name) {
					f.ParamTypes[c.Name] = ir.TypeBytes
				}
			case ir.Conditional:
				for _, cl := range c.Clauses {
					if cl.Condition != "" {
						markCharComparisons(f, cl.Condition)
					}
				}
			}
		})
	}

	// Empty-class arguments pin the callee parameter to bytes.
	for _, f := range p.Functions {
		walkFunction(f, func(cmd ir.Command) {
			call, ok := cmd.(ir.Call)
			if !ok {
				return
			}
			callee := p.FindFunction(call.Name)
			if callee == nil {
				return
			}
			for i, arg := range call.Args {
				if i < len(callee.Params) && strings.TrimSpace(arg) == "<>" {
					callee.ParamTypes[callee.Params[i]] = ir.TypeBytes
				}
			}
		})
	}

	// Fix-point: flow callee parameter types back to caller arguments.
	// Each step only raises a type from the i32 default, so iteration
	// terminates.
	for changed := true; changed; {
		changed = false
		for _, f := range p.Functions {
			walkFunction(f, func(cmd ir.Command) {
				call, ok := cmd.(ir.Call)
				if !ok {
					return
				}
				callee := p.FindFunction(call.Name)
				if callee == nil {
					return
				}
				for i, arg := range call.Args {
					if i >= len(callee.Params) {
						break
					}
					name, ok := paramRefArg(arg)
					if !ok || !hasParam(f, name) {
						continue
					}
					t := callee.ParamTypes[callee.Params[i]]
					if t != ir.TypeI32 && f.ParamTypes[name] == ir.TypeI32 {
						f.ParamTypes[name] = t
						changed = true
					}
				}
			})
		}
	}
}

func paramRefArg(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, ":") && len(arg) > 1 {
		return arg[1:], true
	}
	return "", false
}

// markCharComparisons types a parameter byte when a condition compares it
// to a character literal. Comparisons against 0 are numeric flag tests and
// do not count.
func markCharComparisons(f *ir.Function, cond string) {
	for _, name := range f.Params {
		idx := 0
		for {
			i := strings.Index(cond[idx:], name)
			if i < 0 {
				break
			}
			i += idx
			idx = i + len(name)
			if i > 0 && isWordByte(cond[i-1]) {
				continue
			}
			rest := cond[i+len(name):]
			if len(rest) > 0 && isWordByte(rest[0]) {
				continue
			}
			rest = strings.TrimLeft(rest, " \t")
			if !strings.HasPrefix(rest, "==") && !strings.HasPrefix(rest, "!=") {
				continue
			}
			rest = strings.TrimLeft(rest[2:], " \t")
			if strings.HasPrefix(rest, "'") {
				f.ParamTypes[name] = ir.TypeByte
			}
		}
	}
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

// inferLocals records every assigned variable that is not a parameter.
// Entry-action assignments with integer literals become declaration
// initialisers instead of separate stores.
func inferLocals(f *ir.Function) {
	seen := map[string]bool{}
	walkFunction(f, func(cmd ir.Command) {
		switch c := cmd.(type) {
		case ir.Assign:
			if !hasParam(f, c.Var) {
				seen[c.Var] = true
			}
		case ir.AddAssign:
			if !hasParam(f, c.Var) {
				seen[c.Var] = true
			}
		case ir.SubAssign:
			if !hasParam(f, c.Var) {
				seen[c.Var] = true
			}
		}
	})
	f.Locals = make([]string, 0, len(seen))
	for name := range seen {
		f.Locals = append(f.Locals, name)
	}
	sort.Strings(f.Locals)

	var kept []ir.Command
	for _, cmd := range f.EntryActions {
		if a, ok := cmd.(ir.Assign); ok && seen[a.Var] {
			if _, err := strconv.Atoi(a.Expr); err == nil {
				if _, dup := f.LocalInitValues[a.Var]; !dup {
					f.LocalInitValues[a.Var] = a.Expr
					continue
				}
			}
		}
		kept = append(kept, cmd)
	}
	f.EntryActions = kept
}

// fixupInlineEmitReturns suppresses the auto event on a bare return that
// follows an inline emit in the same case, so one return cannot produce
// two events.
func fixupInlineEmitReturns(f *ir.Function) {
	for _, s := range f.States {
		for ci := range s.Cases {
			cmds := s.Cases[ci].Commands
			sawEmit := false
			for i, cmd := range cmds {
				switch c := cmd.(type) {
				case ir.InlineEmit:
					sawEmit = true
				case ir.Return:
					if sawEmit && c.EmitType == "" {
						c.SuppressAutoEmit = true
						cmds[i] = c
					}
				}
			}
		}
	}
}
