package irgen

import (
	"sort"
	"strconv"
	"strings"

	"github.com/v2-io/descent/pkg/charclass"
	"github.com/v2-io/descent/pkg/ir"
)

// collectPrependValues gathers, for every parameter a function passes to
// PREPEND, the literal byte values callers supply for it. The sorted set is
// stored in the callee's PrependValues and passed on to the render context.
func collectPrependValues(p *ir.Parser) {
	for _, callee := range p.Functions {
		prependParams := map[string]bool{}
		walkFunction(callee, func(cmd ir.Command) {
			if pp, ok := cmd.(ir.PrependParam); ok && hasParam(callee, pp.Name) {
				prependParams[pp.Name] = true
			}
		})
		if len(prependParams) == 0 {
			continue
		}
		sets := map[string]map[byte]bool{}
		for _, caller := range p.Functions {
			walkFunction(caller, func(cmd ir.Command) {
				call, ok := cmd.(ir.Call)
				if !ok || call.Name != callee.Name {
					return
				}
				for i, arg := range call.Args {
					if i >= len(callee.Params) || !prependParams[callee.Params[i]] {
						continue
					}
					arg = strings.TrimSpace(arg)
					if strings.HasPrefix(arg, ":") || isNumeric(arg) {
						continue
					}
					match, err := charclass.Parse(arg)
					if err != nil || match.SpecialClass != "" || match.ParamRef != "" {
						continue
					}
					set := sets[callee.Params[i]]
					if set == nil {
						set = map[byte]bool{}
						sets[callee.Params[i]] = set
					}
					src := match.Bytes
					if src == "" {
						src = string(match.Chars)
					}
					for j := 0; j < len(src); j++ {
						set[src[j]] = true
					}
				}
			})
		}
		for name, set := range sets {
			vals := make([]byte, 0, len(set))
			for b := range set {
				vals = append(vals, b)
			}
			sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
			callee.PrependValues[name] = vals
		}
	}
}

// rewriteCallArgs re-emits every call argument in the representation the
// callee's inferred parameter type demands: byte literals for byte,
// byte-string literals for bytes, untouched expressions for i32. The
// numeric literal 0 is the never-match sentinel and maps per target kind.
func rewriteCallArgs(p *ir.Parser) error {
	for _, f := range p.Functions {
		rewrite := func(cmd ir.Command) (ir.Command, error) {
			call, ok := cmd.(ir.Call)
			if !ok {
				return cmd, nil
			}
			callee := p.FindFunction(call.Name)
			if callee == nil {
				return cmd, nil
			}
			args := append([]string(nil), call.Args...)
			for i, arg := range args {
				if i >= len(callee.Params) {
					break
				}
				t := callee.ParamTypes[callee.Params[i]]
				rewritten, err := rewriteArg(arg, t, call.Line)
				if err != nil {
					return nil, err
				}
				args[i] = rewritten
			}
			call.Args = args
			return call, nil
		}
		if err := rewriteFunctionCommands(f, rewrite); err != nil {
			return err
		}
	}
	return nil
}

func rewriteArg(arg string, t ir.ParamType, line int) (string, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, ":") || isSpecialVar(arg) {
		return arg, nil
	}
	if isNumeric(arg) {
		if arg == "0" {
			switch t {
			case ir.TypeBytes:
				return `b""`, nil
			case ir.TypeByte:
				return "0u8", nil
			}
		}
		return arg, nil
	}
	if t == ir.TypeI32 {
		return arg, nil
	}
	match, err := charclass.Parse(arg)
	if err != nil {
		return "", verrf(line, "in call argument %q: %s", arg, err)
	}
	switch t {
	case ir.TypeByte:
		lit, err := charclass.ByteLiteral(match)
		if err != nil {
			return "", verrf(line, "in call argument %q: %s", arg, err)
		}
		return lit, nil
	default:
		lit, err := charclass.BytesLiteral(match)
		if err != nil {
			return "", verrf(line, "in call argument %q: %s", arg, err)
		}
		return lit, nil
	}
}

func isSpecialVar(arg string) bool {
	switch arg {
	case "COL", "LINE", "PREV":
		return true
	}
	return false
}

func isNumeric(s string) bool {
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	return false
}

// rewriteFunctionCommands applies fn to every command in f, in place,
// descending into conditional clauses.
func rewriteFunctionCommands(f *ir.Function, fn func(ir.Command) (ir.Command, error)) error {
	if err := rewriteCommandList(f.EntryActions, fn); err != nil {
		return err
	}
	if err := rewriteCommandList(f.EOFHandler, fn); err != nil {
		return err
	}
	for _, s := range f.States {
		if err := rewriteCommandList(s.EOFHandler, fn); err != nil {
			return err
		}
		for ci := range s.Cases {
			if err := rewriteCommandList(s.Cases[ci].Commands, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func rewriteCommandList(cmds []ir.Command, fn func(ir.Command) (ir.Command, error)) error {
	for i, cmd := range cmds {
		if cond, ok := cmd.(ir.Conditional); ok {
			for _, cl := range cond.Clauses {
				if err := rewriteCommandList(cl.Commands, fn); err != nil {
					return err
				}
			}
			continue
		}
		out, err := fn(cmd)
		if err != nil {
			return err
		}
		cmds[i] = out
	}
	return nil
}

// collectErrorCodes gathers the code of every /error(Code) call, including
// those nested in conditional clauses, deduplicated and sorted.
func collectErrorCodes(p *ir.Parser) []string {
	set := map[string]bool{}
	for _, f := range p.Functions {
		walkFunction(f, func(cmd ir.Command) {
			if e, ok := cmd.(ir.ErrorCmd); ok && e.Code != "" {
				set[e.Code] = true
			}
		})
	}
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
