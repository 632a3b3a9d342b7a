package ir

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Printer writes a human-readable dump of the IR for the debug verb.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new IR printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintParser prints a complete IR tree.
func (p *Printer) PrintParser(ip *Parser) {
	p.printf("parser %s entry=%s", ip.Name, ip.EntryPoint)
	for _, t := range ip.Types {
		p.printf("type %s %s start=%v end=%v", t.Name, t.Kind, t.EmitsStart, t.EmitsEnd)
	}
	if len(ip.CustomErrorCodes) > 0 {
		p.printf("error codes: %s", strings.Join(ip.CustomErrorCodes, ", "))
	}
	for _, f := range ip.Functions {
		p.printFunction(f)
	}
	for _, k := range ip.Keywords {
		p.printf("keywords %s (%s) fallback=/%s", k.Name, k.ConstName, k.FallbackFunc)
	}
}

func (p *Printer) printFunction(f *Function) {
	sig := f.Name
	if len(f.Params) > 0 {
		parts := make([]string, len(f.Params))
		for i, name := range f.Params {
			parts[i] = fmt.Sprintf(":%s %s", name, f.ParamTypes[name])
		}
		sig += "(" + strings.Join(parts, ", ") + ")"
	}
	if f.ReturnType != "" {
		sig += " > " + f.ReturnType
	}
	p.printf("function %s", sig)
	p.indent++
	if len(f.Locals) > 0 {
		p.printf("locals: %s", strings.Join(f.Locals, ", "))
	}
	if len(f.LocalInitValues) > 0 {
		names := make([]string, 0, len(f.LocalInitValues))
		for name := range f.LocalInitValues {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p.printf("init %s = %s", name, f.LocalInitValues[name])
		}
	}
	if f.HasExpectsChar {
		p.printf("expects_char=%q content_on_close=%v", string(f.ExpectsChar), f.EmitsContentOnClose)
	}
	for _, c := range f.EntryActions {
		p.printf("entry %s", commandString(c))
	}
	for _, s := range f.States {
		p.printState(s)
	}
	if len(f.EOFHandler) > 0 {
		p.printf("eof (%d commands)", len(f.EOFHandler))
	}
	p.indent--
}

func (p *Printer) printState(s *State) {
	name := s.Name
	if name == "" {
		name = "(main)"
	}
	var flags []string
	if len(s.ScanChars) > 0 {
		flags = append(flags, fmt.Sprintf("scan=%q", string(s.ScanChars)))
	}
	if s.NewlineInjected {
		flags = append(flags, "nl-injected")
	}
	if s.IsSelfLooping {
		flags = append(flags, "self-loop")
	}
	if s.IsUnconditional {
		flags = append(flags, "unconditional")
	}
	p.printf("state %s %s", name, strings.Join(flags, " "))
	p.indent++
	for _, c := range s.Cases {
		p.printCase(&c)
	}
	p.indent--
}

func (p *Printer) printCase(c *Case) {
	var sel string
	switch {
	case c.IsDefault:
		sel = "default"
	case c.Condition != "":
		sel = "if[" + c.Condition + "]"
	case c.HasMatch && c.Match.SpecialClass != "":
		sel = c.Match.SpecialClass
	case c.HasMatch && c.Match.ParamRef != "":
		sel = ":" + c.Match.ParamRef
	case c.HasMatch:
		sel = fmt.Sprintf("c%q", string(c.Match.Chars))
	default:
		sel = "(bare)"
	}
	p.printf("case %s", sel)
	p.indent++
	for _, cmd := range c.Commands {
		p.printf("%s", commandString(cmd))
	}
	p.indent--
}

func (p *Printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), strings.TrimRight(fmt.Sprintf(format, args...), " "))
}

func commandString(c Command) string {
	switch cmd := c.(type) {
	case Advance:
		return "advance"
	case AdvanceTo:
		return fmt.Sprintf("advance_to%q", string(cmd.Bytes))
	case Mark:
		return "mark"
	case Term:
		return fmt.Sprintf("term(%d)", cmd.Offset)
	case Transition:
		if cmd.Target == "" {
			return "transition(self)"
		}
		return "transition(" + cmd.Target + ")"
	case Return:
		s := "return"
		if cmd.EmitType != "" {
			s += " " + cmd.EmitType
		}
		if cmd.SuppressAutoEmit {
			s += " [no auto emit]"
		}
		return s
	case Call:
		return "/" + cmd.Name + "(" + strings.Join(cmd.Args, ", ") + ")"
	case ErrorCmd:
		return "error(" + cmd.Code + ")"
	case Assign:
		return cmd.Var + " = " + cmd.Expr
	case AddAssign:
		return cmd.Var + " += " + cmd.Expr
	case SubAssign:
		return cmd.Var + " -= " + cmd.Expr
	case Prepend:
		return fmt.Sprintf("prepend%q", string(cmd.Bytes))
	case PrependParam:
		return "prepend(:" + cmd.Name + ")"
	case InlineEmit:
		return "emit " + cmd.Type
	case KeywordsLookup:
		return "keywords(" + cmd.Name + ")"
	case Conditional:
		return fmt.Sprintf("conditional(%d clauses)", len(cmd.Clauses))
	case Noop:
		return "noop"
	}
	return "?"
}
