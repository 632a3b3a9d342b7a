package ast

import (
	"fmt"
	"io"
	"strings"
)

// Printer writes a human-readable dump of the AST.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintMachine prints a complete machine.
func (p *Printer) PrintMachine(m *Machine) {
	p.printf("parser %s entry=%s", m.Name, m.EntryPoint)
	for _, t := range m.Types {
		p.printf("type %s %s", t.Name, t.Kind)
	}
	for _, f := range m.Functions {
		p.printFunction(&f)
	}
	for _, k := range m.Keywords {
		p.printKeywords(&k)
	}
}

func (p *Printer) printFunction(f *Function) {
	sig := f.Name
	if len(f.Params) > 0 {
		sig += "(:" + strings.Join(f.Params, " :") + ")"
	}
	if f.ReturnType != "" {
		sig += " > " + f.ReturnType
	}
	p.printf("function %s", sig)
	p.indent++
	for _, c := range f.EntryActions {
		p.printf("entry %s", commandString(c))
	}
	for _, s := range f.States {
		p.printState(&s)
	}
	if len(f.EOFHandler) > 0 {
		p.printf("eof")
		p.indent++
		for _, c := range f.EOFHandler {
			p.printf("%s", commandString(c))
		}
		p.indent--
	}
	p.indent--
}

func (p *Printer) printState(s *State) {
	name := s.Name
	if name == "" {
		name = "(main)"
	}
	p.printf("state %s", name)
	p.indent++
	for _, c := range s.Cases {
		p.printCase(&c)
	}
	if len(s.EOFHandler) > 0 {
		p.printf("eof")
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
	case c.Chars != "":
		sel = "c[" + c.Chars + "]"
	default:
		sel = "(bare)"
	}
	if c.Substate != "" {
		sel += " ." + c.Substate
	}
	p.printf("case %s", sel)
	p.indent++
	for _, cmd := range c.Commands {
		p.printf("%s", commandString(cmd))
	}
	p.indent--
}

func (p *Printer) printKeywords(k *Keywords) {
	p.printf("keywords %s fallback=/%s(%s)", k.Name, k.FallbackFunc, strings.Join(k.FallbackArgs, ", "))
	p.indent++
	for _, m := range k.Mappings {
		p.printf("%s -> %s", m.Keyword, m.EventType)
	}
	p.indent--
}

func (p *Printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func commandString(c Command) string {
	switch cmd := c.(type) {
	case Advance:
		return "advance"
	case AdvanceTo:
		return "advance_to[" + cmd.Chars + "]"
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
		if cmd.EmitType == "" {
			return "return"
		}
		return "return " + emitString(cmd.EmitType, cmd.EmitMode, cmd.EmitLit)
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
		return "prepend(" + cmd.Chars + ")"
	case PrependParam:
		return "prepend(:" + cmd.Name + ")"
	case InlineEmit:
		return "emit " + emitString(cmd.Type, cmd.Mode, cmd.Lit)
	case KeywordsLookup:
		return "keywords(" + cmd.Name + ")"
	case Conditional:
		parts := make([]string, 0, len(cmd.Clauses))
		for _, cl := range cmd.Clauses {
			inner := make([]string, 0, len(cl.Commands))
			for _, ic := range cl.Commands {
				inner = append(inner, commandString(ic))
			}
			parts = append(parts, "if["+cl.Condition+"] "+strings.Join(inner, "; "))
		}
		return strings.Join(parts, " | ")
	case Noop:
		return "noop"
	}
	return "?"
}

func emitString(typ string, mode EmitMode, lit string) string {
	switch mode {
	case EmitMark:
		return typ + "(USE_MARK)"
	case EmitLiteral:
		return typ + "('" + lit + "')"
	}
	return typ
}
