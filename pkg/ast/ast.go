// Package ast defines the structural tree built from a .desc token stream:
// machine, types, functions, states, cases, and commands. Nodes are plain
// value records; semantic analysis happens later in irgen.
package ast

// Machine is the root of a parsed specification.
type Machine struct {
	Name       string
	EntryPoint string
	Types      []TypeDecl
	Functions  []Function
	Keywords   []Keywords
}

// TypeDecl declares an event type. Kind is bracket, content, or internal.
type TypeDecl struct {
	Name string
	Kind string
	Line int
}

// Function is one parse function: optional return type, parameters,
// entry actions run before the first state, states, and an optional
// EOF handler.
type Function struct {
	Name         string
	ReturnType   string
	Params       []string
	EntryActions []Command
	States       []State
	EOFHandler   []Command
	Line         int
}

// State is an ordered list of cases; first match wins.
type State struct {
	Name       string
	Cases      []Case
	EOFHandler []Command
	Line       int
}

// Case carries at most one selector: Chars (a raw character-class literal,
// class name, or :param reference), Condition, or IsDefault. A case with
// no selector is a bare-action case, legal only first in its state.
type Case struct {
	Chars     string
	Condition string
	IsDefault bool
	Substate  string
	Commands  []Command
	Line      int
}

// Keywords is a keyword-lookup block: mappings from keyword text to event
// type, plus the fallback call used when no keyword matches.
type Keywords struct {
	Name         string
	FallbackFunc string
	FallbackArgs []string
	Mappings     []KeywordMapping
	Line         int
}

// KeywordMapping pairs one keyword with the event type it emits.
type KeywordMapping struct {
	Keyword   string
	EventType string
}

// EmitMode distinguishes the three inline-emit argument forms.
type EmitMode int

const (
	EmitBare    EmitMode = iota // TypeName
	EmitMark                    // TypeName(USE_MARK)
	EmitLiteral                 // TypeName('lit')
)

// Command is the interface for parser actions.
type Command interface {
	implCommand()
}

// Advance consumes the current byte.
type Advance struct{}

// AdvanceTo consumes bytes until one of the target set is seen.
// Chars is the raw character-class text, resolved by irgen.
type AdvanceTo struct {
	Chars string
	Line  int
}

// Mark records the current offset as the start of accumulated content.
type Mark struct{}

// Term fixes the end of accumulated content at the current offset plus
// Offset (usually zero or negative).
type Term struct {
	Offset int
}

// Transition moves to another state of the same function. An empty Target
// is a self-loop.
type Transition struct {
	Target string
	Line   int
}

// Return leaves the function, optionally overriding the auto-emitted
// event with an inline emit spec.
type Return struct {
	EmitType string
	EmitMode EmitMode
	EmitLit  string
}

// Call invokes another parse function.
type Call struct {
	Name string
	Args []string
	Line int
}

// ErrorCmd emits an error event with the given code.
type ErrorCmd struct {
	Code string
	Line int
}

// Assign sets a local or parameter.
type Assign struct {
	Var  string
	Expr string
}

// AddAssign increments a local or parameter.
type AddAssign struct {
	Var  string
	Expr string
}

// SubAssign decrements a local or parameter.
type SubAssign struct {
	Var  string
	Expr string
}

// Prepend pushes literal bytes into the accumulation buffer ahead of the
// next TERM. Chars is raw character-class text.
type Prepend struct {
	Chars string
	Line  int
}

// PrependParam pushes a byte-slice parameter into the accumulation buffer.
type PrependParam struct {
	Name string
	Line int
}

// InlineEmit issues an event without returning from the function.
type InlineEmit struct {
	Type string
	Mode EmitMode
	Lit  string
	Line int
}

// KeywordsLookup matches the accumulated slice against a keywords block.
type KeywordsLookup struct {
	Name string
	Line int
}

// Conditional guards a run of commands; clauses test in order.
type Conditional struct {
	Clauses []CondClause
}

// CondClause is one arm of a Conditional. An empty Condition always fires.
type CondClause struct {
	Condition string
	Commands  []Command
}

// Noop does nothing.
type Noop struct{}

func (Advance) implCommand()        {}
func (AdvanceTo) implCommand()      {}
func (Mark) implCommand()           {}
func (Term) implCommand()           {}
func (Transition) implCommand()     {}
func (Return) implCommand()         {}
func (Call) implCommand()           {}
func (ErrorCmd) implCommand()       {}
func (Assign) implCommand()         {}
func (AddAssign) implCommand()      {}
func (SubAssign) implCommand()      {}
func (Prepend) implCommand()        {}
func (PrependParam) implCommand()   {}
func (InlineEmit) implCommand()     {}
func (KeywordsLookup) implCommand() {}
func (Conditional) implCommand()    {}
func (Noop) implCommand()           {}
