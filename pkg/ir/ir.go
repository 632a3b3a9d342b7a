// Package ir defines the semantic intermediate representation built from
// the AST. IR nodes carry the inferred facts the generator renders from:
// parameter types, locals, SCAN sets, expected terminators, and rewritten
// call arguments.
package ir

import "github.com/v2-io/descent/pkg/charclass"

// Parser is the IR root.
type Parser struct {
	Name             string
	EntryPoint       string
	Types            []TypeInfo
	Functions        []*Function
	Keywords         []KeywordTable
	CustomErrorCodes []string
}

// TypeInfo is a resolved event type declaration.
type TypeInfo struct {
	Name       string
	Kind       string
	EmitsStart bool
	EmitsEnd   bool
	Line       int
}

// ParamType is the inferred type of a function parameter. The lattice is
// I32 < Byte and I32 < Bytes; Byte and Bytes never join.
type ParamType int

const (
	TypeI32 ParamType = iota
	TypeByte
	TypeBytes
)

func (t ParamType) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeBytes:
		return "bytes"
	}
	return "i32"
}

// Function extends the AST function with inferred fields.
type Function struct {
	Name       string
	ReturnType string
	Params     []string
	ParamTypes map[string]ParamType

	Locals          []string // sorted variable names, all i32
	LocalInitValues map[string]string

	EntryActions []Command
	States       []*State
	EOFHandler   []Command

	EmitsEvents         bool // return type is BRACKET or CONTENT
	HasExpectsChar      bool
	ExpectsChar         byte // the unique byte every return-bearing case matches
	EmitsContentOnClose bool // a return-bearing case runs TERM before return

	PrependValues map[string][]byte // param -> literal bytes seen at call sites

	Line int
}

// FindFunction returns the function with the given name, or nil.
func (p *Parser) FindFunction(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// State extends the AST state with SCAN facts.
type State struct {
	Name            string
	Cases           []Case
	EOFHandler      []Command
	ScanChars       []byte // bytes eligible for multi-byte search, empty if none
	IsSelfLooping   bool
	HasDefault      bool
	IsUnconditional bool
	NewlineInjected bool
	Line            int
}

// Case is a resolved case: the selector literal has been run through the
// character-class parser.
type Case struct {
	Match     charclass.Result
	HasMatch  bool
	Condition string
	IsDefault bool
	Substate  string
	Commands  []Command
	Line      int
}

// KeywordTable is a keywords block with its generated constant name.
type KeywordTable struct {
	Name         string
	ConstName    string
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
	EmitBare EmitMode = iota
	EmitMark
	EmitLiteral
)

// Command is the interface for lowered parser actions.
type Command interface {
	implCommand()
}

// Advance consumes the current byte.
type Advance struct{}

// AdvanceTo consumes bytes until one of Bytes is seen; capped at six for
// the chained multi-byte search the generated code uses.
type AdvanceTo struct {
	Bytes []byte
}

// Mark records the current offset.
type Mark struct{}

// Term fixes the end of accumulated content.
type Term struct {
	Offset int
}

// Transition moves to another state; empty Target is a self-loop.
type Transition struct {
	Target string
	Line   int
}

// Return leaves the function. SuppressAutoEmit is set when an inline emit
// earlier in the case already issued the function's event.
type Return struct {
	EmitType         string
	EmitMode         EmitMode
	EmitLit          string
	SuppressAutoEmit bool
}

// Call invokes another parse function with rewritten arguments.
type Call struct {
	Name string
	Args []string
	Line int
}

// ErrorCmd emits an error event.
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

// Prepend pushes literal bytes into the accumulation buffer.
type Prepend struct {
	Bytes []byte
}

// PrependParam pushes a byte-slice parameter into the accumulation buffer.
type PrependParam struct {
	Name string
}

// InlineEmit issues an event without returning.
type InlineEmit struct {
	Type string
	Mode EmitMode
	Lit  string
	Line int
}

// KeywordsLookup matches accumulated content against a keyword table.
type KeywordsLookup struct {
	Name string
	Line int
}

// Conditional guards nested command runs.
type Conditional struct {
	Clauses []CondClause
}

// CondClause is one arm of a Conditional.
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
