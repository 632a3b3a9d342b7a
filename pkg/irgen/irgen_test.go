package irgen

import (
	"bytes"
	"testing"

	"github.com/v2-io/descent/pkg/ir"
	"github.com/v2-io/descent/pkg/parser"
)

func build(t *testing.T, src string) *ir.Parser {
	t.Helper()
	m, err := parser.ParseSource(src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	p, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestTypeResolution(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[pair] bracket
|type[text] content
|type[counter] internal
|function[main > text]
|default |-> |>>
|function[aux > pair]
|default |-> |>>
|function[skip > counter]
|default |-> |>>
`)
	if !p.Types[0].EmitsStart || !p.Types[0].EmitsEnd {
		t.Error("bracket type should emit start and end")
	}
	if p.Types[1].EmitsStart || p.Types[1].EmitsEnd {
		t.Error("content type should not emit start/end")
	}
	if !p.Functions[0].EmitsEvents {
		t.Error("content-returning function should emit events")
	}
	if !p.Functions[1].EmitsEvents {
		t.Error("bracket-returning function should emit events")
	}
	if p.Functions[2].EmitsEvents {
		t.Error("internal-returning function should not emit events")
	}
}

func TestScanInferenceWithNewlineInjection(t *testing.T) {
	// Boundary scenario: c['|'] plus a self-looping default gives
	// scan_chars ['\n' '|'] with the newline injected.
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[text] content
|function[pipe]
|default |-> |return
|function[main > text]
|c['|'] |/pipe |>>
|default |-> |>>
`)
	st := p.FindFunction("main").States[0]
	if string(st.ScanChars) != "\n|" {
		t.Errorf("ScanChars: expected %q, got %q", "\n|", string(st.ScanChars))
	}
	if !st.NewlineInjected {
		t.Error("NewlineInjected should be true")
	}
	if !st.IsSelfLooping {
		t.Error("IsSelfLooping should be true")
	}
}

func TestScanNotInferredWithSideEffects(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[text] content
|function[main > text]
|c['|'] |-> |>>
|default |-> |depth = 1 |>>
`)
	st := p.FindFunction("main").States[0]
	if len(st.ScanChars) != 0 {
		t.Errorf("default with side effects must not scan, got %q", string(st.ScanChars))
	}
}

func TestScanNoInjectionWhenNewlinePresent(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[text] content
|function[main > text]
|c[NL] |-> |>>
|c['|'] |-> |>>
|default |-> |>>
`)
	st := p.FindFunction("main").States[0]
	if string(st.ScanChars) != "\n|" {
		t.Errorf("ScanChars: expected %q, got %q", "\n|", string(st.ScanChars))
	}
	if st.NewlineInjected {
		t.Error("NewlineInjected should be false when \\n is already matched")
	}
}

func TestExpectsCharInference(t *testing.T) {
	// A content function returning only on '"' is flagged unclosed-aware,
	// and TERM before return marks content flushing.
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[string_value] content
|function[main > string_value]
|c['"'] |term |-> |return
|default |-> |>>
`)
	f := p.FindFunction("main")
	if !f.HasExpectsChar || f.ExpectsChar != '"' {
		t.Fatalf("expected expects_char '\"', got %v %q", f.HasExpectsChar, string(f.ExpectsChar))
	}
	if !f.EmitsContentOnClose {
		t.Error("EmitsContentOnClose should be true")
	}
}

func TestExpectsCharAbsentOnMixedReturns(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[text] content
|function[main > text]
|c['"'] |return
|c['|'] |return
|default |-> |>>
`)
	f := p.FindFunction("main")
	if f.HasExpectsChar {
		t.Error("expects_char must be absent when return cases disagree")
	}
}

func TestParamTypeDirectInference(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[main(:q :flag :acc)]
|c[:q] |-> |return
|if[flag == 0] |return
|default |-> |PREPEND(:acc) |>>
`)
	f := p.FindFunction("main")
	if f.ParamTypes["q"] != ir.TypeByte {
		t.Errorf("q: expected byte, got %s", f.ParamTypes["q"])
	}
	if f.ParamTypes["flag"] != ir.TypeI32 {
		t.Errorf("flag: expected i32 (compared to 0), got %s", f.ParamTypes["flag"])
	}
	if f.ParamTypes["acc"] != ir.TypeBytes {
		t.Errorf("acc: expected bytes, got %s", f.ParamTypes["acc"])
	}
}

func TestParamTypeCharComparison(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[main(:p)]
|if[p == '|'] |return
|default |-> |>>
`)
	f := p.FindFunction("main")
	if f.ParamTypes["p"] != ir.TypeByte {
		t.Errorf("p: expected byte from char comparison, got %s", f.ParamTypes["p"])
	}
}

func TestParamTypeFixpointPropagation(t *testing.T) {
	// Boundary scenario: bar(:x) calls foo(:x) where foo uses c[:x];
	// the byte type flows from callee back to caller.
	p := build(t, `
|parser[doc]
|entry-point[bar]
|function[foo(:x)]
|c[:x] |-> |return
|default |-> |>>
|function[bar(:x)]
|/foo(:x) |return
`)
	if got := p.FindFunction("foo").ParamTypes["x"]; got != ir.TypeByte {
		t.Errorf("foo.x: expected byte, got %s", got)
	}
	if got := p.FindFunction("bar").ParamTypes["x"]; got != ir.TypeByte {
		t.Errorf("bar.x: expected byte after fix-point, got %s", got)
	}
}

func TestEmptyClassArgumentForcesBytes(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[child(:stop)]
|default |-> |>>
|function[main]
|/child(<>) |return
`)
	if got := p.FindFunction("child").ParamTypes["stop"]; got != ir.TypeBytes {
		t.Errorf("stop: expected bytes from <> argument, got %s", got)
	}
}

func TestLocalInferenceAndInitHoisting(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[main]
|depth = 1
|c['{'] |-> |depth += 1 |>>
|c['}'] |-> |depth -= 1 |>>
|default |-> |>>
`)
	f := p.FindFunction("main")
	if len(f.Locals) != 1 || f.Locals[0] != "depth" {
		t.Fatalf("expected locals [depth], got %v", f.Locals)
	}
	if f.LocalInitValues["depth"] != "1" {
		t.Errorf("depth init: expected 1, got %q", f.LocalInitValues["depth"])
	}
	if len(f.EntryActions) != 0 {
		t.Errorf("hoisted assignment should leave entry actions, got %d", len(f.EntryActions))
	}
}

func TestInlineEmitReturnDedup(t *testing.T) {
	// Boundary scenario: Float(USE_MARK) followed by a bare return in a
	// CONTENT function must not also auto-emit the Integer event.
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[integer] content
|type[float] content
|function[main > integer]
|c['.'] |Float(USE_MARK) |return
|default |-> |>>
`)
	cmds := p.FindFunction("main").States[0].Cases[0].Commands
	ret, ok := cmds[1].(ir.Return)
	if !ok {
		t.Fatalf("expected Return, got %T", cmds[1])
	}
	if !ret.SuppressAutoEmit {
		t.Error("SuppressAutoEmit should be set after an inline emit")
	}
}

func TestCustomErrorCodes(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[main]
|if[depth == 0] /error(Underflow)
|c['!'] |/error(BadBang) |->
|c['?'] |/error(BadBang) |->
|default |-> |>>
`)
	want := []string{"BadBang", "Underflow"}
	if len(p.CustomErrorCodes) != len(want) {
		t.Fatalf("expected %v, got %v", want, p.CustomErrorCodes)
	}
	for i, code := range want {
		if p.CustomErrorCodes[i] != code {
			t.Errorf("codes[%d]: expected %q, got %q", i, code, p.CustomErrorCodes[i])
		}
	}
}

func TestCallArgumentRewriting(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[string_value(:quote :stop)]
|c[:quote] |-> |return
|default |-> |PREPEND(:stop) |>>
|function[main]
|c['"'] |/string_value(DQ, '-') |>>
|c['0'] |/string_value(0, 0) |>>
|default |-> |>>
`)
	f := p.FindFunction("main")
	call := f.States[0].Cases[0].Commands[0].(ir.Call)
	if call.Args[0] != `b'"'` {
		t.Errorf("byte arg: expected b'\"', got %q", call.Args[0])
	}
	if call.Args[1] != `b"-"` {
		t.Errorf("bytes arg: expected b\"-\", got %q", call.Args[1])
	}
	call = f.States[0].Cases[1].Commands[0].(ir.Call)
	if call.Args[0] != "0u8" {
		t.Errorf("zero byte arg: expected 0u8, got %q", call.Args[0])
	}
	if call.Args[1] != `b""` {
		t.Errorf("zero bytes arg: expected b\"\", got %q", call.Args[1])
	}
}

func TestPrependValueCollection(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[child(:acc)]
|default |-> |PREPEND(:acc) |>>
|function[main]
|c['-'] |/child('-') |>>
|c['+'] |/child('+') |>>
|default |-> |>>
`)
	child := p.FindFunction("child")
	if string(child.PrependValues["acc"]) != "+-" {
		t.Errorf("PrependValues: expected %q, got %q", "+-", string(child.PrependValues["acc"]))
	}
}

func TestAdvanceToValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"special class", "|function[f]\n|c['x'] |->[XID_START]"},
		{"param ref", "|function[f(:p)]\n|c['x'] |->[:p]"},
		{"too many bytes", "|function[f]\n|c['x'] |->['a' 'b' 'c' 'd' 'e' 'f' 'g']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parser.ParseSource(tt.src)
			if err != nil {
				t.Fatalf("ParseSource: %v", err)
			}
			if _, err := Build(m); err == nil {
				t.Fatal("expected ValidationError, got nil")
			} else if _, ok := err.(*ValidationError); !ok {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestBareIdentifierCollidesWithParam(t *testing.T) {
	src := `
|parser[doc]
|entry-point[main]
|function[main(:stop)]
|c['x'] |/main(stop) |>>
|default |-> |>>
`
	m, err := parser.ParseSource(src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	_, err = Build(m)
	if err == nil {
		t.Fatal("expected ValidationError for bare identifier, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestAdvanceToLowering(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|function[main]
|c['<'] |->['>' NL] |>>
|default |-> |>>
`)
	cmds := p.FindFunction("main").States[0].Cases[0].Commands
	at, ok := cmds[0].(ir.AdvanceTo)
	if !ok {
		t.Fatalf("expected AdvanceTo, got %T", cmds[0])
	}
	if string(at.Bytes) != "\n>" {
		t.Errorf("AdvanceTo bytes: expected %q, got %q", "\n>", string(at.Bytes))
	}
}

func TestIRPrinterSmoke(t *testing.T) {
	p := build(t, `
|parser[doc]
|entry-point[main]
|type[text] content
|function[main > text]
|c['|'] |term |-> |return
|default |-> |>>
`)
	var buf bytes.Buffer
	ir.NewPrinter(&buf).PrintParser(p)
	out := buf.String()
	for _, want := range []string{"parser doc", "function main", "expects_char"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("printer output missing %q:\n%s", want, out)
		}
	}
}
