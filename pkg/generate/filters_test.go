package generate

import (
	"reflect"
	"testing"
)

func TestPascalCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"string_value", "StringValue"},
		{"stringValue", "StringValue"},
		{"StringValue", "StringValue"},
		{"string-value", "StringValue"},
		{"string value", "StringValue"},
		{"x", "X"},
		{"main", "Main"},
		{"xml_1_0", "Xml10"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := PascalCase(tt.input); got != tt.want {
				t.Errorf("PascalCase(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPascalCaseIdempotent(t *testing.T) {
	inputs := []string{"string_value", "camelCase", "AlreadyPascal", "a_b_c", "kebab-case"}
	for _, input := range inputs {
		once := PascalCase(input)
		twice := PascalCase(once)
		if once != twice {
			t.Errorf("PascalCase not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestRustExprSpecialVars(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"COL", "self.col()"},
		{"LINE", "self.line as i32"},
		{"PREV", "self.prev()"},
		{"COL + 1", "self.col() + 1"},
		{"COLUMN", "COLUMN"},
		{":x", "x"},
		{":x == 0", "x == 0"},
		{"depth == 0", "depth == 0"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RustExpr(tt.input); got != tt.want {
				t.Errorf("RustExpr(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRustExprCharLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"p == '|'", "p == b'|'"},
		{"p == '\\n'", `p == b'\n'`},
		{"b'x'", "b'x'"}, // already a byte literal
	}
	for _, tt := range tests {
		if got := RustExpr(tt.input); got != tt.want {
			t.Errorf("RustExpr(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRustExprEscapeTokens(t *testing.T) {
	if got := RustExpr("PREV == <P>"); got != "self.prev() == b'|'" {
		t.Errorf("RustExpr: got %q", got)
	}
	if got := RustExpr("p == <DQ>"); got != `p == b'"'` {
		t.Errorf("RustExpr: got %q", got)
	}
}

func TestRustExprCallsRewriteFirst(t *testing.T) {
	// The call must rewrite before COL expands, or the closing paren of
	// self.col() would be mistaken for the call's own.
	got := RustExpr("/emit_pair(COL)")
	want := "self.parse_emit_pair(self.col(), on_event)"
	if got != want {
		t.Errorf("RustExpr = %q, want %q", got, want)
	}
}

func TestRustExprBareCall(t *testing.T) {
	if got := RustExpr("/flush"); got != "self.parse_flush(on_event)" {
		t.Errorf("RustExpr = %q", got)
	}
}

func TestTransformCallArgs(t *testing.T) {
	got := TransformCallArgs(":x, 'a', COL")
	want := []string{"x", "b'a'", "self.col()"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TransformCallArgs = %v, want %v", got, want)
	}
}

func TestTransformCallArgsRespectsQuotesAndAngles(t *testing.T) {
	got := splitArgs(`'a,b', <0-9 a-f>, x`)
	want := []string{"'a,b'", "<0-9 a-f>", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitArgs = %v, want %v", got, want)
	}
}

func TestPostProcessCollapsesBlankLines(t *testing.T) {
	in := "a\n\n\n\nb\n"
	want := "a\n\nb\n"
	if got := PostProcess(in); got != want {
		t.Errorf("PostProcess = %q, want %q", got, want)
	}
}

func TestPostProcessSeparatesTopLevelItems(t *testing.T) {
	in := "fn a() {\n}\nfn b() {\n}\n"
	want := "fn a() {\n}\n\nfn b() {\n}\n"
	if got := PostProcess(in); got != want {
		t.Errorf("PostProcess = %q, want %q", got, want)
	}
}
