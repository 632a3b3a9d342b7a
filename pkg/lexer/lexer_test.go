package lexer

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// TokenSpec is one expected token from lex.yaml.
type TokenSpec struct {
	Tag  string `yaml:"tag"`
	ID   string `yaml:"id,omitempty"`
	Rest string `yaml:"rest,omitempty"`
	Line int    `yaml:"line"`
}

// LexTestSpec is one test case from lex.yaml.
type LexTestSpec struct {
	Name   string      `yaml:"name"`
	Input  string      `yaml:"input"`
	Tokens []TokenSpec `yaml:"tokens"`
}

// LexTestFile is the lex.yaml file structure.
type LexTestFile struct {
	Tests []LexTestSpec `yaml:"tests"`
}

func TestTokenizeYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/lex.yaml")
	if err != nil {
		t.Fatalf("failed to read lex.yaml: %v", err)
	}

	var testFile LexTestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse lex.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			toks, err := Tokenize(tc.Input)
			if err != nil {
				t.Fatalf("Tokenize: %v", err)
			}
			if len(toks) != len(tc.Tokens) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tc.Tokens), len(toks), toks)
			}
			for i, want := range tc.Tokens {
				got := toks[i]
				if got.Tag != want.Tag {
					t.Errorf("tokens[%d].Tag: expected %q, got %q", i, want.Tag, got.Tag)
				}
				if got.ID != want.ID {
					t.Errorf("tokens[%d].ID: expected %q, got %q", i, want.ID, got.ID)
				}
				if got.Rest != want.Rest {
					t.Errorf("tokens[%d].Rest: expected %q, got %q", i, want.Rest, got.Rest)
				}
				if got.Line != want.Line {
					t.Errorf("tokens[%d].Line: expected %d, got %d", i, want.Line, got.Line)
				}
			}
		})
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain comment", "a ; comment\nb", "a \nb"},
		{"comment at end", "a ; comment", "a "},
		{"semicolon in single quotes", "c[';'] x", "c[';'] x"},
		{"semicolon in double quotes", `c[";"] x`, `c[";"] x`},
		{"semicolon in brackets", "c[;] x", "c[;] x"},
		{"semicolon in parens", "/f(;) x", "/f(;) x"},
		{"newlines preserved", "a ; one\nb ; two\nc", "a \nb \nc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripComments(tt.input)
			if got != tt.want {
				t.Errorf("StripComments(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripCommentsIdempotent(t *testing.T) {
	inputs := []string{
		"a ; comment\nb",
		"|c['|'] ; pipe\n|default |-> |>>\n",
		"plain text with ; several\n; comment lines\n",
	}
	for _, input := range inputs {
		once := StripComments(input)
		twice := StripComments(once)
		if once != twice {
			t.Errorf("StripComments not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestStripCommentsPreservesLineCount(t *testing.T) {
	input := "|parser[x] ; name\n|function[f]\n; full line comment\n|c['a'] |->\n"
	stripped := StripComments(input)
	if got, want := strings.Count(stripped, "\n"), strings.Count(input, "\n"); got != want {
		t.Errorf("newline count changed: got %d, want %d", got, want)
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"unterminated single quote", "|c['x\n", 1},
		{"unterminated double quote", "|c[\"x\n", 1},
		{"unterminated bracket", "|c['x'", 1},
		{"unterminated bracket later line", "|parser[p]\n|c['x'\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			lexErr, ok := err.(*LexError)
			if !ok {
				t.Fatalf("expected *LexError, got %T", err)
			}
			if lexErr.Line != tt.line {
				t.Errorf("error line: expected %d, got %d (%v)", tt.line, lexErr.Line, err)
			}
		})
	}
}

func TestTokenizeDropsEmptyParts(t *testing.T) {
	toks, err := Tokenize("| |  |parser[x]| |")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 1 {
		t.Fatalf("expected 1 token, got %d", len(toks))
	}
	if toks[0].Tag != "parser" {
		t.Errorf("expected parser token, got %q", toks[0].Tag)
	}
}

func TestPipeInsideQuotesNotSplit(t *testing.T) {
	toks, err := Tokenize("|c['|'] |default")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %v", len(toks), toks)
	}
	if toks[0].ID != "'|'" {
		t.Errorf("expected id %q, got %q", "'|'", toks[0].ID)
	}
}
