package irgen

import (
	"os"
	"testing"

	"github.com/v2-io/descent/pkg/parser"
	"gopkg.in/yaml.v3"
)

// StateFacts is the expected inferred state shape from ir.yaml.
type StateFacts struct {
	ScanChars       string `yaml:"scan_chars,omitempty"`
	NewlineInjected bool   `yaml:"newline_injected,omitempty"`
	SelfLooping     bool   `yaml:"self_looping,omitempty"`
}

// FunctionFacts is the expected inferred function shape from ir.yaml.
type FunctionFacts struct {
	Name           string            `yaml:"name"`
	ExpectsChar    string            `yaml:"expects_char,omitempty"`
	ContentOnClose bool              `yaml:"content_on_close,omitempty"`
	ParamTypes     map[string]string `yaml:"param_types,omitempty"`
	PrependValues  map[string]string `yaml:"prepend_values,omitempty"`
	States         []StateFacts      `yaml:"states,omitempty"`
}

// IRTestSpec is one test case from ir.yaml.
type IRTestSpec struct {
	Name       string          `yaml:"name"`
	Input      string          `yaml:"input"`
	Functions  []FunctionFacts `yaml:"functions,omitempty"`
	ErrorCodes []string        `yaml:"error_codes,omitempty"`
}

// IRTestFile is the ir.yaml file structure.
type IRTestFile struct {
	Tests []IRTestSpec `yaml:"tests"`
}

func TestBuildYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/ir.yaml")
	if err != nil {
		t.Fatalf("failed to read ir.yaml: %v", err)
	}

	var testFile IRTestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse ir.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			m, err := parser.ParseSource(tc.Input)
			if err != nil {
				t.Fatalf("ParseSource: %v", err)
			}
			p, err := Build(m)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			for _, ff := range tc.Functions {
				f := p.FindFunction(ff.Name)
				if f == nil {
					t.Fatalf("function %q not built", ff.Name)
				}
				if ff.ExpectsChar != "" {
					if !f.HasExpectsChar || string(f.ExpectsChar) != ff.ExpectsChar {
						t.Errorf("%s: expects_char: expected %q, got %v %q",
							ff.Name, ff.ExpectsChar, f.HasExpectsChar, string(f.ExpectsChar))
					}
					if f.EmitsContentOnClose != ff.ContentOnClose {
						t.Errorf("%s: content_on_close: expected %v, got %v",
							ff.Name, ff.ContentOnClose, f.EmitsContentOnClose)
					}
				}
				for name, want := range ff.ParamTypes {
					if got := f.ParamTypes[name].String(); got != want {
						t.Errorf("%s: param %s: expected %s, got %s", ff.Name, name, want, got)
					}
				}
				for name, want := range ff.PrependValues {
					if got := string(f.PrependValues[name]); got != want {
						t.Errorf("%s: prepend values for %s: expected %q, got %q", ff.Name, name, want, got)
					}
				}
				for i, sf := range ff.States {
					if i >= len(f.States) {
						t.Fatalf("%s: expected state %d, have %d states", ff.Name, i, len(f.States))
					}
					s := f.States[i]
					if sf.ScanChars != "" && string(s.ScanChars) != sf.ScanChars {
						t.Errorf("%s: state %d scan_chars: expected %q, got %q",
							ff.Name, i, sf.ScanChars, string(s.ScanChars))
					}
					if s.NewlineInjected != sf.NewlineInjected {
						t.Errorf("%s: state %d newline_injected: expected %v, got %v",
							ff.Name, i, sf.NewlineInjected, s.NewlineInjected)
					}
					if sf.SelfLooping && !s.IsSelfLooping {
						t.Errorf("%s: state %d should self-loop", ff.Name, i)
					}
				}
			}

			if len(tc.ErrorCodes) > 0 {
				if len(p.CustomErrorCodes) != len(tc.ErrorCodes) {
					t.Fatalf("error codes: expected %v, got %v", tc.ErrorCodes, p.CustomErrorCodes)
				}
				for i, code := range tc.ErrorCodes {
					if p.CustomErrorCodes[i] != code {
						t.Errorf("error codes[%d]: expected %q, got %q", i, code, p.CustomErrorCodes[i])
					}
				}
			}
		})
	}
}
