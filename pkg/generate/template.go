package generate

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"github.com/v2-io/descent/pkg/ir"
	"github.com/v2-io/descent/templates"
)

// Options selects the target template and rendering switches.
type Options struct {
	Target    string
	Trace     bool
	Templates fs.FS // defaults to the shipped templates
}

// Generate renders the IR through the target template and post-processes
// the output.
func Generate(p *ir.Parser, opts Options) (string, error) {
	if opts.Target == "" {
		opts.Target = "rust"
	}
	tmpl, err := loadTemplates(opts)
	if err != nil {
		return "", err
	}
	ctx := BuildContext(p, opts)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return PostProcess(buf.String()), nil
}

// loadTemplates reads parser.tmpl for the target plus every _name.tmpl
// partial in the same directory, registering each partial under its bare
// name so templates include them with {{template "name" .}}.
func loadTemplates(opts Options) (*template.Template, error) {
	fsys := opts.Templates
	if fsys == nil {
		fsys = templates.FS
	}
	main, err := fs.ReadFile(fsys, path.Join(opts.Target, "parser.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("no template for target %q", opts.Target)
	}
	root := template.New("parser").Funcs(Filters())
	if _, err := root.Parse(string(main)); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(fsys, opts.Target)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "_") || !strings.HasSuffix(name, ".tmpl") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(opts.Target, name))
		if err != nil {
			return nil, err
		}
		partial := strings.TrimSuffix(strings.TrimPrefix(name, "_"), ".tmpl")
		if _, err := root.New(partial).Parse(string(content)); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// PostProcess tidies rendered output: runs of blank lines collapse to one,
// and top-level items get a single separating blank line after a closing
// brace. Purely cosmetic.
func PostProcess(src string) string {
	lines := strings.Split(src, "\n")
	var out []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		if len(out) > 0 && out[len(out)-1] == "}" && isTopLevelItem(line) {
			out = append(out, "")
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	// Trim leading and trailing blank lines, keep one final newline.
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}

// isTopLevelItem reports lines that start a new top-level item: anything
// unindented that is not a closing delimiter.
func isTopLevelItem(line string) bool {
	if line == "" {
		return false
	}
	ch := line[0]
	return ch != ' ' && ch != '\t' && ch != '}' && ch != ')' && ch != ']'
}
