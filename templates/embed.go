// Package templates ships the built-in target templates. A target is a
// directory holding parser.tmpl plus optional _name.tmpl partials.
package templates

import "embed"

//go:embed all:rust
var FS embed.FS
