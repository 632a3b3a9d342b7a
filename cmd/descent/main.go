// Command descent generates callback-based byte parsers from .desc
// grammar specifications.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/v2-io/descent/pkg/ast"
	"github.com/v2-io/descent/pkg/generate"
	"github.com/v2-io/descent/pkg/ir"
	"github.com/v2-io/descent/pkg/irgen"
	"github.com/v2-io/descent/pkg/lexer"
	"github.com/v2-io/descent/pkg/parser"
	"github.com/v2-io/descent/pkg/validate"
)

var version = "0.2.0"

var (
	outFile    string
	target     string
	trace      bool
	dumpTokens bool
	dumpAST    bool
	dumpIR     bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "descent",
		Short: "descent is a parser generator for byte-oriented grammars",
		Long: `descent reads a declarative .desc specification of a
recursive-descent byte parser and emits a callback-based parser for
that grammar as target-language source.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	generateCmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate a parser from a .desc specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doGenerate(args[0], out, errOut)
		},
	}
	generateCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file, default is the input name with the target suffix")
	generateCmd.Flags().StringVar(&target, "target", "rust", "target language template")
	generateCmd.Flags().BoolVar(&trace, "trace", false, "emit tracing statements in the generated parser")

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a .desc specification without generating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doValidate(args[0], out, errOut)
		},
	}

	debugCmd := &cobra.Command{
		Use:   "debug <file>",
		Short: "Print intermediate pipeline stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doDebug(args[0], out, errOut)
		},
	}
	debugCmd.Flags().BoolVar(&dumpTokens, "tokens", false, "dump the token stream")
	debugCmd.Flags().BoolVar(&dumpAST, "ast", false, "dump the AST")
	debugCmd.Flags().BoolVar(&dumpIR, "ir", false, "dump the IR")

	rootCmd.AddCommand(generateCmd, validateCmd, debugCmd)
	return rootCmd
}

// pipeline runs lexing, parsing, and IR construction for one input file.
func pipeline(filename string) ([]lexer.Token, *ast.Machine, *ir.Parser, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, nil, err
	}
	toks, err := lexer.Tokenize(string(src))
	if err != nil {
		return nil, nil, nil, err
	}
	machine, err := parser.Parse(toks)
	if err != nil {
		return toks, nil, nil, err
	}
	built, err := irgen.Build(machine)
	if err != nil {
		return toks, machine, nil, err
	}
	return toks, machine, built, nil
}

// reportFatal prints a fatal diagnostic in the ERROR (<file>:<line>) form.
func reportFatal(w io.Writer, filename string, err error) {
	line := 0
	var lexErr *lexer.LexError
	var parseErr *parser.ParseError
	var valErr *irgen.ValidationError
	msg := err.Error()
	switch {
	case errors.As(err, &lexErr):
		line = lexErr.Line
		msg = lexErr.Msg
	case errors.As(err, &parseErr):
		line = parseErr.Line
		msg = parseErr.Msg
	case errors.As(err, &valErr):
		line = valErr.Line
		msg = valErr.Msg
	}
	fmt.Fprintf(w, "ERROR (%s:%d): %s\n", filename, line, msg)
}

func printWarnings(w io.Writer, filename string, report *validate.Report) {
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "WARNING (%s:%d): %s\n", filename, warn.Line, warn.Msg)
	}
}

func doGenerate(filename string, out, errOut io.Writer) error {
	_, _, built, err := pipeline(filename)
	if err != nil {
		reportFatal(errOut, filename, err)
		return err
	}

	report := validate.Validate(built)
	printWarnings(errOut, filename, report)
	if !report.OK() {
		for _, e := range report.Errors {
			fmt.Fprintf(errOut, "ERROR (%s:%d): %s\n", filename, e.Line, e.Msg)
		}
		return fmt.Errorf("validation failed with %d errors", len(report.Errors))
	}

	src, err := generate.Generate(built, generate.Options{Target: target, Trace: trace})
	if err != nil {
		reportFatal(errOut, filename, err)
		return err
	}

	output := outFile
	if output == "" {
		output = generatedOutputFilename(filename, target)
	}
	if err := os.WriteFile(output, []byte(src), 0o644); err != nil {
		fmt.Fprintf(errOut, "descent: error writing %s: %v\n", output, err)
		return err
	}
	fmt.Fprintf(errOut, "descent: wrote %s\n", output)
	return nil
}

// generatedOutputFilename maps input.desc to input.rs beside the input.
func generatedOutputFilename(filename, target string) string {
	ext := filepath.Ext(filename)
	stem := filename[:len(filename)-len(ext)]
	switch target {
	case "rust":
		return stem + ".rs"
	default:
		return stem + "." + target
	}
}

func doValidate(filename string, out, errOut io.Writer) error {
	_, _, built, err := pipeline(filename)
	if err != nil {
		reportFatal(errOut, filename, err)
		return err
	}
	report := validate.Validate(built)
	printWarnings(errOut, filename, report)
	if !report.OK() {
		for _, e := range report.Errors {
			fmt.Fprintf(errOut, "ERROR (%s:%d): %s\n", filename, e.Line, e.Msg)
		}
		return fmt.Errorf("validation failed with %d errors", len(report.Errors))
	}
	fmt.Fprintf(out, "%s: ok\n", filename)
	return nil
}

func doDebug(filename string, out, errOut io.Writer) error {
	all := !dumpTokens && !dumpAST && !dumpIR

	toks, machine, built, err := pipeline(filename)
	if dumpTokens || all {
		fmt.Fprintln(out, "-- tokens --")
		for _, t := range toks {
			fmt.Fprintln(out, t.String())
		}
	}
	if machine != nil && (dumpAST || all) {
		fmt.Fprintln(out, "-- ast --")
		ast.NewPrinter(out).PrintMachine(machine)
	}
	if built != nil && (dumpIR || all) {
		fmt.Fprintln(out, "-- ir --")
		ir.NewPrinter(out).PrintParser(built)
	}
	if err != nil {
		reportFatal(errOut, filename, err)
		return err
	}
	if built != nil {
		report := validate.Validate(built)
		printWarnings(errOut, filename, report)
		if !report.OK() {
			for _, e := range report.Errors {
				fmt.Fprintf(errOut, "ERROR (%s:%d): %s\n", filename, e.Line, e.Msg)
			}
		}
	}
	return nil
}
