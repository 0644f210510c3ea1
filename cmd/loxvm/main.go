package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"loxvm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "loxvm [script]",
	Short: "Lox bytecode virtual machine",
	Long: `loxvm compiles Lox to bytecode and runs it on a stack VM with a
tracing garbage collector. Without arguments it starts a REPL.`,
	Args:          usageArgs(cobra.MaximumNArgs(1)),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return replExecution(cmd, args)
		}
		return runExecution(cmd, args)
	},
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to loxvm.toml (default: search upwards from the script)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.Bool("verbose-diag", false, "print compile errors with file, column and error code")
	pf.Bool("stress-gc", false, "collect garbage before every allocation")
	pf.Bool("log-gc", false, "log every collector step to stderr")
	pf.Bool("trace-exec", false, "print the stack and each instruction as it executes")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "ring buffer capacity for ring/both modes")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return applyColorMode(cmd)
	}
}

// main executes the root command and maps the returned error to a
// sysexits-style status.
func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stderr))
}

// execute runs the command tree with args and returns the process status.
func execute(ctx context.Context, args []string, errOut io.Writer) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(errOut, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(errOut, err)
	return exitSoftware
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// applyColorMode pins fatih/color's global switch to --color.
func applyColorMode(cmd *cobra.Command) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stderr)
	default:
		return &exitError{code: exitUsage, err: fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)}
	}
	return nil
}

// useColor reports whether colored diagnostics should be written.
func useColor() bool { return !color.NoColor }
