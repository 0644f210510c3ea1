package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loxvm/internal/diagfmt"
	"loxvm/internal/driver"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [flags] file.lox",
	Short: "Tokenize a Lox source file",
	Long:  `Tokenize breaks down a Lox source file into its constituent tokens`,
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runTokenize,
}

func init() {
	tokenizeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runTokenize(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	// Получаем флаги
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	maxDiagnostics, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	result, err := driver.Tokenize(filePath, clampDiagnostics(maxDiagnostics))
	if err != nil {
		return &exitError{code: exitIOErr, err: fmt.Errorf("tokenization failed: %w", err)}
	}

	// Диагностика в stderr, токены в stdout
	if result.Bag.HasErrors() {
		if flagBool(cmd, "verbose-diag") {
			diagfmt.Short(cmd.ErrOrStderr(), result.Bag, result.FileSet)
		} else {
			diagfmt.Pretty(cmd.ErrOrStderr(), result.Bag, diagfmt.PrettyOpts{Color: useColor()})
		}
	}

	switch format {
	case "pretty":
		err = diagfmt.FormatTokensPretty(cmd.OutOrStdout(), result.Tokens, result.FileSet)
	case "json":
		err = diagfmt.FormatTokensJSON(cmd.OutOrStdout(), result.Tokens)
	default:
		return &exitError{code: exitUsage, err: fmt.Errorf("unknown format: %s", format)}
	}
	if err != nil {
		return err
	}
	if result.Bag.HasErrors() {
		return &exitError{code: exitDataErr}
	}
	return nil
}
