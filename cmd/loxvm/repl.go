package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loxvm/internal/observ"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive Lox session",
	Long: `Read Lox one line at a time and run it in a single VM, so globals
defined on one line are visible on the next. Errors are reported and the
session continues.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: replExecution,
}

func replExecution(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, "")
	if err != nil {
		return err
	}
	tracer, cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// каждая строка REPL короткая; кэш только замусорит каталог
	cfg.Cache = false
	var timer *observ.Timer
	if showTimings(cmd) {
		timer = observ.NewTimer()
	}
	session, err := newSession(cmd, cfg, tracer, timer)
	if err != nil {
		return err
	}
	replErr := session.REPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), isTerminal(os.Stdin))
	if timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if replErr != nil {
		return &exitError{code: exitIOErr, err: replErr}
	}
	return nil
}
