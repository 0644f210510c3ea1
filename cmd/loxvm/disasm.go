package main

import (
	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] <file.lox|file.loxc>",
	Short: "Print the bytecode of a program without running it",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  disasmExecution,
}

func disasmExecution(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := resolveConfig(cmd, path)
	if err != nil {
		return err
	}
	tracer, cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg.Cache = false
	session, err := newSession(cmd, cfg, tracer, nil)
	if err != nil {
		return err
	}
	if err := session.Disassemble(cmd.Context(), path, cmd.OutOrStdout()); err != nil {
		return loadExit(err)
	}
	return nil
}
