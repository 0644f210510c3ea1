package main

import (
	"fmt"
	"os"

	"fortio.org/safecast"
	"github.com/spf13/cobra"

	"loxvm/internal/driver"
	"loxvm/internal/observ"
	"loxvm/internal/prof"
	"loxvm/internal/trace"
	"loxvm/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.lox|file.loxc>",
	Short: "Compile and execute a Lox program",
	Long: `Compile a Lox source file to bytecode and execute it, or execute a
program image produced by "loxvm build".`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: runExecution,
}

func init() {
	runCmd.Flags().Bool("print-code", false, "disassemble every function after compiling it")
	runCmd.Flags().Bool("no-cache", false, "do not read or write the compile cache")
	runCmd.Flags().String("cpuprofile", "", "write a CPU profile to file")
	runCmd.Flags().String("memprofile", "", "write a heap profile to file on exit")
	runCmd.Flags().String("runtime-trace", "", "write a Go runtime trace to file")
}

// newSession builds a VM and driver session from the resolved configuration.
func newSession(cmd *cobra.Command, cfg config, tracer trace.Tracer, timer *observ.Timer) (*driver.Session, error) {
	opts := cfg.vmOptions()
	opts.Tracer = tracer
	opts.Stdout = cmd.OutOrStdout()
	opts.Stderr = cmd.ErrOrStderr()
	machine := vm.New(opts)

	maxDiagnostics, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	dopts := driver.Options{
		Timer:              timer,
		Diagnostics:        cmd.ErrOrStderr(),
		Color:              useColor(),
		MaxDiagnostics:     clampDiagnostics(maxDiagnostics),
		VerboseDiagnostics: flagBool(cmd, "verbose-diag"),
	}
	if flagBool(cmd, "print-code") {
		dopts.PrintCode = cmd.OutOrStdout()
	}
	if cfg.Cache {
		cache, err := driver.OpenCompileCache("loxvm")
		if err != nil {
			warnf(cmd, "compile cache disabled: %v", err)
		} else {
			dopts.Cache = cache
		}
	}
	return driver.NewSession(machine, dopts), nil
}

func runExecution(cmd *cobra.Command, args []string) (err error) {
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

	stop, err := prof.Start(prof.Options{
		CPU:   flagString(cmd, "cpuprofile"),
		Mem:   flagString(cmd, "memprofile"),
		Trace: flagString(cmd, "runtime-trace"),
	})
	if err != nil {
		return &exitError{code: exitIOErr, err: fmt.Errorf("profiling: %w", err)}
	}
	defer func() {
		if stopErr := stop(); stopErr != nil && err == nil {
			err = &exitError{code: exitIOErr, err: fmt.Errorf("profiling: %w", stopErr)}
		}
	}()

	var timer *observ.Timer
	if showTimings(cmd) {
		timer = observ.NewTimer()
	}
	session, err := newSession(cmd, cfg, tracer, timer)
	if err != nil {
		return err
	}

	res, runErr := session.RunFile(cmd.Context(), path)
	if timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if runErr != nil {
		if os.IsNotExist(runErr) {
			return &exitError{code: exitIOErr, err: fmt.Errorf("Could not open file \"%s\".", path)}
		}
		return loadExit(runErr)
	}
	return resultExit(res)
}

func showTimings(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("timings")
	return v
}

func clampDiagnostics(n int) uint16 {
	if n <= 0 {
		return driver.DefaultMaxDiagnostics
	}
	v, err := safecast.Conv[uint16](n)
	if err != nil {
		return 0xFFFF
	}
	return v
}

func warnf(cmd *cobra.Command, format string, args ...any) {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", args...)
}
