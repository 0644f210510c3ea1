package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loxvm/internal/buildpipeline"
	"loxvm/internal/driver"
	"loxvm/internal/image"
	"loxvm/internal/vm"
)

// Exit statuses follow sysexits(3).
const (
	exitUsage    = 64
	exitDataErr  = 65 // compile error
	exitSoftware = 70 // runtime error
	exitIOErr    = 74
)

// exitError carries a process status out of a command. A nil err exits
// silently, because the failure was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// usageArgs wraps a cobra argument validator so its failures exit with 64.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &exitError{code: exitUsage, err: fmt.Errorf("%w\nUsage: %s", err, cmd.UseLine())}
		}
		return nil
	}
}

// resultExit maps an interpretation result to an exit error, nil on success.
func resultExit(res vm.Result) error {
	switch res {
	case vm.InterpretCompileError:
		return &exitError{code: exitDataErr}
	case vm.InterpretRuntimeError:
		return &exitError{code: exitSoftware}
	default:
		return nil
	}
}

// loadExit classifies a failure to read or decode input.
func loadExit(err error) error {
	if errors.Is(err, driver.ErrCompile) || errors.Is(err, buildpipeline.ErrCompile) {
		return &exitError{code: exitDataErr}
	}
	if errors.Is(err, image.ErrBadImage) {
		return &exitError{code: exitDataErr, err: err}
	}
	return &exitError{code: exitIOErr, err: err}
}
