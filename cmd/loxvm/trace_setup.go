package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loxvm/internal/trace"
)

// setupTracing builds the tracer described by cfg and the trace flags and
// attaches it to the command context. The cleanup flushes and closes it.
func setupTracing(cmd *cobra.Command, cfg config) (trace.Tracer, func(), error) {
	level, err := trace.ParseLevel(cfg.TraceLevel)
	if err != nil {
		return nil, nil, &exitError{code: exitUsage, err: err}
	}

	// If level is off, skip tracing
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return trace.Nop, func() {}, nil
	}

	mode, err := trace.ParseMode(cfg.TraceMode)
	if err != nil {
		return nil, nil, &exitError{code: exitUsage, err: err}
	}
	format, err := trace.ParseFormat(flagString(cmd, "trace-format"))
	if err != nil {
		return nil, nil, &exitError{code: exitUsage, err: err}
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: cfg.TraceOutput,
		RingSize:   flagInt(cmd, "trace-ring-size"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	cleanup := func() {
		// в ring-режиме события иначе пропадут
		if ring := ringOf(tracer); ring != nil && mode == trace.ModeRing {
			if err := ring.Dump(cmd.ErrOrStderr(), format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

func ringOf(t trace.Tracer) *trace.RingTracer {
	switch t := t.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		return t.Ring()
	default:
		return nil
	}
}
