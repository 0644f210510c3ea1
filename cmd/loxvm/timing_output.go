package main

import (
	"fmt"
	"io"
	"time"

	"loxvm/internal/buildpipeline"
)

// printStageTimings prints the summed duration of every recorded build stage.
// Stages run concurrently, so the sum can exceed wall-clock time.
func printStageTimings(out io.Writer, timings *buildpipeline.Timings) {
	if out == nil || timings == nil {
		return
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		fmt.Fprintf(out, "%-8s %7.1f ms\n", stage, toMillis(timings.Duration(stage)))
	}
	fmt.Fprintf(out, "%-8s %7.1f ms\n", "total", toMillis(timings.Sum(buildpipeline.Stages...)))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
