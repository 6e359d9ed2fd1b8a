package main

import (
	"fmt"
	"io"
	"time"

	"shaderlab/internal/checkpipeline"
	"shaderlab/internal/observ"
)

func printStageTimings(out io.Writer, timings checkpipeline.Timings) {
	if out == nil {
		return
	}
	for _, st := range []struct {
		stage checkpipeline.Stage
		label string
	}{
		{checkpipeline.StageLoad, "loaded"},
		{checkpipeline.StageCompile, "compiled"},
		{checkpipeline.StageLink, "linked"},
		{checkpipeline.StageCache, "cache"},
	} {
		if d, ok := timings[st.stage]; ok {
			fmt.Fprintf(out, "%s %.1f ms\n", st.label, toMillis(d))
		}
	}
	total := timings.Sum(checkpipeline.StageLoad, checkpipeline.StageCompile, checkpipeline.StageLink, checkpipeline.StageCache)
	fmt.Fprintf(out, "total %.1f ms (summed over workers)\n", toMillis(total))
}

// printReloadTiming prints the phases of the last reload cycle.
func printReloadTiming(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	if len(timer.Phases()) > 0 {
		fmt.Fprint(out, timer.Summary())
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
