// Package report renders a scenario run for people and for CI.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/v0xg/bookcheck/internal/scenario"
)

// Line formats one result the way the console shows it as it finishes.
func Line(r scenario.Result) string {
	if r.Passed {
		return fmt.Sprintf("  ✓ %s (%s)", r.Name, round(r.Duration))
	}
	return fmt.Sprintf("  ✗ %s (%s, %s): %v", r.Name, round(r.Duration), r.Label, r.Err)
}

// Console writes the failure details and the final tally.
func Console(w io.Writer, o *scenario.Outcome) {
	failed := o.Failed()
	if failed > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, r := range o.Results {
			if r.Passed {
				continue
			}
			fmt.Fprintf(w, "  ✗ [%s] %s\n", r.Group, r.Name)
			fmt.Fprintf(w, "      %s: %v\n", r.Label, r.Err)
			fmt.Fprintf(w, "      last state: %s\n", r.State)
			for _, a := range r.Artifacts {
				fmt.Fprintf(w, "      artifact: %s\n", a)
			}
			if r.Diagnosis != nil {
				fmt.Fprintf(w, "      triage: %s\n", r.Diagnosis)
			}
		}
		fmt.Fprintln(w)
	}

	total := len(o.Results)
	if failed == 0 {
		fmt.Fprintf(w, "✓ %d scenarios passed in %s (run %s)\n", total, round(o.Duration), o.ID)
		return
	}
	fmt.Fprintf(w, "✗ %d of %d scenarios failed in %s (run %s)\n", failed, total, round(o.Duration), o.ID)
}

func round(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(10 * time.Millisecond)
}
