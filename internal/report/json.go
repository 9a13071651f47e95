package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/v0xg/bookcheck/internal/ai"
	"github.com/v0xg/bookcheck/internal/scenario"
)

type jsonRun struct {
	ID         string       `json:"id"`
	Started    time.Time    `json:"started"`
	DurationMS int64        `json:"duration_ms"`
	Total      int          `json:"total"`
	Failed     int          `json:"failed"`
	Scenarios  []jsonResult `json:"scenarios"`
}

type jsonResult struct {
	Name       string        `json:"name"`
	Group      string        `json:"group"`
	Passed     bool          `json:"passed"`
	Label      string        `json:"label"`
	Error      string        `json:"error,omitempty"`
	State      string        `json:"state"`
	DurationMS int64         `json:"duration_ms"`
	Artifacts  []string      `json:"artifacts,omitempty"`
	Diagnosis  *ai.Diagnosis `json:"diagnosis,omitempty"`
}

// JSON encodes the outcome as an indented JSON document.
func JSON(o *scenario.Outcome) ([]byte, error) {
	run := jsonRun{
		ID:         o.ID,
		Started:    o.Started,
		DurationMS: o.Duration.Milliseconds(),
		Total:      len(o.Results),
		Failed:     o.Failed(),
		Scenarios:  make([]jsonResult, len(o.Results)),
	}
	for i, r := range o.Results {
		jr := jsonResult{
			Name:       r.Name,
			Group:      r.Group,
			Passed:     r.Passed,
			Label:      r.Label,
			State:      string(r.State),
			DurationMS: r.Duration.Milliseconds(),
			Artifacts:  r.Artifacts,
			Diagnosis:  r.Diagnosis,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		run.Scenarios[i] = jr
	}
	return json.MarshalIndent(run, "", "  ")
}

// WriteJSON writes the JSON report to path.
func WriteJSON(path string, o *scenario.Outcome) error {
	data, err := JSON(o)
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}
