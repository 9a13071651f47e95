package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You triage failures of a browser acceptance suite for a book catalog web application.

You will receive one failed scenario as JSON:
- "scenario" and "group": what was being tested
- "label": assertion, timeout, unexpected_dialog, engine or cancelled
- "error": the failure message
- "state": the furthest point reached (navigating, form_filled, submitted, navigated, dialog_shown, timed_out)
- "page": the interactive elements and navigation links of the page at the moment of failure

Decide whether the failure is most likely:
- "app_bug": the application misbehaved (wrong redirect, missing element, missing validation alert)
- "test_bug": the scenario expects something the application never promised (stale selector, wrong message)
- "environment": the application or browser was unreachable, slow or crashed

Output a single JSON object:
{"category": "app_bug" | "test_bug" | "environment", "cause": "<one sentence>", "suggestion": "<one sentence>"}

Use only selectors that appear in the page map when you mention one.
Respond ONLY with the JSON object, no explanation or markdown.`

func buildUserPrompt(f Failure) (string, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal failure: %w", err)
	}
	return "Failed scenario:\n" + string(data), nil
}

// parseDiagnosis extracts and parses a JSON object from a response that may
// contain surrounding text.
func parseDiagnosis(response string) (Diagnosis, error) {
	var d Diagnosis
	if err := json.Unmarshal([]byte(response), &d); err == nil {
		return d, d.validate()
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return Diagnosis{}, fmt.Errorf("no JSON object found in response")
	}

	// Find matching closing brace
	depth := 0
	end := -1
	inString := false
	for i := start; i < len(response) && end == -1; i++ {
		switch c := response[i]; {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}
	if end == -1 {
		return Diagnosis{}, fmt.Errorf("no matching closing brace found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), &d); err != nil {
		return Diagnosis{}, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return d, d.validate()
}

func (d Diagnosis) validate() error {
	switch d.Category {
	case "app_bug", "test_bug", "environment":
	default:
		return fmt.Errorf("unknown category %q", d.Category)
	}
	if strings.TrimSpace(d.Cause) == "" {
		return fmt.Errorf("diagnosis has no cause")
	}
	return nil
}
