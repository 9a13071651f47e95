// Package ai asks a language model to triage failed scenarios.
package ai

import (
	"context"
	"fmt"

	"github.com/v0xg/bookcheck/internal/browser"
)

// Failure is what a provider sees about a failed scenario.
type Failure struct {
	Scenario string           `json:"scenario"`
	Group    string           `json:"group"`
	Label    string           `json:"label"`
	Error    string           `json:"error"`
	State    string           `json:"state"`
	Page     *browser.PageMap `json:"page,omitempty"`
}

// Diagnosis is a provider's verdict on a failure.
type Diagnosis struct {
	// Category is one of "app_bug", "test_bug" or "environment".
	Category   string `json:"category"`
	Cause      string `json:"cause"`
	Suggestion string `json:"suggestion"`
}

func (d Diagnosis) String() string {
	if d.Suggestion == "" {
		return fmt.Sprintf("[%s] %s", d.Category, d.Cause)
	}
	return fmt.Sprintf("[%s] %s; %s", d.Category, d.Cause, d.Suggestion)
}

// Provider diagnoses scenario failures
type Provider interface {
	Diagnose(ctx context.Context, f Failure) (Diagnosis, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}
