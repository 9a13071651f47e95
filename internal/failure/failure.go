// Package failure defines how a scenario can go wrong. Every error a scenario
// returns is either one of these types or an engine error from the browser.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// AssertionFailure means the observed page state diverged from the expectation.
type AssertionFailure struct {
	// Check names the assertion, e.g. "visible", "url", "dialog".
	Check    string
	Expected string
	Actual   string
	Detail   string
}

func (e *AssertionFailure) Error() string {
	msg := fmt.Sprintf("%s: expected %s", e.Check, e.Expected)
	if e.Actual != "" {
		msg += ", got " + e.Actual
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// TimeoutFailure means a wait bound elapsed before the expected condition held.
// It wraps the AssertionFailure describing what was being waited for, so
// errors.As matches both.
type TimeoutFailure struct {
	Assertion *AssertionFailure
	Err       error
}

func (e *TimeoutFailure) Error() string {
	return "timeout: " + e.Assertion.Error()
}

// Unwrap exposes both the assertion and the underlying context error.
func (e *TimeoutFailure) Unwrap() []error {
	errs := []error{e.Assertion}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UnexpectedDialog means the page raised a dialog nobody expected. The dialog
// is left open; accepting it would hide the application bug.
type UnexpectedDialog struct {
	Type    string
	Message string
	URL     string
}

func (e *UnexpectedDialog) Error() string {
	return fmt.Sprintf("unexpected %s dialog on %s: %q", e.Type, e.URL, e.Message)
}

// Assertf builds an AssertionFailure.
func Assertf(check, expected, actual, format string, args ...any) *AssertionFailure {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &AssertionFailure{Check: check, Expected: expected, Actual: actual, Detail: detail}
}

// Timeout wraps an assertion whose wait ran out.
func Timeout(a *AssertionFailure, cause error) *TimeoutFailure {
	return &TimeoutFailure{Assertion: a, Err: cause}
}

// IsDeadline reports whether err comes from a context deadline. rod returns
// the context error when a page.Timeout bound elapses.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Labels returned by Classify.
const (
	LabelAssertion        = "assertion"
	LabelTimeout          = "timeout"
	LabelUnexpectedDialog = "unexpected_dialog"
	LabelCancelled        = "cancelled"
	LabelEngine           = "engine"
	LabelNone             = "none"
)

// Classify maps an error to a stable label for reports and metrics.
func Classify(err error) string {
	if err == nil {
		return LabelNone
	}
	var dialog *UnexpectedDialog
	if errors.As(err, &dialog) {
		return LabelUnexpectedDialog
	}
	var timeout *TimeoutFailure
	if errors.As(err, &timeout) {
		return LabelTimeout
	}
	var assertion *AssertionFailure
	if errors.As(err, &assertion) {
		return LabelAssertion
	}
	if IsDeadline(err) {
		return LabelTimeout
	}
	if errors.Is(err, context.Canceled) {
		return LabelCancelled
	}
	return LabelEngine
}
