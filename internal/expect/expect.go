// Package expect turns observed page state into pass or fail. Every helper
// waits within the session's action bound and reports a *failure.TimeoutFailure
// when the bound elapses, a *failure.AssertionFailure when the state is
// wrong, and passes other errors through unchanged.
package expect

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/failure"
)

// Selectors of the catalog and details views.
const (
	DashboardContainer = ".dashboard"
	DashboardEntries   = ".other-books-list li"
	CatalogEntry       = ".otherBooks"
	DetailsButton      = ".otherBooks a.button"
	BookInformation    = ".book-information"
	BookTitle          = ".book-information h3"
)

// RequiredFieldsAlert is the message shown when a form is rejected.
const RequiredFieldsAlert = "All fields are required!"

// timeoutOr converts a deadline into a TimeoutFailure for the given assertion.
func timeoutOr(err error, a *failure.AssertionFailure) error {
	var dialog *failure.UnexpectedDialog
	if errors.As(err, &dialog) {
		return err
	}
	if failure.IsDeadline(err) {
		return failure.Timeout(a, err)
	}
	return err
}

// Visible requires selector to appear, render a non-zero box and be visible.
func Visible(s *browser.Session, selector string) error {
	v, err := s.Inspect(selector)
	if err != nil {
		return timeoutOr(err, failure.Assertf("visible", selector, "", "element never appeared"))
	}
	if !v.Visible {
		return failure.Assertf("visible", selector, "hidden", "")
	}
	if v.Width <= 0 || v.Height <= 0 {
		return failure.Assertf("visible", selector, fmt.Sprintf("%gx%g box", v.Width, v.Height), "")
	}
	return nil
}

// DialogAndBlock requires the expected dialog to be an alert whose message
// contains substring, accepts it, then requires the page to still be on
// endpoint. The expectation must be registered before the triggering action.
func DialogAndBlock(s *browser.Session, exp *browser.DialogExpectation, endpoint, substring string) error {
	want := fmt.Sprintf("alert containing %q", substring)

	d, err := exp.Wait()
	if err != nil {
		if failure.IsDeadline(err) {
			s.SetState(browser.StateTimedOut)
			return failure.Timeout(failure.Assertf("dialog", want, "no dialog", ""), err)
		}
		return err
	}

	// Accept before judging so a wrong dialog does not leave the page blocked.
	if err := exp.Accept(); err != nil {
		return fmt.Errorf("accept %s dialog: %w", d.Type, err)
	}
	s.SetState(browser.StateDialogShown)

	if d.Type != "alert" {
		return failure.Assertf("dialog", want, d.Type, "message %q", d.Message)
	}
	if !strings.Contains(d.Message, substring) {
		return failure.Assertf("dialog", want, fmt.Sprintf("%q", d.Message), "")
	}

	current, err := s.URL()
	if err != nil {
		return err
	}
	if current != endpoint {
		return failure.Assertf("url", endpoint, current, "page left the form after the dialog")
	}
	return nil
}

// URL waits until the current location equals target.
func URL(s *browser.Session, target string) error {
	current, err := s.WaitURL(target)
	if err == nil {
		s.SetState(browser.StateNavigated)
		return nil
	}
	if failure.IsDeadline(err) {
		s.SetState(browser.StateTimedOut)
	}
	return timeoutOr(err, failure.Assertf("url", target, current, ""))
}

// CatalogHasEntries waits for container, then requires at least one element
// matching item.
func CatalogHasEntries(s *browser.Session, container, item string) error {
	if _, err := s.WaitElement(container); err != nil {
		return timeoutOr(err, failure.Assertf("catalog", container, "", "container never appeared"))
	}
	n, err := s.Count(item)
	if err != nil {
		return err
	}
	if n == 0 {
		return failure.Assertf("catalog", "at least one "+item, "0", "")
	}
	return nil
}

// entryLayoutJS checks each entry by role and document order instead of by
// child index.
const entryLayoutJS = `(sel) => {
	const problems = [];
	document.querySelectorAll(sel).forEach((entry, i) => {
		const all = Array.from(entry.querySelectorAll('*'));
		const at = el => all.indexOf(el);
		const name = 'entry ' + (i + 1);
		if (all.length === 0 || all[0].textContent.trim() === '') {
			problems.push(name + ': first element is empty');
		}
		const label = all.find(e => e.textContent.includes('Type:') &&
			!Array.from(e.children).some(c => c.textContent.includes('Type:')));
		const img = entry.querySelector('img[src]');
		const details = all.find(e => (e.tagName === 'A' || e.tagName === 'BUTTON') &&
			e.textContent.trim() === 'Details');
		if (!label) problems.push(name + ': no "Type:" label');
		if (!img) problems.push(name + ': no image');
		if (!details) problems.push(name + ': no "Details" control');
		if (label && img && at(label) > at(img)) problems.push(name + ': image precedes type label');
		if (img && details && at(img) > at(details)) problems.push(name + ': details control precedes image');
	});
	return JSON.stringify(problems);
}`

// CatalogEntryLayout requires every entry to show a non-empty first element,
// a "Type:" label, an image and a "Details" control, in that order.
func CatalogEntryLayout(s *browser.Session, entry string) error {
	if _, err := s.WaitElement(entry); err != nil {
		return timeoutOr(err, failure.Assertf("layout", entry, "", "no entries appeared"))
	}
	raw, err := s.EvalString(entryLayoutJS, entry)
	if err != nil {
		return err
	}
	var problems []string
	if err := json.Unmarshal([]byte(raw), &problems); err != nil {
		return fmt.Errorf("decode layout report: %w", err)
	}
	if len(problems) > 0 {
		return failure.Assertf("layout", "title, type label, image, details control", strings.Join(problems, "; "), "")
	}
	return nil
}

// DetailsTitle waits for the details view and requires a non-empty title.
func DetailsTitle(s *browser.Session) error {
	if _, err := s.WaitElement(BookInformation); err != nil {
		return timeoutOr(err, failure.Assertf("details", BookInformation, "", "details view never appeared"))
	}
	title, err := s.Text(BookTitle)
	if err != nil {
		return timeoutOr(err, failure.Assertf("details", BookTitle, "", "no title element"))
	}
	if strings.TrimSpace(title) == "" {
		return failure.Assertf("details", "non-empty title", `""`, "")
	}
	return nil
}
