package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/bookcheck/internal/ai"
	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/failure"
	"github.com/v0xg/bookcheck/internal/scenario"
)

func sampleOutcome() *scenario.Outcome {
	assertion := failure.Assertf("dialog", `alert containing "All fields are required!"`, "no dialog", "")
	return &scenario.Outcome{
		ID:       "3f2a",
		Started:  time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		Duration: 3 * time.Second,
		Results: []scenario.Result{
			{Name: `Verify "Login" button is visible`, Group: "home", Passed: true, Label: failure.LabelNone, State: browser.StateNavigating, Duration: 400 * time.Millisecond},
			{
				Name:      "Submit login form with empty fields",
				Group:     "login",
				Err:       failure.Timeout(assertion, nil),
				Label:     failure.LabelTimeout,
				State:     browser.StateTimedOut,
				Duration:  2 * time.Second,
				Artifacts: []string{"artifacts/3f2a/submit-login-form-with-empty-fields/screenshot.png"},
				Diagnosis: &ai.Diagnosis{Category: "app_bug", Cause: "validation missing"},
			},
			{Name: "Submit login form with valid credentials", Group: "login", Passed: true, Label: failure.LabelNone, State: browser.StateNavigated, Duration: time.Second},
		},
	}
}

func TestLine(t *testing.T) {
	o := sampleOutcome()
	assert.Equal(t, `  ✓ Verify "Login" button is visible (400ms)`, Line(o.Results[0]))
	assert.Equal(t,
		`  ✗ Submit login form with empty fields (2s, timeout): timeout: dialog: expected alert containing "All fields are required!", got no dialog`,
		Line(o.Results[1]))
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	Console(&buf, sampleOutcome())
	out := buf.String()

	assert.Contains(t, out, "✗ [login] Submit login form with empty fields")
	assert.Contains(t, out, "last state: timed_out")
	assert.Contains(t, out, "artifact: artifacts/3f2a/")
	assert.Contains(t, out, "triage: [app_bug] validation missing")
	assert.True(t, strings.HasSuffix(out, "✗ 1 of 3 scenarios failed in 3s (run 3f2a)\n"), out)

	buf.Reset()
	passing := sampleOutcome()
	passing.Results = passing.Results[:1]
	Console(&buf, passing)
	assert.Equal(t, "✓ 1 scenarios passed in 3s (run 3f2a)\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteJSON(path, sampleOutcome()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got jsonRun
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, int64(3000), got.DurationMS)
	require.Len(t, got.Scenarios, 3)
	assert.Empty(t, got.Scenarios[0].Error)
	assert.Equal(t, "timed_out", got.Scenarios[1].State)
	assert.Equal(t, "app_bug", got.Scenarios[1].Diagnosis.Category)
}

func TestJUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, WriteJUnit(path, sampleOutcome()))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(path))

	root := doc.SelectElement("testsuites")
	require.NotNil(t, root)
	assert.Equal(t, "3", root.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", root.SelectAttrValue("failures", ""))

	suites := root.SelectElements("testsuite")
	require.Len(t, suites, 2)
	assert.Equal(t, "home", suites[0].SelectAttrValue("name", ""))
	assert.Equal(t, "login", suites[1].SelectAttrValue("name", ""))
	assert.Equal(t, "2", suites[1].SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suites[1].SelectAttrValue("failures", ""))

	f := doc.FindElement(`//testcase[@name='Submit login form with empty fields']/failure`)
	require.NotNil(t, f)
	assert.Equal(t, "timeout", f.SelectAttrValue("type", ""))
	assert.Contains(t, f.Text(), "state: timed_out")
	assert.Contains(t, f.Text(), "triage: [app_bug] validation missing")

	prop := doc.FindElement(`//property[@name='run_id']`)
	require.NotNil(t, prop)
	assert.Equal(t, "3f2a", prop.SelectAttrValue("value", ""))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	o := sampleOutcome()
	for _, r := range o.Results {
		m.ObserveResult(r)
	}
	m.ObserveRun(o)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenariosTotal.WithLabelValues("login", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenariosTotal.WithLabelValues("login", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunFailed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RunDuration))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ScenarioDuration))

	path := filepath.Join(t.TempDir(), "bookcheck.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bookcheck_scenarios_total{group="home",outcome="passed"} 1`)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveResult(o.Results[0]) })
}
