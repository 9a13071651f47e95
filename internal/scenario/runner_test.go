package scenario

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/v0xg/bookcheck/internal/ai"
	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/failure"
)

// nilOpener hands out nil sessions; scenarios under test never touch them.
type nilOpener struct {
	err    error
	opened atomic.Int32
}

func (o *nilOpener) NewSession(ctx context.Context, name string) (*browser.Session, error) {
	o.opened.Add(1)
	return nil, o.err
}

type fakeTriage struct {
	got []ai.Failure
}

func (f *fakeTriage) Diagnose(ctx context.Context, fl ai.Failure) (ai.Diagnosis, error) {
	f.got = append(f.got, fl)
	return ai.Diagnosis{Category: "app_bug", Cause: "broken"}, nil
}

func fixed(name string, err error) Scenario {
	return Scenario{Name: name, Group: "g", Run: func(context.Context, *browser.Session) error { return err }}
}

func newRunner(o Opener) *Runner {
	return &Runner{Opener: o, Parallel: 4, ScenarioTimeout: time.Second}
}

func TestRunner_CollectsEveryResultInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	assertion := failure.Assertf("url", "/catalog", "/login", "")
	scenarios := []Scenario{
		fixed("passes", nil),
		fixed("asserts", assertion),
		fixed("times out", failure.Timeout(assertion, context.DeadlineExceeded)),
		fixed("dialog", &failure.UnexpectedDialog{Type: "alert", Message: "boom"}),
		{Name: "panics", Group: "g", Run: func(context.Context, *browser.Session) error { panic("nil page") }},
	}

	var seen atomic.Int32
	r := newRunner(&nilOpener{})
	r.OnResult = func(Result) { seen.Add(1) }
	out := r.Run(context.Background(), scenarios)

	require.Len(t, out.Results, 5)
	assert.NotEmpty(t, out.ID)
	assert.EqualValues(t, 5, seen.Load())
	assert.Equal(t, 4, out.Failed())

	labels := make([]string, len(out.Results))
	for i, res := range out.Results {
		assert.Equal(t, scenarios[i].Name, res.Name)
		labels[i] = res.Label
	}
	assert.Equal(t, []string{
		failure.LabelNone,
		failure.LabelAssertion,
		failure.LabelTimeout,
		failure.LabelUnexpectedDialog,
		failure.LabelEngine,
	}, labels)
	assert.True(t, out.Results[0].Passed)
	assert.Equal(t, browser.StateStart, out.Results[0].State)
	assert.ErrorContains(t, out.Results[4].Err, "scenario panicked: nil page")
}

func TestRunner_ScenarioDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRunner(&nilOpener{})
	r.ScenarioTimeout = 50 * time.Millisecond

	out := r.Run(context.Background(), []Scenario{
		{Name: "hangs", Run: func(ctx context.Context, _ *browser.Session) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		{Name: "engine error after deadline", Run: func(ctx context.Context, _ *browser.Session) error {
			<-ctx.Done()
			return errors.New("websocket closed")
		}},
		fixed("sibling", nil),
	})

	assert.Equal(t, failure.LabelTimeout, out.Results[0].Label)
	assert.Equal(t, failure.LabelTimeout, out.Results[1].Label)
	assert.ErrorContains(t, out.Results[1].Err, "scenario exceeded 50ms")
	assert.True(t, out.Results[2].Passed, "a timed-out scenario must not affect siblings")
}

func TestRunner_BoundsParallelism(t *testing.T) {
	defer goleak.VerifyNone(t)

	var running, peak atomic.Int32
	sc := Scenario{Name: "busy", Run: func(context.Context, *browser.Session) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}}

	r := newRunner(&nilOpener{})
	r.Parallel = 2
	out := r.Run(context.Background(), []Scenario{sc, sc, sc, sc, sc, sc})

	assert.Zero(t, out.Failed())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunner_StartRate(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRunner(&nilOpener{})
	r.StartRate = 20 // one start every 50ms after the first

	start := time.Now()
	r.Run(context.Background(), []Scenario{fixed("a", nil), fixed("b", nil), fixed("c", nil)})
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunner_OpenFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := &nilOpener{err: errors.New("target crashed")}
	called := false
	out := newRunner(o).Run(context.Background(), []Scenario{{Name: "x", Run: func(context.Context, *browser.Session) error {
		called = true
		return nil
	}}})

	assert.False(t, called)
	assert.False(t, out.Results[0].Passed)
	assert.Equal(t, failure.LabelEngine, out.Results[0].Label)
	assert.ErrorContains(t, out.Results[0].Err, "open session: target crashed")
	assert.Equal(t, browser.StateStart, out.Results[0].State)
}

func TestRunner_CancelledRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(&nilOpener{})
	r.StartRate = 1
	out := r.Run(ctx, []Scenario{fixed("a", nil), fixed("b", nil)})

	for _, res := range out.Results {
		assert.False(t, res.Passed)
		assert.Equal(t, failure.LabelCancelled, res.Label)
	}
}

func TestRunner_TriagesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTriage{}
	r := newRunner(&nilOpener{})
	r.Parallel = 1
	r.Triage = tr

	out := r.Run(context.Background(), []Scenario{
		fixed("ok", nil),
		fixed("bad", failure.Assertf("visible", "#user > span", "hidden", "")),
	})

	require.Len(t, tr.got, 1)
	assert.Equal(t, "bad", tr.got[0].Scenario)
	assert.Equal(t, failure.LabelAssertion, tr.got[0].Label)
	assert.Nil(t, out.Results[0].Diagnosis)
	require.NotNil(t, out.Results[1].Diagnosis)
	assert.Equal(t, "broken", out.Results[1].Diagnosis.Cause)
}
