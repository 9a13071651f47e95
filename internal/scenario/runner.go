package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/v0xg/bookcheck/internal/ai"
	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/failure"
	"github.com/v0xg/bookcheck/internal/gifgen"
)

// Opener creates one isolated session per scenario. *browser.Browser is the
// production implementation.
type Opener interface {
	NewSession(ctx context.Context, name string) (*browser.Session, error)
}

// Result is the outcome of one scenario.
type Result struct {
	Name      string
	Group     string
	Passed    bool
	Err       error
	Label     string
	State     browser.State
	Started   time.Time
	Duration  time.Duration
	Artifacts []string
	Diagnosis *ai.Diagnosis
}

// Outcome is a completed run. Results keep suite order.
type Outcome struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Failed counts failed scenarios.
func (o *Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// Runner executes scenarios concurrently. A failing scenario never stops its
// siblings and there are no retries.
type Runner struct {
	Opener Opener

	// Parallel bounds how many scenarios run at once.
	Parallel int
	// StartRate limits scenario starts per second; zero means unlimited.
	StartRate float64
	// ScenarioTimeout is each scenario's deadline.
	ScenarioTimeout time.Duration

	// ArtifactsDir receives screenshots, page maps and GIFs of failures.
	// Empty disables artifacts.
	ArtifactsDir string
	GIF          gifgen.Options

	// Triage, if set, diagnoses each failure.
	Triage ai.Provider

	Logger *zap.Logger

	// OnResult is called as each scenario finishes. Calls are serialized.
	OnResult func(Result)
}

const triageTimeout = 45 * time.Second

// Run executes scenarios and waits for all of them.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) *Outcome {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	out := &Outcome{
		ID:      uuid.NewString(),
		Started: time.Now(),
		Results: make([]Result, len(scenarios)),
	}
	log = log.With(zap.String("run_id", out.ID))
	log.Info("run started", zap.Int("scenarios", len(scenarios)), zap.Int("parallel", r.Parallel))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.StartRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.StartRate), 1)
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(max(r.Parallel, 1))

	for i, sc := range scenarios {
		g.Go(func() error {
			var res Result
			if err := limiter.Wait(ctx); err != nil {
				res = Result{Name: sc.Name, Group: sc.Group, Err: err, Label: failure.Classify(err), State: browser.StateStart, Started: time.Now()}
			} else {
				res = r.runOne(ctx, out.ID, sc, log)
			}
			out.Results[i] = res

			if r.OnResult != nil {
				mu.Lock()
				r.OnResult(res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out.Duration = time.Since(out.Started)
	log.Info("run finished",
		zap.Int("failed", out.Failed()),
		zap.Int("total", len(out.Results)),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (r *Runner) runOne(ctx context.Context, runID string, sc Scenario, log *zap.Logger) Result {
	log = log.With(zap.String("scenario", sc.Name))
	res := Result{Name: sc.Name, Group: sc.Group, State: browser.StateStart, Started: time.Now()}

	sctx, cancel := context.WithTimeout(ctx, r.ScenarioTimeout)
	defer cancel()

	s, err := r.Opener.NewSession(sctx, sc.Name)
	if err != nil {
		res.Err = fmt.Errorf("open session: %w", err)
	} else {
		defer s.Close()
		res.Err = r.invoke(sctx, sc, s)
		res.State = s.State()
	}

	if res.Err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) && failure.Classify(res.Err) == failure.LabelEngine {
		res.Err = fmt.Errorf("scenario exceeded %s: %w", r.ScenarioTimeout, errors.Join(res.Err, context.DeadlineExceeded))
	}
	res.Passed = res.Err == nil
	res.Label = failure.Classify(res.Err)
	res.Duration = time.Since(res.Started)

	if !res.Passed {
		var page *browser.PageMap
		if s != nil && r.ArtifactsDir != "" {
			page = r.saveArtifacts(runID, sc, s, &res, log)
		}
		if r.Triage != nil {
			r.triage(ctx, &res, page, log)
		}
	}

	fields := []zap.Field{
		zap.String("group", sc.Group),
		zap.Bool("passed", res.Passed),
		zap.String("state", string(res.State)),
		zap.Duration("duration", res.Duration),
	}
	if res.Passed {
		log.Info("scenario passed", fields...)
	} else {
		log.Warn("scenario failed", append(fields, zap.String("label", res.Label), zap.Error(res.Err))...)
	}
	return res
}

// invoke runs the scenario and turns a panic into its error.
func (r *Runner) invoke(ctx context.Context, sc Scenario, s *browser.Session) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario panicked: %v", p)
		}
	}()
	return sc.Run(ctx, s)
}

func (r *Runner) triage(ctx context.Context, res *Result, page *browser.PageMap, log *zap.Logger) {
	tctx, cancel := context.WithTimeout(ctx, triageTimeout)
	defer cancel()

	d, err := r.Triage.Diagnose(tctx, ai.Failure{
		Scenario: res.Name,
		Group:    res.Group,
		Label:    res.Label,
		Error:    res.Err.Error(),
		State:    string(res.State),
		Page:     page,
	})
	if err != nil {
		log.Warn("triage failed", zap.Error(err))
		return
	}
	res.Diagnosis = &d
}
