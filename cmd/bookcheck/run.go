package main

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/bookcheck/internal/ai"
	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/config"
	"github.com/v0xg/bookcheck/internal/flows"
	"github.com/v0xg/bookcheck/internal/gifgen"
	"github.com/v0xg/bookcheck/internal/logging"
	"github.com/v0xg/bookcheck/internal/preflight"
	"github.com/v0xg/bookcheck/internal/report"
	"github.com/v0xg/bookcheck/internal/scenario"
)

const probeTimeout = 10 * time.Second

type selection struct {
	run   string
	group string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.run, "run", "", "Only scenarios whose name matches this regexp")
	cmd.Flags().StringVar(&s.group, "group", "", "Only this group: "+strings.Join(scenario.Groups, ", "))
}

func (s *selection) apply(all []scenario.Scenario) ([]scenario.Scenario, error) {
	var re *regexp.Regexp
	if s.run != "" {
		var err error
		if re, err = regexp.Compile(s.run); err != nil {
			return nil, fmt.Errorf("invalid --run pattern: %w", err)
		}
	}
	if s.group != "" && !slices.Contains(scenario.Groups, s.group) {
		return nil, fmt.Errorf("unknown group %q (known: %s)", s.group, strings.Join(scenario.Groups, ", "))
	}
	return scenario.Filter(all, re, s.group), nil
}

func suite(cfg *config.Config) []scenario.Scenario {
	return scenario.Suite(
		flows.NewEndpoints(cfg.BaseURL),
		flows.Credentials{Email: cfg.Seed.Email, Password: cfg.Seed.Password},
	)
}

func (c *cli) newRunCmd() *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the acceptance scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context(), cmd, sel)
		},
	}

	f := cmd.Flags()
	f.Int("parallel", 0, "Scenarios run at once (default 4)")
	f.Duration("action-timeout", 0, "Bound on every wait (default 10s)")
	f.Duration("scenario-timeout", 0, "Deadline for a whole scenario (default 60s)")
	f.Float64("start-rate", 0, "Scenario starts per second, 0 for unlimited")
	f.Bool("skip-preflight", false, "Do not probe the application before launching the browser")
	f.Bool("headless", true, "Run Chromium headless")
	f.String("browser-bin", "", "Chromium binary (default: auto-detect)")
	f.String("profile", "", "Chrome/Chromium profile directory (close browser first)")
	f.Bool("record", false, "Record every session and keep a GIF of each failure")
	f.String("artifacts-dir", "", "Where failure artifacts go (default ./artifacts)")
	f.String("json", "", "Write a JSON report to this file")
	f.String("junit", "", "Write a JUnit XML report to this file")
	f.String("metrics", "", "Write Prometheus textfile metrics to this file")
	f.String("triage", "", "Diagnose failures with an AI provider: claude, openai")
	f.String("model", "", "Specific model override for --triage")
	sel.register(cmd)
	return cmd
}

func (c *cli) run(ctx context.Context, cmd *cobra.Command, sel *selection) error {
	cfg := c.cfg
	log := logging.GetLogger().Named("runner")
	out := cmd.OutOrStdout()

	scenarios, err := sel.apply(suite(cfg))
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios selected")
	}

	if !cfg.SkipPreflight {
		if err := probe(ctx, cmd, cfg); err != nil {
			return err
		}
	}

	var triage ai.Provider
	if cfg.Triage.Provider != "" {
		triage, err = ai.NewProvider(cfg.Triage.Provider, cfg.Triage.Model)
		if err != nil {
			return fmt.Errorf("AI provider init failed: %w", err)
		}
	}

	fmt.Fprintf(out, "→ Launching browser... ")
	b, err := browser.Launch(ctx, browser.Options{
		Bin:           cfg.Browser.Bin,
		Headless:      cfg.Browser.Headless,
		Width:         cfg.Browser.Width,
		Height:        cfg.Browser.Height,
		ProfileDir:    cfg.Browser.ProfileDir,
		ActionTimeout: cfg.ActionTimeout,
		Record:        cfg.Artifacts.Record,
		Logger:        logging.GetLogger().Named("browser"),
	})
	if err != nil {
		fmt.Fprintln(out, "failed")
		return err
	}
	defer b.Close()
	fmt.Fprintln(out, "done")

	metrics := report.NewMetrics()
	runner := &scenario.Runner{
		Opener:          b,
		Parallel:        cfg.Parallel,
		StartRate:       cfg.StartRate,
		ScenarioTimeout: cfg.ScenarioTimeout,
		ArtifactsDir:    cfg.Artifacts.Dir,
		GIF:             gifgen.Options{FPS: cfg.Artifacts.FPS},
		Triage:          triage,
		Logger:          log,
		OnResult: func(r scenario.Result) {
			fmt.Fprintln(out, report.Line(r))
			metrics.ObserveResult(r)
		},
	}

	fmt.Fprintf(out, "→ Running %d scenarios against %s (parallel %d)\n", len(scenarios), cfg.BaseURL, cfg.Parallel)
	outcome := runner.Run(ctx, scenarios)
	metrics.ObserveRun(outcome)
	report.Console(out, outcome)

	if err := writeReports(cmd, cfg.Report, outcome, metrics); err != nil {
		return err
	}

	if outcome.Failed() > 0 {
		log.Warn("run failed", zap.String("run_id", outcome.ID), zap.Int("failed", outcome.Failed()))
		return errScenariosFailed
	}
	return nil
}

func writeReports(cmd *cobra.Command, cfg config.ReportConfig, o *scenario.Outcome, m *report.Metrics) error {
	out := cmd.OutOrStdout()
	writers := []struct {
		kind  string
		path  string
		write func(string) error
	}{
		{"JSON report", cfg.JSON, func(p string) error { return report.WriteJSON(p, o) }},
		{"JUnit report", cfg.JUnit, func(p string) error { return report.WriteJUnit(p, o) }},
		{"metrics", cfg.Metrics, m.WriteTextfile},
	}
	for _, w := range writers {
		if w.path == "" {
			continue
		}
		if err := w.write(w.path); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Saved %s to %s\n", w.kind, w.path)
	}
	return nil
}

func probe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "→ Probing %s... ", cfg.BaseURL)
	res, err := preflight.NewProber(probeTimeout).Probe(ctx, flows.NewEndpoints(cfg.BaseURL).Home, preflight.RequiredLinks)
	if err != nil {
		fmt.Fprintln(out, "failed")
		return fmt.Errorf("preflight: %w", err)
	}
	fmt.Fprintf(out, "done (HTTP %d, %d links, %s)\n", res.Status, len(res.Links), res.Duration.Round(time.Millisecond))
	return nil
}

func (c *cli) newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the application is reachable and links its main pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return probe(cmd.Context(), cmd, c.cfg)
		},
	}
}

func (c *cli) newListCmd() *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scenarios that run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenarios, err := sel.apply(suite(c.cfg))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			group := ""
			for _, sc := range scenarios {
				if sc.Group != group {
					group = sc.Group
					fmt.Fprintf(out, "%s\n", group)
				}
				fmt.Fprintf(out, "  %s\n", sc.Name)
			}
			fmt.Fprintf(out, "%d scenarios\n", len(scenarios))
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}
