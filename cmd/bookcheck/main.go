package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/v0xg/bookcheck/internal/config"
	"github.com/v0xg/bookcheck/internal/logging"
)

// errScenariosFailed exits with status 1 without printing a usage error.
var errScenariosFailed = errors.New("scenarios failed")

// cli carries state shared by the subcommands.
type cli struct {
	configPath string
	v          *viper.Viper
	cfg        *config.Config
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"base-url":         "base_url",
	"action-timeout":   "action_timeout",
	"scenario-timeout": "scenario_timeout",
	"parallel":         "parallel",
	"start-rate":       "start_rate",
	"skip-preflight":   "skip_preflight",
	"headless":         "browser.headless",
	"browser-bin":      "browser.bin",
	"profile":          "browser.profile_dir",
	"record":           "artifacts.record",
	"artifacts-dir":    "artifacts.dir",
	"json":             "report.json",
	"junit":            "report.junit",
	"metrics":          "report.metrics",
	"triage":           "triage.provider",
	"model":            "triage.model",
	"log-level":        "logger.level",
	"log-format":       "logger.format",
	"log-file":         "logger.file",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		if !errors.Is(err, errScenariosFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "bookcheck",
		Short: "Browser acceptance checks for the book library web app",
		Long: `bookcheck drives a headless Chromium through the book library's user flows:
guest browsing, login, registration, adding books, the catalog and book details.
Each scenario runs in its own incognito session against a running application.

Example:
  bookcheck run --base-url http://localhost:3000 --group login --junit junit.xml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Config file (default: ./bookcheck.yaml if present)")
	pf.String("base-url", "", "Application base URL (default http://localhost:3000)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: console, json")
	pf.String("log-file", "", "Also write JSON logs to this rotated file")

	rootCmd.AddCommand(c.newRunCmd(), c.newListCmd(), c.newProbeCmd())
	return rootCmd
}

// load merges .env, the config file, BOOKCHECK_* variables and flags, then
// starts the logger.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	c.v = config.NewViper()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := c.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	if err := config.ReadFile(c.v, c.configPath); err != nil {
		return err
	}

	cfg, err := config.NewConfigFromViper(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logging.InitializeLogger(cfg.Logger)
	return nil
}
