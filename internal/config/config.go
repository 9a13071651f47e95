// Package config loads bookcheck settings from flags, BOOKCHECK_* environment
// variables and an optional YAML file through viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. BOOKCHECK_BASE_URL.
const EnvPrefix = "BOOKCHECK"

// Config holds all run settings.
type Config struct {
	BaseURL         string        `mapstructure:"base_url"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout"`
	Parallel        int           `mapstructure:"parallel"`
	StartRate       float64       `mapstructure:"start_rate"`
	SkipPreflight   bool          `mapstructure:"skip_preflight"`

	Browser   BrowserConfig   `mapstructure:"browser"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Report    ReportConfig    `mapstructure:"report"`
	Triage    TriageConfig    `mapstructure:"triage"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// BrowserConfig configures the Chromium instance shared by all sessions.
type BrowserConfig struct {
	Headless   bool   `mapstructure:"headless"`
	Bin        string `mapstructure:"bin"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	ProfileDir string `mapstructure:"profile_dir"`
}

// SeedConfig is the pre-registered account used by login-success scenarios.
type SeedConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// ArtifactsConfig controls what is kept from failed scenarios.
type ArtifactsConfig struct {
	Dir    string `mapstructure:"dir"`
	Record bool   `mapstructure:"record"`
	FPS    int    `mapstructure:"fps"`
}

// ReportConfig lists optional report files. Empty paths are skipped.
type ReportConfig struct {
	JSON    string `mapstructure:"json"`
	JUnit   string `mapstructure:"junit"`
	Metrics string `mapstructure:"metrics"`
}

// TriageConfig selects an AI provider for failure diagnosis. Empty disables it.
type TriageConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:3000")
	v.SetDefault("action_timeout", 10*time.Second)
	v.SetDefault("scenario_timeout", 60*time.Second)
	v.SetDefault("parallel", 4)
	v.SetDefault("start_rate", 0.0)
	v.SetDefault("skip_preflight", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.profile_dir", "")

	v.SetDefault("seed.email", "john@abv.bg")
	v.SetDefault("seed.password", "123456")

	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.record", false)
	v.SetDefault("artifacts.fps", 4)

	v.SetDefault("report.json", "")
	v.SetDefault("report.junit", "")
	v.SetDefault("report.metrics", "")

	v.SetDefault("triage.provider", "")
	v.SetDefault("triage.model", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML config file into v. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("bookcheck")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a Config populated only from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper decodes and validates the merged configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must include a host")
	}
	if c.ActionTimeout <= 0 {
		return fmt.Errorf("action_timeout must be positive")
	}
	if c.ScenarioTimeout < c.ActionTimeout {
		return fmt.Errorf("scenario_timeout (%s) must be at least action_timeout (%s)", c.ScenarioTimeout, c.ActionTimeout)
	}
	if c.Parallel <= 0 {
		return fmt.Errorf("parallel must be a positive integer")
	}
	if c.StartRate < 0 {
		return fmt.Errorf("start_rate cannot be negative")
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser viewport must be positive")
	}
	if c.Seed.Email == "" || c.Seed.Password == "" {
		return fmt.Errorf("seed.email and seed.password are required")
	}
	if c.Artifacts.Record && c.Artifacts.FPS <= 0 {
		return fmt.Errorf("artifacts.fps must be positive when recording")
	}
	switch c.Triage.Provider {
	case "", "claude", "anthropic", "openai", "gpt":
	default:
		return fmt.Errorf("unknown triage.provider %q (supported: claude, openai)", c.Triage.Provider)
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json")
	}
	return nil
}
