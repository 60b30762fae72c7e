package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Crawl
	StartURL    string
	OutputDir   string
	MaxPages    int
	Resume      bool
	PoliteDelay time.Duration

	// Archive
	DefaultExtension string
	KeepDebug        bool

	// HTTP
	HTTPTimeout time.Duration
	UserAgent   string
	Proxy       string

	// Browser
	BrowserHeadless bool
	ChromePath      string
	NavTimeout      time.Duration
	DownloadTimeout time.Duration
}

// Load builds a Config by combining defaults, environment variables, and
// CLI flags, in that order of increasing precedence. Caller passes the
// command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:         DefaultLogLevel,
		JSONLog:          DefaultJSONLog,
		StartURL:         DefaultStartURL,
		OutputDir:        DefaultOutputDir,
		MaxPages:         DefaultMaxPages,
		Resume:           DefaultResume,
		PoliteDelay:      DefaultPoliteDelay,
		DefaultExtension: DefaultDefaultExt,
		KeepDebug:        DefaultKeepDebug,
		HTTPTimeout:      DefaultHTTPTimeout,
		UserAgent:        DefaultUserAgent,
		BrowserHeadless:  DefaultBrowserHeadless,
		NavTimeout:       DefaultNavTimeout,
		DownloadTimeout:  DefaultDownloadTimeout,
	}

	// Environment overrides
	if v := os.Getenv("HARVEST_START_URL"); v != "" {
		cfg.StartURL = v
	}
	if v := os.Getenv("HARVEST_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("HARVEST_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("HARVEST_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("HARVEST_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("HARVEST_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPages = n
		}
	}

	// CLI flags win over everything
	if cmd != nil {
		readFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFlags(cmd *cobra.Command, cfg *Config) {
	flagString(cmd, "url", &cfg.StartURL)
	flagString(cmd, "out", &cfg.OutputDir)
	flagString(cmd, "user-agent", &cfg.UserAgent)
	flagString(cmd, "proxy", &cfg.Proxy)
	flagString(cmd, "default-ext", &cfg.DefaultExtension)
	flagString(cmd, "chrome", &cfg.ChromePath)

	flagBool(cmd, "resume", &cfg.Resume)
	flagBool(cmd, "keep-debug", &cfg.KeepDebug)

	if f := cmd.Flags().Lookup("max-pages"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxPages = n
		}
	}
	if f := cmd.Flags().Lookup("delay"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.PoliteDelay = d
		}
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if f := cmd.Flags().Lookup("headed"); f != nil && f.Value.String() == "true" {
		cfg.BrowserHeadless = false
	}
	if f := cmd.Flags().Lookup("json"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}
}

func flagString(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}

func flagBool(cmd *cobra.Command, name string, dst *bool) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String() == "true"
	}
}
