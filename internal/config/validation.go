package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	u, err := url.Parse(c.StartURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("start url %q is not an absolute http(s) url", c.StartURL)
	}
	if c.MaxPages <= 0 || c.MaxPages > DefaultMaxPagesCeiling {
		return fmt.Errorf("max pages must be between 1 and %d", DefaultMaxPagesCeiling)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.PoliteDelay < 0 {
		return fmt.Errorf("delay must be >= 0")
	}
	if c.DefaultExtension != "" && !strings.HasPrefix(c.DefaultExtension, ".") {
		return fmt.Errorf("default extension must start with a dot, got %q", c.DefaultExtension)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	return nil
}
