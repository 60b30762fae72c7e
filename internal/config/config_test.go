package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	RegisterRunFlags(cmd)
	// Merge persistent flags into Flags(), as cobra does during Execute.
	_ = cmd.ParseFlags(nil)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newTestCommand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StartURL != DefaultStartURL {
		t.Errorf("start url = %q", cfg.StartURL)
	}
	if cfg.MaxPages != DefaultMaxPages {
		t.Errorf("max pages = %d", cfg.MaxPages)
	}
	if cfg.DefaultExtension != ".pdf" {
		t.Errorf("default extension = %q", cfg.DefaultExtension)
	}
	if !cfg.BrowserHeadless {
		t.Error("browser should default to headless")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HARVEST_START_URL", "https://other.example.org/list")
	t.Setenv("HARVEST_MAX_PAGES", "7")

	cfg, err := Load(newTestCommand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StartURL != "https://other.example.org/list" {
		t.Errorf("start url = %q", cfg.StartURL)
	}
	if cfg.MaxPages != 7 {
		t.Errorf("max pages = %d", cfg.MaxPages)
	}
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Setenv("HARVEST_START_URL", "https://env.example.org/list")

	cmd := newTestCommand()
	for flag, value := range map[string]string{
		"url":       "https://flag.example.org/list",
		"max-pages": "3",
		"delay":     "250ms",
		"resume":    "true",
		"headed":    "true",
		"verbose":   "true",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("set %s: %v", flag, err)
		}
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StartURL != "https://flag.example.org/list" {
		t.Errorf("start url = %q", cfg.StartURL)
	}
	if cfg.MaxPages != 3 {
		t.Errorf("max pages = %d", cfg.MaxPages)
	}
	if cfg.PoliteDelay != 250*time.Millisecond {
		t.Errorf("delay = %v", cfg.PoliteDelay)
	}
	if !cfg.Resume {
		t.Error("resume not set")
	}
	if cfg.BrowserHeadless {
		t.Error("headed flag should disable headless")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		flag  string
		value string
	}{
		{"relative url", "url", "not-a-url"},
		{"zero max pages", "max-pages", "0"},
		{"extension without dot", "default-ext", "pdf"},
		{"empty output dir", "out", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newTestCommand()
			if err := cmd.Flags().Set(tc.flag, tc.value); err != nil {
				t.Fatalf("set %s: %v", tc.flag, err)
			}
			if _, err := Load(cmd); err == nil {
				t.Errorf("Load accepted %s=%q", tc.flag, tc.value)
			}
		})
	}
}
