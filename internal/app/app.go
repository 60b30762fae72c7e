// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/internal/archive"
	"github.com/doc-harvest/harvest/internal/browser"
	"github.com/doc-harvest/harvest/internal/config"
	"github.com/doc-harvest/harvest/internal/fetch"
	"github.com/doc-harvest/harvest/internal/ratelimit"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Store   *archive.Store
	Fetcher *fetch.Fetcher
	Pacer   *ratelimit.HostPacer

	Session   *browser.Session
	sessionMu sync.Mutex

	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// The browser session is not started here: commands that never touch the
// site (report rendering, help) must not launch Chrome. Use EnsureSession
// before the first navigation.
func New(_ context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	store := archive.New(cfg.OutputDir, cfg.DefaultExtension)
	if err := store.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare archive at %s: %w", cfg.OutputDir, err)
	}
	logger.Debug().Str("root", store.Root()).Msg("Archive prepared")

	fetcher := fetch.New(cfg.HTTPTimeout, cfg.UserAgent)
	pacer := ratelimit.Every(cfg.PoliteDelay)

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Store:     store,
		Fetcher:   fetcher,
		Pacer:     pacer,
		startTime: time.Now(),
	}
	logger.Debug().Msg("Application initialized")
	return app, nil
}

// EnsureSession lazily starts the browser session if it has not already
// been started.
func (a *Application) EnsureSession(_ context.Context) error {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()

	if a.Session != nil {
		return nil
	}

	chromePath := a.Config.ChromePath
	if chromePath == "" {
		chromePath = browser.FindChrome()
	}
	if chromePath == "" {
		return fmt.Errorf("no Chrome/Chromium binary found; set --chrome or HARVEST_CHROME_PATH")
	}

	session, err := browser.NewSession(browser.Options{
		Headless:    a.Config.BrowserHeadless,
		UserAgent:   a.Config.UserAgent,
		Proxy:       a.Config.Proxy,
		ChromePath:  chromePath,
		DownloadDir: a.Store.StagingDir(),
		NavTimeout:  a.Config.NavTimeout,
	})
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	a.Session = session
	a.Logger.Info().Str("chrome", chromePath).Bool("headless", a.Config.BrowserHeadless).Msg("Browser session started")
	return nil
}

// Close gracefully shuts down the application and all its resources.
// Errors during shutdown are logged but never block the remaining steps.
func (a *Application) Close(_ context.Context) error {
	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Shutting down application")

	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	if a.Session != nil {
		a.Session.Close()
		a.Session = nil
	}
	return nil
}
