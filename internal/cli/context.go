// Package cli provides the command-line interface for the harvest application.
package cli

import (
	"github.com/doc-harvest/harvest/internal/app"
)

// globalApp holds the Application shared by all commands for the lifetime
// of one Execute call.
var globalApp *app.Application

// SetApp stores the Application for command handlers to retrieve.
func SetApp(a *app.Application) {
	globalApp = a
}

// GetApp retrieves the Application set up by the root command.
func GetApp() *app.Application {
	return globalApp
}
