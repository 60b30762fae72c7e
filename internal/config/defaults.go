package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel  = "info"
	DefaultJSONLog   = false
	DefaultUserAgent = "Harvest/1.0 (+https://github.com/doc-harvest/harvest)"

	// DefaultStartURL is the published-feedback listing harvested when no
	// --url is given.
	DefaultStartURL = "https://ec.europa.eu/info/law/better-regulation/have-your-say/initiatives/12527-Artificial-intelligence-ethical-and-legal-requirements/feedback_en"

	DefaultOutputDir       = "harvest-archive"
	DefaultMaxPages        = 200
	DefaultDefaultExt      = ".pdf"
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultNavTimeout      = 45 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
	DefaultPoliteDelay     = 1500 * time.Millisecond
	DefaultBrowserHeadless = true
	DefaultKeepDebug       = false
	DefaultResume          = false
	DefaultMaxPagesCeiling = 10000
)
