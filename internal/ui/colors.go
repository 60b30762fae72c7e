// Package ui holds the ANSI styling used by help text and the run summary.
package ui

const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[97m"
)

// Style helpers for the summary lines. Kept as plain string functions so
// callers can compose them with Sprintf freely.

func Bold(s string) string {
	return ColorBold + s + ColorReset
}

// Success styles saved-artifact counts.
func Success(s string) string {
	return ColorGreen + s + ColorReset
}

// Info styles neutral facts such as the stop reason.
func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

// Error styles failure counts.
func Error(s string) string {
	return ColorRed + s + ColorReset
}
