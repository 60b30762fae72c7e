package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().StringP("out", "o", DefaultOutputDir, "Archive directory")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "30s", "Hard timeout for direct HTTP fetches")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
}

// RegisterRunFlags registers the flags specific to the run command.
func RegisterRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("url", "u", DefaultStartURL, "Listing URL to harvest")
	cmd.Flags().Int("max-pages", DefaultMaxPages, "Hard ceiling on index pages walked")
	cmd.Flags().Bool("resume", false, "Skip entities already present in the inventory")
	cmd.Flags().String("delay", DefaultPoliteDelay.String(), "Minimum delay between detail page visits")
	cmd.Flags().String("default-ext", DefaultDefaultExt, "Extension applied to extensionless downloads")
	cmd.Flags().Bool("headed", false, "Run the browser with a visible window")
	cmd.Flags().String("chrome", "", "Path to the Chrome/Chromium binary")
	cmd.Flags().Bool("keep-debug", false, "Keep page snapshots taken for diagnostics")
}
