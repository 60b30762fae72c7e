package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/doc-harvest/harvest/internal/app"
	"github.com/doc-harvest/harvest/internal/config"
)

const longDescription = `Harvest walks a JavaScript-rendered listing page by page, visits every
entry's detail page, and archives whatever it finds there: triggered
browser downloads, directly linked files, or a text capture of the page
itself. Every attempt is recorded in a CSV inventory so interrupted runs
can resume without repeating work.`

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "harvest",
	Short:   "Archive documents and submissions from a paginated listing",
	Long:    longDescription,
	Version: "0.1.0",
}

// Execute runs the CLI. The context carries interrupt-driven cancellation
// from main.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// The application is built lazily so -h and help never touch the
	// filesystem or start a browser.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp() != nil {
			return nil
		}
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a := GetApp(); a != nil {
			_ = a.Close(cmd.Context())
			SetApp(nil)
		}
	}
}
