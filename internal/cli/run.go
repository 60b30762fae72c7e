package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/doc-harvest/harvest/internal/config"
	"github.com/doc-harvest/harvest/internal/crawler"
	"github.com/doc-harvest/harvest/internal/extract"
	"github.com/doc-harvest/harvest/internal/inventory"
	"github.com/doc-harvest/harvest/internal/retry"
	"github.com/doc-harvest/harvest/internal/ui"
	"github.com/doc-harvest/harvest/internal/walker"
	"github.com/doc-harvest/harvest/pkg/models"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the listing and archive every entry",
	Example: `  # Harvest the default listing into ./harvest-archive
  harvest run

  # Harvest a different listing, at most 10 index pages
  harvest run --url https://example.org/consultations/feedback_en --max-pages 10

  # Pick up where an interrupted run left off
  harvest run --resume

  # Watch the browser work
  harvest run --headed -v`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	config.RegisterRunFlags(runCmd)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	a := GetApp()
	cfg := a.Config
	ctx := cmd.Context()

	if err := a.EnsureSession(ctx); err != nil {
		return err
	}

	seen := crawler.NewSeenSet()
	if cfg.Resume {
		ids, err := inventory.ReadSeen(a.Store.InventoryCSVPath())
		if err != nil {
			return fmt.Errorf("read previous inventory: %w", err)
		}
		seen.Seed(ids)
		log.Info().Int("entities", len(ids)).Msg("Resuming, previously processed entities will be skipped")
	}

	sink, err := inventory.Open(a.Store.InventoryCSVPath())
	if err != nil {
		return err
	}
	defer sink.Close()

	// Warm the fetcher with the site's cookies so direct fetches ride the
	// consented browser session.
	if err := a.Session.Navigate(ctx, cfg.StartURL); err != nil {
		return fmt.Errorf("open start page: %w", err)
	}
	if cookies, err := a.Session.Cookies(ctx); err == nil {
		a.Fetcher.ImportCookies(cfg.StartURL, cookies)
	} else {
		log.Debug().Err(err).Msg("Could not import browser cookies")
	}

	walk := walker.New(a.Session, walker.Options{
		MaxPages:     cfg.MaxPages,
		Fingerprints: seen,
		Snapshot: func(pageNo int, html string) {
			a.Store.SnapshotIndex(pageNo, html)
		},
	})

	trigger := extract.NewTriggerStrategy(a.Store)
	trigger.Timeout = cfg.DownloadTimeout
	chain := extract.NewChain(
		trigger,
		extract.NewDirectLinkStrategy(a.Store, a.Fetcher, retry.DefaultConfig()),
		extract.NewTextCaptureStrategy(a.Store),
	)

	ctl := crawler.New(a.Session, walk, chain, sink, crawler.Options{
		StartURL: cfg.StartURL,
		Seen:     seen,
		Pacer:    a.Pacer,
		Retry:    retry.DefaultConfig(),
		Progress: cfg.LogLevel == "info",
		SnapshotDetail: func(id models.EntityID, html string) {
			a.Store.SnapshotDetail(id, html)
		},
	})

	sum, runErr := ctl.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error().Err(runErr).Msg("Run ended with an error")
	}

	if err := writeReport(a.Store.ReportPath(), a.Store.InventoryCSVPath(), sum); err != nil {
		log.Warn().Err(err).Msg("Could not write run report")
	}
	if !cfg.KeepDebug {
		if err := a.Store.RemoveDebug(); err != nil {
			log.Debug().Err(err).Msg("Could not remove debug snapshots")
		}
	}

	printSummary(sum)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func writeReport(reportPath, inventoryPath string, sum models.RunSummary) error {
	records, err := inventory.ReadRecords(inventoryPath)
	if err != nil {
		return err
	}
	f, err := os.Create(reportPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return inventory.WriteReport(f, sum, records)
}

func printSummary(sum models.RunSummary) {
	fmt.Println()
	fmt.Println(ui.Bold("Harvest complete"))
	fmt.Printf("  Index pages walked   %d\n", sum.PagesWalked)
	fmt.Printf("  Entities processed   %d (skipped %d already seen)\n", sum.EntitiesNew, sum.EntitiesSkip)
	fmt.Printf("  Documents saved      %s\n", ui.Success(fmt.Sprintf("%d", sum.Downloaded)))
	fmt.Printf("  Text captures        %s\n", ui.Success(fmt.Sprintf("%d", sum.TextCaptured)))
	if sum.Failed > 0 {
		fmt.Printf("  Failed attempts      %s\n", ui.Error(fmt.Sprintf("%d", sum.Failed)))
	}
	fmt.Printf("  Stopped              %s\n", ui.Info(sum.StopReason))
	fmt.Printf("  Elapsed              %s\n", sum.Elapsed.Round(10*time.Millisecond).String())
}
