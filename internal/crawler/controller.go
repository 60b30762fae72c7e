package crawler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/doc-harvest/harvest/internal/extract"
	"github.com/doc-harvest/harvest/internal/ratelimit"
	"github.com/doc-harvest/harvest/internal/retry"
	"github.com/doc-harvest/harvest/internal/walker"
	"github.com/doc-harvest/harvest/pkg/models"
)

// Stop reasons recorded in the run summary.
const (
	StopExhausted = "pagination exhausted"
	StopLoop      = "index loop detected"
	StopCancelled = "cancelled"
)

// Page is the browser surface the controller needs for detail pages. The
// walker drives the same tab through its own interface.
type Page interface {
	extract.PageView
	Navigate(ctx context.Context, url string) error
	ExpandSections(ctx context.Context)
}

// IndexWalker enumerates index pages.
type IndexWalker interface {
	Start(ctx context.Context, url string) (*models.IndexPage, error)
	Advance(ctx context.Context) (walker.Outcome, error)
	DetailURL(id models.EntityID) string
}

// Extractor turns the currently shown detail page into inventory records.
type Extractor interface {
	Run(ctx context.Context, page extract.PageView, req extract.Request) ([]models.InventoryRecord, error)
}

// RecordSink persists inventory records as they are produced.
type RecordSink interface {
	Write(models.InventoryRecord) error
}

// Options tunes a crawl run.
type Options struct {
	StartURL string
	// Seen carries entity ids from a previous run's inventory on resume.
	Seen *SeenSet
	// Pacer spaces detail-page visits; nil disables pacing.
	Pacer ratelimit.Pacer
	// Retry governs detail-page navigation attempts.
	Retry retry.Config
	// Progress draws a per-page progress bar on stderr.
	Progress bool
	// SnapshotDetail, when set, receives the markup of detail pages that
	// produced no artifact at all.
	SnapshotDetail func(id models.EntityID, html string)
}

// Controller runs the crawl loop. All state lives in the controller and
// its collaborators; a Controller performs exactly one Run.
type Controller struct {
	page Page
	walk IndexWalker
	ex   Extractor
	sink RecordSink

	seen     *SeenSet
	pacer    ratelimit.Pacer
	retryCfg retry.Config
	progress bool
	startURL string
	snapshot func(id models.EntityID, html string)

	sum models.RunSummary
}

func New(page Page, walk IndexWalker, ex Extractor, sink RecordSink, opts Options) *Controller {
	seen := opts.Seen
	if seen == nil {
		seen = NewSeenSet()
	}
	return &Controller{
		page:     page,
		walk:     walk,
		ex:       ex,
		sink:     sink,
		seen:     seen,
		pacer:    opts.Pacer,
		retryCfg: opts.Retry,
		progress: opts.Progress,
		startURL: opts.StartURL,
		snapshot: opts.SnapshotDetail,
	}
}

// Run walks the index until pagination ends, a loop is detected, or the
// context is cancelled. Cancellation is honored between entities: the
// entity being processed finishes and its records are persisted before
// the run winds down. The returned summary is valid even when err != nil.
func (c *Controller) Run(ctx context.Context) (models.RunSummary, error) {
	c.sum.StartURL = c.startURL
	c.sum.StartedAt = time.Now()
	defer func() { c.sum.Elapsed = time.Since(c.sum.StartedAt) }()

	page, err := c.walk.Start(ctx, c.startURL)
	if err != nil {
		c.sum.StopReason = "start page unreachable"
		return c.sum, err
	}

	for {
		c.sum.PagesWalked++
		log.Info().Int("page", page.Number).Int("entities", len(page.Entities)).Msg("Processing index page")

		if cancelled := c.processPage(ctx, page); cancelled {
			c.sum.StopReason = StopCancelled
			return c.sum, ctx.Err()
		}

		if c.pacer != nil {
			if err := c.pacer.Wait(ctx, c.startURL); err != nil {
				c.sum.StopReason = StopCancelled
				return c.sum, ctx.Err()
			}
		}

		out, err := c.walk.Advance(ctx)
		if err != nil {
			c.sum.StopReason = "index navigation failed"
			return c.sum, fmt.Errorf("advance index: %w", err)
		}
		switch out.Kind {
		case walker.Continued:
			page = out.Page
		case walker.Exhausted:
			c.sum.StopReason = StopExhausted
			return c.sum, nil
		case walker.LoopDetected:
			c.sum.StopReason = StopLoop
			return c.sum, nil
		default:
			c.sum.StopReason = out.Kind.String()
			return c.sum, fmt.Errorf("unexpected walker outcome %v", out.Kind)
		}
	}
}

// processPage visits every not-yet-seen entity on an index page. Returns
// true when the context was cancelled partway through.
func (c *Controller) processPage(ctx context.Context, page *models.IndexPage) bool {
	bar := c.newBar(page)
	for _, id := range page.Entities {
		if ctx.Err() != nil {
			return true
		}
		if c.seen.HasEntity(id) {
			c.sum.EntitiesSkip++
			c.step(bar)
			continue
		}
		if cancelled := c.processEntity(ctx, id, page.Number); cancelled {
			// The entity was never attempted; it stays unseen so a resumed
			// run picks it up.
			c.finishBar(bar)
			return true
		}
		// Marked regardless of outcome: a failed entity is recorded as
		// failed, not retried on the next page or the next run.
		c.seen.MarkEntity(id)
		c.sum.EntitiesNew++
		c.step(bar)
	}
	c.finishBar(bar)
	return false
}

// processEntity navigates to the entity's detail page, runs the strategy
// chain, and persists whatever records come back. Real failures become
// records and never abort the run; cancellation before the visit reports
// true and leaves no trace, since the entity was not actually attempted.
func (c *Controller) processEntity(ctx context.Context, id models.EntityID, pageNo int) bool {
	detailURL := c.walk.DetailURL(id)
	req := extract.Request{EntityID: id, DetailURL: detailURL, IndexPage: pageNo}

	if c.pacer != nil {
		if err := c.pacer.Wait(ctx, detailURL); err != nil {
			if ctx.Err() != nil {
				return true
			}
			log.Warn().Err(err).Str("entity", string(id)).Msg("Pacer wait failed")
			c.writeRecord(navErrorRecord(req))
			return false
		}
	}

	err := retry.WithRetry(ctx, c.retryCfg, func() error {
		return c.page.Navigate(ctx, detailURL)
	})
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		log.Warn().Err(err).Str("entity", string(id)).Str("url", detailURL).Msg("Detail page unreachable")
		c.writeRecord(navErrorRecord(req))
		return false
	}
	c.page.ExpandSections(ctx)

	// Extraction in flight is not interrupted by cancellation; the stop
	// request takes effect before the next entity.
	workCtx := context.WithoutCancel(ctx)
	records, err := c.ex.Run(workCtx, c.page, req)
	if err != nil {
		log.Warn().Err(err).Str("entity", string(id)).Msg("Extraction failed")
		c.writeRecord(navErrorRecord(req))
		return false
	}
	for _, rec := range records {
		c.writeRecord(rec)
	}
	if c.snapshot != nil && allNoFile(records) {
		if html, err := c.page.HTML(workCtx); err == nil {
			c.snapshot(id, html)
		}
	}
	return false
}

func allNoFile(records []models.InventoryRecord) bool {
	for _, rec := range records {
		if rec.Status != models.StatusNoFile {
			return false
		}
	}
	return len(records) > 0
}

func (c *Controller) writeRecord(rec models.InventoryRecord) {
	if err := c.sink.Write(rec); err != nil {
		log.Error().Err(err).Str("entity", string(rec.EntityID)).Msg("Failed to persist inventory record")
		return
	}
	c.sum.Records++
	switch {
	case rec.Status == models.StatusDownloaded:
		c.sum.Downloaded++
	case rec.Status == models.StatusTextCaptured:
		c.sum.TextCaptured++
	case isFailure(rec.Status):
		c.sum.Failed++
	}
}

func isFailure(status models.RecordStatus) bool {
	return status == models.StatusDownloadError ||
		status == models.StatusNavError ||
		strings.HasPrefix(string(status), "http_")
}

func navErrorRecord(req extract.Request) models.InventoryRecord {
	return models.InventoryRecord{
		EntityID:  req.EntityID,
		IndexPage: req.IndexPage,
		DetailURL: req.DetailURL,
		Status:    models.StatusNavError,
		Mechanism: models.MechanismNone,
	}
}

func (c *Controller) newBar(page *models.IndexPage) *progressbar.ProgressBar {
	if !c.progress || len(page.Entities) == 0 {
		return nil
	}
	return progressbar.NewOptions(len(page.Entities),
		progressbar.OptionSetDescription(fmt.Sprintf("page %d", page.Number)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *Controller) step(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

func (c *Controller) finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
