// Package extract turns a rendered detail page into inventory outcomes by
// trying acquisition strategies in priority order: a triggered browser
// download first, then direct file links, then a text capture of the page
// body. A strategy either handles the page (the chain stops) or declines
// (the chain moves on); earlier failed attempts keep their outcomes either
// way.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/internal/browser"
	"github.com/doc-harvest/harvest/pkg/models"
)

// PageView is the slice of the browser session a strategy may touch. The
// page is already rendered and expanded when the chain runs.
type PageView interface {
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	AwaitDownload(ctx context.Context, selector string, timeout time.Duration) (*browser.Download, error)
}

// Request identifies the entity whose detail page the tab is showing.
type Request struct {
	EntityID  models.EntityID
	DetailURL string
	IndexPage int
}

// Outcome is one strategy attempt's contribution to the inventory.
type Outcome struct {
	Mechanism models.Mechanism
	Status    models.RecordStatus
	FileURL   string
	LocalPath string
}

// Strategy is one acquisition approach. Attempt returns its outcomes, a
// flag saying whether the page is handled (stop the chain), and an error
// only for failures that invalidate the whole page visit. Declining is
// (nil, false, nil).
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, page PageView, doc *goquery.Document, req Request) ([]Outcome, bool, error)
}

// Chain runs strategies in order and assembles inventory records.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain from strategies in priority order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Run parses the page once, hands the document to each strategy until one
// handles it, and stamps the accumulated outcomes into inventory records.
// A page no strategy handles and no strategy produced outcomes for yields
// a single no_file_found record, so every visited entity appears in the
// inventory exactly as often as something was attempted for it.
func (c *Chain) Run(ctx context.Context, page PageView, req Request) ([]models.InventoryRecord, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detail markup: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail markup: %w", err)
	}
	meta := ParseMeta(doc)

	var outcomes []Outcome
	for _, strat := range c.strategies {
		out, handled, err := strat.Attempt(ctx, page, doc, req)
		outcomes = append(outcomes, out...)
		if err != nil {
			log.Warn().Err(err).Str("strategy", strat.Name()).Str("entity", string(req.EntityID)).Msg("Strategy failed")
			continue
		}
		if handled {
			log.Debug().Str("strategy", strat.Name()).Str("entity", string(req.EntityID)).Int("outcomes", len(out)).Msg("Page handled")
			break
		}
	}

	if len(outcomes) == 0 {
		outcomes = []Outcome{{Mechanism: models.MechanismNone, Status: models.StatusNoFile}}
	}

	records := make([]models.InventoryRecord, len(outcomes))
	for i, out := range outcomes {
		records[i] = models.InventoryRecord{
			EntityID:  req.EntityID,
			IndexPage: req.IndexPage,
			DetailURL: req.DetailURL,
			FileURL:   out.FileURL,
			LocalPath: out.LocalPath,
			Status:    out.Status,
			Mechanism: out.Mechanism,
			Meta:      meta,
		}
	}
	return records, nil
}

// resolveURL makes a possibly-relative href absolute against the detail
// page URL.
func resolveURL(base, href string) string {
	rel, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if rel.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(rel).String()
}
