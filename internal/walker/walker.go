// Package walker enumerates the paginated index of a listing: it extracts
// entity links from the current page, advances to the next one, and decides
// when enumeration must stop (natural end, loop, or page ceiling).
package walker

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/internal/identify"
	"github.com/doc-harvest/harvest/pkg/models"
)

// PageSource is the rendered-page surface the walker navigates. The
// browser session implements it; tests script it.
type PageSource interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
}

// FingerprintSet is the loop-detection state. It is owned by the crawl
// controller's seen-set; the walker only consults it, keeping the walker
// itself stateless with respect to run-global dedup state.
type FingerprintSet interface {
	HasFingerprint(fp string) bool
	AddFingerprint(fp string)
}

// OutcomeKind classifies the result of an advance.
type OutcomeKind int

const (
	// Continued means a new, distinct index page was captured.
	Continued OutcomeKind = iota
	// Exhausted means pagination has no further distinct page, the page
	// ceiling was hit, or the authoritative page count was reached.
	Exhausted
	// LoopDetected means the new page shows an entity-id set already seen
	// this run: the pagination control silently stopped advancing.
	LoopDetected
)

func (k OutcomeKind) String() string {
	switch k {
	case Continued:
		return "continued"
	case Exhausted:
		return "exhausted"
	case LoopDetected:
		return "loop_detected"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the sum result of Advance. Page is set only for Continued.
type Outcome struct {
	Kind OutcomeKind
	Page *models.IndexPage
}

// Options configures a Walker.
type Options struct {
	DetailRules  []LinkRule
	NextRules    []LinkRule
	MaxPages     int
	ClickTimeout time.Duration
	Fingerprints FingerprintSet
	// Snapshot, when set, receives the raw markup of index pages that
	// yielded zero entity links (selector-drift diagnostics).
	Snapshot func(pageNo int, html string)
}

var pageOfTotal = regexp.MustCompile(`(?i)Page\s+\d+\s+of\s+(\d+)`)

// Walker enumerates index pages through a PageSource.
type Walker struct {
	source PageSource
	opts   Options

	pageNo     int
	currentURL string
	current    *models.IndexPage
	detailURLs map[models.EntityID]string
	totalHint  int
}

// New creates a Walker. Fingerprints must be provided; the remaining
// options default sensibly.
func New(source PageSource, opts Options) *Walker {
	if len(opts.DetailRules) == 0 {
		opts.DetailRules = DefaultDetailRules
	}
	if len(opts.NextRules) == 0 {
		opts.NextRules = DefaultNextRules
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 5 * time.Second
	}
	return &Walker{source: source, opts: opts}
}

// Start captures the first index page, navigating there first unless the
// tab already shows it (the caller may have opened the start page to warm
// up cookies).
func (w *Walker) Start(ctx context.Context, startURL string) (*models.IndexPage, error) {
	if loc, err := w.source.Location(ctx); err != nil || loc != startURL {
		if err := w.source.Navigate(ctx, startURL); err != nil {
			return nil, fmt.Errorf("navigate to start page: %w", err)
		}
	}

	page, fp, html, err := w.capture(ctx, 1, startURL)
	if err != nil {
		return nil, err
	}
	w.opts.Fingerprints.AddFingerprint(fp)
	w.pageNo = 1
	w.current = page
	w.currentURL = page.URL

	if hint := detectTotalPages(html); hint > 0 {
		w.totalHint = hint
		log.Info().Int("total_pages", hint).Msg("Pagination reports a total page count")
	}
	return page, nil
}

// Current returns the most recently captured index page.
func (w *Walker) Current() *models.IndexPage { return w.current }

// DetailURL returns the detail-page URL for an entity on the current page.
func (w *Walker) DetailURL(id models.EntityID) string { return w.detailURLs[id] }

// Advance moves to the next index page and captures it. The walker first
// returns to the index URL (the controller leaves the tab on a detail page
// after extraction), then tries the pagination control, then falls back to
// incrementing the page query parameter.
func (w *Walker) Advance(ctx context.Context) (Outcome, error) {
	if w.pageNo >= w.opts.MaxPages {
		log.Warn().Int("max_pages", w.opts.MaxPages).Msg("Page ceiling reached, stopping")
		return Outcome{Kind: Exhausted}, nil
	}
	if w.totalHint > 0 && w.pageNo >= w.totalHint {
		log.Info().Int("total_pages", w.totalHint).Msg("Reached reported last page, stopping")
		return Outcome{Kind: Exhausted}, nil
	}

	if loc, err := w.source.Location(ctx); err == nil && loc != w.currentURL {
		if err := w.source.Navigate(ctx, w.currentURL); err != nil {
			return Outcome{}, fmt.Errorf("return to index page: %w", err)
		}
	}

	nextURL, moved, err := w.moveNext(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !moved {
		return Outcome{Kind: Exhausted}, nil
	}

	page, fp, _, err := w.capture(ctx, w.pageNo+1, nextURL)
	if err != nil {
		return Outcome{}, err
	}
	if w.opts.Fingerprints.HasFingerprint(fp) {
		log.Info().Int("page", page.Number).Msg("Repeating index page detected (same entity ids), stopping to avoid loop")
		return Outcome{Kind: LoopDetected}, nil
	}
	w.opts.Fingerprints.AddFingerprint(fp)
	w.pageNo = page.Number
	w.current = page
	w.currentURL = page.URL
	return Outcome{Kind: Continued, Page: page}, nil
}

// moveNext advances the tab to the next index page, returning its URL and
// whether a new, distinct location was reached.
func (w *Walker) moveNext(ctx context.Context) (string, bool, error) {
	html, err := w.source.HTML(ctx)
	if err != nil {
		return "", false, fmt.Errorf("read index markup: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("parse index markup: %w", err)
	}

	// Preferred: the pagination control itself.
	for _, rule := range w.opts.NextRules {
		if doc.Find(rule.Selector).Length() == 0 {
			continue
		}
		if err := w.source.Click(ctx, rule.Selector, w.opts.ClickTimeout); err != nil {
			log.Debug().Err(err).Str("rule", rule.Description).Msg("Next control click failed")
			continue
		}
		// The click starts a navigation; poll until the location moves.
		deadline := time.Now().Add(w.opts.ClickTimeout)
		for {
			loc, err := w.source.Location(ctx)
			if err == nil && loc != "" && loc != w.currentURL {
				return loc, true, nil
			}
			if time.Now().After(deadline) || ctx.Err() != nil {
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		log.Debug().Str("rule", rule.Description).Msg("Next control did not change location")
		break
	}

	// Fallback: increment the page query parameter deterministically.
	nextURL, ok := incrementPageParam(w.currentURL)
	if !ok || nextURL == w.currentURL {
		return "", false, nil
	}
	if err := w.source.Navigate(ctx, nextURL); err != nil {
		return "", false, fmt.Errorf("navigate to next index url: %w", err)
	}
	return nextURL, true, nil
}

// capture extracts the entity links visible on the current tab and builds
// the immutable IndexPage snapshot.
func (w *Walker) capture(ctx context.Context, pageNo int, fallbackURL string) (*models.IndexPage, string, string, error) {
	pageURL := fallbackURL
	if loc, err := w.source.Location(ctx); err == nil && loc != "" {
		pageURL = loc
	}

	html, err := w.source.HTML(ctx)
	if err != nil {
		return nil, "", "", fmt.Errorf("read index markup: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", "", fmt.Errorf("parse index markup: %w", err)
	}

	links := w.extractDetailLinks(doc, pageURL)
	if len(links) == 0 {
		log.Warn().Int("page", pageNo).Msg("No entity links found on index page")
		if w.opts.Snapshot != nil {
			w.opts.Snapshot(pageNo, html)
		}
	}

	w.detailURLs = make(map[models.EntityID]string, len(links))
	ids := make([]models.EntityID, 0, len(links))
	for _, link := range links {
		id := identify.MustIdentify(link)
		if _, dup := w.detailURLs[id]; dup {
			continue
		}
		w.detailURLs[id] = link
		ids = append(ids, id)
	}

	page := &models.IndexPage{Number: pageNo, URL: pageURL, Entities: ids}
	return page, Fingerprint(ids), html, nil
}

// extractDetailLinks applies the rule table in order, then falls back to a
// broad anchor scan filtered by the same URL-shape rule the identifier
// uses.
func (w *Walker) extractDetailLinks(doc *goquery.Document, baseURL string) []string {
	for _, rule := range w.opts.DetailRules {
		links := collectHrefs(doc, rule.Selector, baseURL, nil)
		if len(links) > 0 {
			log.Debug().Str("rule", rule.Description).Int("links", len(links)).Msg("Detail links extracted")
			return links
		}
	}
	links := collectHrefs(doc, "a[href]", baseURL, identify.IsDetailURL)
	if len(links) > 0 {
		log.Debug().Int("links", len(links)).Msg("Detail links extracted by broad scan")
	}
	return links
}

func collectHrefs(doc *goquery.Document, selector, baseURL string, keep func(string) bool) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolveURL(baseURL, href)
		if resolved == "" {
			return
		}
		if keep != nil && !keep(resolved) {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

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

// incrementPageParam bumps the numeric "page" query parameter, treating an
// absent parameter as page 0 (the server counts pages from zero even
// though the UI shows one-based numbers).
func incrementPageParam(current string) (string, bool) {
	u, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	q := u.Query()
	n := 0
	if v := q.Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return "", false
		}
		n = parsed
	}
	q.Set("page", strconv.Itoa(n+1))
	u.RawQuery = q.Encode()
	return u.String(), true
}

// detectTotalPages looks for an authoritative "Page X of Y" indicator in
// the pagination nav, falling back to the largest page= value among the
// pagination links. Zero means no hint; the hint only short-circuits, it
// never replaces fingerprint-based loop detection.
func detectTotalPages(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	nav := doc.Find(paginationNavSelector)
	if nav.Length() == 0 {
		return 0
	}
	if m := pageOfTotal.FindStringSubmatch(nav.Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}

	max := 0
	nav.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if v := u.Query().Get("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > max {
				max = n
			}
		}
	})
	if max > 0 {
		// page= is zero-based, the hint counts one-based pages.
		return max + 1
	}
	return 0
}
