package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/internal/archive"
	"github.com/doc-harvest/harvest/internal/fetch"
	"github.com/doc-harvest/harvest/internal/retry"
	"github.com/doc-harvest/harvest/pkg/models"
)

var (
	// fileExtPattern recognizes hrefs that point straight at a document.
	fileExtPattern = regexp.MustCompile(`(?i)\.(pdf|docx?|zip)($|\?)`)
	// hintPattern recognizes anchors whose href or label suggests an
	// attachment even without a file extension in the URL.
	hintPattern = regexp.MustCompile(`(?i)(attachment|download|enclosure|document|file|resource)`)
)

// DirectLinkStrategy fetches document hrefs found in the page markup over
// plain HTTP. Every candidate link is attempted and every attempt gets an
// inventory outcome; the strategy handles the page only if at least one
// fetch saved a file, so a page of dead links still falls through to text
// capture with its failures on record.
type DirectLinkStrategy struct {
	Store    *archive.Store
	Fetcher  *fetch.Fetcher
	Retry    retry.Config
	MaxLinks int
}

// NewDirectLinkStrategy caps candidates at 10 links per page.
func NewDirectLinkStrategy(store *archive.Store, fetcher *fetch.Fetcher, retryCfg retry.Config) *DirectLinkStrategy {
	return &DirectLinkStrategy{Store: store, Fetcher: fetcher, Retry: retryCfg, MaxLinks: 10}
}

func (s *DirectLinkStrategy) Name() string { return "direct-link" }

func (s *DirectLinkStrategy) Attempt(ctx context.Context, _ PageView, doc *goquery.Document, req Request) ([]Outcome, bool, error) {
	candidates := s.candidateLinks(doc, req.DetailURL)
	if len(candidates) == 0 {
		return nil, false, nil
	}

	var outcomes []Outcome
	saved := false
	for _, link := range candidates {
		out := s.fetchOne(ctx, link, req)
		outcomes = append(outcomes, out)
		if out.Status == models.StatusDownloaded {
			saved = true
		}
	}
	return outcomes, saved, nil
}

func (s *DirectLinkStrategy) fetchOne(ctx context.Context, link string, req Request) Outcome {
	out := Outcome{Mechanism: models.MechanismDirectLink, FileURL: link}

	linkName := archive.SanitizeFilename(link)
	if existing, ok := s.Store.ExistingDocumentNamed(req.EntityID, linkName); ok {
		log.Debug().Str("entity", string(req.EntityID)).Str("path", existing).Msg("Reusing archived document")
		out.Status = models.StatusDownloaded
		out.LocalPath = existing
		return out
	}

	var result *fetch.Result
	err := retry.WithRetry(ctx, s.Retry, func() error {
		res, err := s.Fetcher.Fetch(ctx, link)
		result = res
		return err
	})
	if err != nil {
		var httpErr retry.HTTPError
		if errors.As(err, &httpErr) {
			out.Status = models.HTTPStatus(httpErr.StatusCode)
		} else {
			out.Status = models.StatusDownloadError
		}
		log.Warn().Err(err).Str("entity", string(req.EntityID)).Str("url", link).Msg("Direct fetch failed")
		return out
	}

	dest := s.Store.DocumentPath(req.EntityID, destName(linkName, result.SuggestedName))
	if s.Store.Reusable(dest) {
		out.Status = models.StatusDownloaded
		out.LocalPath = dest
		return out
	}
	if err := s.Store.SaveBytes(dest, result.Body); err != nil {
		out.Status = models.StatusDownloadError
		log.Error().Err(err).Str("path", dest).Msg("Failed to write fetched document")
		return out
	}
	out.Status = models.StatusDownloaded
	out.LocalPath = dest
	return out
}

// destName derives the saved filename from the link so the name is stable
// across runs; the server-advertised name contributes only the extension
// when the URL tail carries none.
func destName(linkName, suggested string) string {
	if linkName == "" || archive.HasFileExt(linkName) {
		return linkName
	}
	if sug := archive.SanitizeFilename(suggested); archive.HasFileExt(sug) {
		if i := strings.LastIndex(sug, "."); i >= 0 {
			return linkName + sug[i:]
		}
	}
	return linkName
}

// candidateLinks scans every anchor for a document-shaped href, then for
// attachment-hinting hrefs or labels, preserving document order and
// deduplicating by resolved URL.
func (s *DirectLinkStrategy) candidateLinks(doc *goquery.Document, baseURL string) []string {
	seen := make(map[string]struct{})
	var links []string
	add := func(resolved string) {
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved := resolveURL(baseURL, href)
		if resolved == "" {
			return
		}
		if fileExtPattern.MatchString(resolved) {
			add(resolved)
			return
		}
		if hintPattern.MatchString(href) || hintPattern.MatchString(sel.Text()) {
			add(resolved)
		}
	})

	if s.MaxLinks > 0 && len(links) > s.MaxLinks {
		links = links[:s.MaxLinks]
	}
	return links
}
