package extract

import (
	"context"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/internal/archive"
	"github.com/doc-harvest/harvest/pkg/models"
)

// textSelectors pick the content region of a detail page, widest last.
var textSelectors = []string{`[role="main"]`, "main", "body"}

// TextCaptureStrategy is the last resort: when no file can be acquired,
// the visible text of the page body becomes the artifact. A page whose
// content region renders empty is declined, never saved as an empty file.
type TextCaptureStrategy struct {
	Store     *archive.Store
	Selectors []string
	Timeout   time.Duration
}

func NewTextCaptureStrategy(store *archive.Store) *TextCaptureStrategy {
	return &TextCaptureStrategy{Store: store, Selectors: textSelectors, Timeout: 5 * time.Second}
}

func (s *TextCaptureStrategy) Name() string { return "text-capture" }

func (s *TextCaptureStrategy) Attempt(ctx context.Context, page PageView, doc *goquery.Document, req Request) ([]Outcome, bool, error) {
	var text string
	for _, sel := range s.Selectors {
		got, err := page.Text(ctx, sel, s.Timeout)
		if err != nil {
			continue
		}
		if strings.TrimSpace(got) != "" {
			text = got
			break
		}
	}
	if text == "" {
		return nil, false, nil
	}

	path := s.Store.TextPath(req.EntityID)
	if err := s.Store.SaveText(path, text); err != nil {
		return nil, false, err
	}
	s.saveMarkdown(doc, req.EntityID)

	return []Outcome{{
		Mechanism: models.MechanismText,
		Status:    models.StatusTextCaptured,
		LocalPath: path,
	}}, true, nil
}

// saveMarkdown writes a markdown rendering of the content region next to
// the plain-text capture. Best effort: the .txt file is the artifact of
// record.
func (s *TextCaptureStrategy) saveMarkdown(doc *goquery.Document, id models.EntityID) {
	region := doc.Find(`[role="main"]`)
	if region.Length() == 0 {
		region = doc.Find("main")
	}
	if region.Length() == 0 {
		region = doc.Find("body")
	}
	html, err := region.Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return
	}

	converter := md.NewConverter("", true, nil)
	rendered, err := converter.ConvertString(html)
	if err != nil {
		log.Debug().Err(err).Str("entity", string(id)).Msg("Markdown rendering failed")
		return
	}
	if err := s.Store.SaveText(s.Store.MarkdownPath(id), rendered); err != nil {
		log.Debug().Err(err).Str("entity", string(id)).Msg("Markdown companion not written")
	}
}
