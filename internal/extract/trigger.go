package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/internal/archive"
	"github.com/doc-harvest/harvest/internal/browser"
	"github.com/doc-harvest/harvest/pkg/models"
)

// triggerSelectors locate controls that start a browser-managed download
// when clicked. Ordered from most to least specific.
var triggerSelectors = []string{
	`a.ecl-file__download`,
	`button.ecl-file__download`,
	`a[download]`,
	`a.ecl-link[href*="/download/"]`,
}

// TriggerStrategy clicks a download control and captures the file the
// browser writes. Highest priority because a triggered download carries
// the server's own filename and bytes with no second HTTP client in play.
type TriggerStrategy struct {
	Store     *archive.Store
	Selectors []string
	Timeout   time.Duration
}

// NewTriggerStrategy uses the default control selectors and a 30s
// completion timeout unless overridden.
func NewTriggerStrategy(store *archive.Store) *TriggerStrategy {
	return &TriggerStrategy{Store: store, Selectors: triggerSelectors, Timeout: 30 * time.Second}
}

func (s *TriggerStrategy) Name() string { return "trigger" }

func (s *TriggerStrategy) Attempt(ctx context.Context, page PageView, doc *goquery.Document, req Request) ([]Outcome, bool, error) {
	selector := ""
	for _, sel := range s.Selectors {
		if doc.Find(sel).Length() > 0 {
			selector = sel
			break
		}
	}
	if selector == "" {
		return nil, false, nil
	}

	// A file already archived for this entity short-circuits the click:
	// re-running must not re-download.
	if existing, ok := s.Store.ExistingDocument(req.EntityID); ok {
		log.Debug().Str("entity", string(req.EntityID)).Str("path", existing).Msg("Reusing archived document")
		return []Outcome{{
			Mechanism: models.MechanismTrigger,
			Status:    models.StatusDownloaded,
			LocalPath: existing,
		}}, true, nil
	}

	dl, err := page.AwaitDownload(ctx, selector, s.Timeout)
	if errors.Is(err, browser.ErrDownloadTimeout) {
		// The control exists but clicking it produced no download event;
		// decline so the link and text strategies get their turn.
		log.Debug().Str("entity", string(req.EntityID)).Str("selector", selector).Msg("Download control produced no download")
		return nil, false, nil
	}
	if err != nil {
		return []Outcome{{
			Mechanism: models.MechanismTrigger,
			Status:    models.StatusDownloadError,
		}}, false, nil
	}

	dest := s.Store.DocumentPath(req.EntityID, dl.SuggestedFilename)
	if err := s.Store.Promote(dl.Path, dest); err != nil {
		return nil, false, fmt.Errorf("promote downloaded file: %w", err)
	}
	return []Outcome{{
		Mechanism: models.MechanismTrigger,
		Status:    models.StatusDownloaded,
		FileURL:   dl.URL,
		LocalPath: dest,
	}}, true, nil
}
