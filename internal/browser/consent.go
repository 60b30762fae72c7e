package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// consentScript clicks the first button or link whose label looks like a
// cookie-consent acceptance, in any of the languages the target sites have
// been seen to serve. Returns the clicked label, or "".
const consentScript = `(() => {
	const labels = [
		/accept all/i, /^accept$/i, /i accept/i, /i agree/i, /^agree$/i,
		/allow all/i, /alle akzeptieren/i, /tout accepter/i,
		/aceptar todo/i, /alle accepteren/i, /akkoord/i,
	];
	const nodes = Array.from(document.querySelectorAll('button, a[role="button"], a'));
	for (const n of nodes) {
		const t = (n.textContent || '').trim();
		const aria = n.getAttribute('aria-label') || '';
		if (labels.some(r => r.test(t) || r.test(aria))) {
			n.click();
			return t || aria;
		}
	}
	return '';
})()`

// DismissConsent clicks through a cookie-consent banner if one is showing.
// Best effort: failures are logged and ignored, consent handling is not
// part of crawl correctness.
func (s *Session) DismissConsent(ctx context.Context) {
	var clicked string
	err := s.run(ctx, 3*time.Second, chromedp.Evaluate(consentScript, &clicked))
	if err != nil {
		log.Debug().Err(err).Msg("Consent dismissal probe failed")
		return
	}
	if clicked != "" {
		log.Debug().Str("label", clicked).Msg("Dismissed consent banner")
		// Give the banner's own handlers a moment to remove it.
		time.Sleep(250 * time.Millisecond)
	}
}

// expandScript nudges open collapsed sections that commonly hide attachment
// lists on detail pages.
const expandScript = `(() => {
	const labels = [
		/attachments?/i, /downloads?/i, /files?/i, /documents?/i,
		/annex/i, /show more/i, /expand/i, /submission/i,
	];
	let clicked = 0;
	const nodes = Array.from(document.querySelectorAll('button, [role="button"], summary'));
	for (const n of nodes) {
		const t = (n.textContent || '').trim();
		if (labels.some(r => r.test(t))) {
			n.click();
			clicked++;
		}
	}
	return clicked;
})()`

// ExpandSections clicks controls that look like collapsed attachment
// sections so the strategies see the full rendered page. Best effort.
func (s *Session) ExpandSections(ctx context.Context) {
	var clicked int
	err := s.run(ctx, 3*time.Second, chromedp.Evaluate(expandScript, &clicked))
	if err != nil {
		log.Debug().Err(err).Msg("Section expansion probe failed")
		return
	}
	if clicked > 0 {
		log.Debug().Int("controls", clicked).Msg("Expanded collapsed sections")
		time.Sleep(250 * time.Millisecond)
	}
}
