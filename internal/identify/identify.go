// Package identify derives stable entity identifiers from detail-page URLs.
package identify

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/doc-harvest/harvest/pkg/models"
)

// ErrMalformedReference is returned when a URL does not match the expected
// detail-page shape. Callers fall back to FallbackID instead of aborting.
var ErrMalformedReference = errors.New("identify: url does not match detail page shape")

var (
	// Detail pages end in a path segment like "/F596917_en".
	detailPattern = regexp.MustCompile(`/(F\d+)_en$`)
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// Identify derives the EntityID for a detail URL. The derivation is pure:
// no randomness, no counters, so the same URL maps to the same id across
// runs. Query strings and fragments do not participate.
func Identify(rawURL string) (models.EntityID, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrMalformedReference
	}
	m := detailPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", ErrMalformedReference
	}
	return models.EntityID(m[1]), nil
}

// FallbackID derives a sanitized identifier from the last path segment when
// the URL does not match the detail shape. Less pretty, still deterministic.
func FallbackID(rawURL string) models.EntityID {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	tail := p
	if i := strings.LastIndex(strings.TrimRight(p, "/"), "/"); i >= 0 {
		tail = strings.TrimRight(p, "/")[i+1:]
	}
	tail = unsafeChars.ReplaceAllString(tail, "_")
	tail = strings.Trim(tail, "_")
	if len(tail) > 200 {
		tail = tail[:200]
	}
	if tail == "" {
		tail = "unknown"
	}
	return models.EntityID(tail)
}

// MustIdentify returns the detail-derived id when the URL matches, the
// sanitized fallback otherwise.
func MustIdentify(rawURL string) models.EntityID {
	if id, err := Identify(rawURL); err == nil {
		return id
	}
	return FallbackID(rawURL)
}

// IsDetailURL reports whether a URL has the detail-page shape. The walker's
// broad link scan uses the same rule as Identify so both stay in sync.
func IsDetailURL(rawURL string) bool {
	_, err := Identify(rawURL)
	return err == nil
}
