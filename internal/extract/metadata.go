package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/doc-harvest/harvest/pkg/models"
)

var (
	submitterPattern = regexp.MustCompile(`(?i)(?:organisation|organization|name)\s*:\s*(.+)`)
	datePattern      = regexp.MustCompile(`\b(\d{1,2}\s+[A-Z][a-z]+\s+\d{4}|\d{4}-\d{2}-\d{2})\b`)
)

// ParseMeta scrapes descriptive fields from a detail page. Every field is
// optional; absence is an empty string, never an error.
func ParseMeta(doc *goquery.Document) models.DetailMeta {
	var meta models.DetailMeta

	for _, sel := range []string{"h1", "h2"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			meta.Title = collapseSpace(title)
			break
		}
	}

	body := doc.Find("body").Text()
	if m := submitterPattern.FindStringSubmatch(body); m != nil {
		meta.Submitter = collapseSpace(firstLine(m[1]))
	}
	if m := datePattern.FindString(body); m != "" {
		meta.Date = m
	}
	return meta
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
