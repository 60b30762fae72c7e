// Package fetch retrieves already-known file URLs over plain HTTP, reusing
// the identity of the rendering session: the browser's cookies are imported
// into the client's jar so servers see the same visitor that rendered the
// page, not a cold client.
package fetch

import (
	"context"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/doc-harvest/harvest/internal/retry"
)

// Result is one completed fetch. StatusCode and Body are populated even for
// non-success responses so callers can record the outcome.
type Result struct {
	StatusCode    int
	Body          []byte
	SuggestedName string
	FinalURL      string
}

// Fetcher is a cookie-carrying HTTP client for artifact downloads.
type Fetcher struct {
	client *resty.Client
}

// New creates a Fetcher with a public-suffix-aware cookie jar.
func New(timeout time.Duration, userAgent string) *Fetcher {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetCookieJar(jar).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Fetcher{client: client}
}

// ImportCookies seeds the jar with cookies exported from the browser
// session, scoped to the given site URL.
func (f *Fetcher) ImportCookies(siteURL string, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	u, err := url.Parse(siteURL)
	if err != nil {
		log.Warn().Err(err).Str("url", siteURL).Msg("Cannot scope imported cookies")
		return
	}
	jar := f.client.GetClient().Jar
	if jar == nil {
		return
	}
	jar.SetCookies(u, cookies)
	log.Debug().Int("cookies", len(cookies)).Str("site", u.Host).Msg("Imported session cookies")
}

// Fetch downloads fileURL. Non-2xx responses return both a Result (for the
// status tag) and a retry.HTTPError (for retry classification).
func (f *Fetcher) Fetch(ctx context.Context, fileURL string) (*Result, error) {
	resp, err := f.client.R().SetContext(ctx).Get(fileURL)
	if err != nil {
		return nil, err
	}

	res := &Result{
		StatusCode:    resp.StatusCode(),
		Body:          resp.Body(),
		SuggestedName: suggestedName(resp, fileURL),
		FinalURL:      fileURL,
	}
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		res.FinalURL = raw.Request.URL.String()
	}

	if !resp.IsSuccess() {
		return res, retry.NewHTTPError(resp.StatusCode(), resp.Status(), fileURL)
	}

	log.Debug().
		Str("url", fileURL).
		Int("bytes", len(res.Body)).
		Str("suggested", res.SuggestedName).
		Msg("Fetch completed")
	return res, nil
}

// suggestedName takes the server's Content-Disposition filename when
// present, the final URL's path tail otherwise.
func suggestedName(resp *resty.Response, fileURL string) string {
	if cd := resp.Header().Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	target := fileURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		target = raw.Request.URL.String()
	}
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		return pathTail(u.Path)
	}
	return ""
}

func pathTail(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
