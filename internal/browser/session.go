// Package browser wraps a single headless-Chrome session behind the small
// surface the crawl needs: navigate, query text/markup, click, capture a
// click-triggered download, and export cookies.
//
// Unlike a per-request browser pool, the crawl keeps one session alive for
// the whole run: pagination state, cookies, and consent dismissal must
// survive across navigations.
package browser

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Timeouts are normal branchable outcomes for the strategies, not faults.
var (
	ErrDownloadTimeout = errors.New("browser: download did not complete within the wait window")
	ErrDownloadFailed  = errors.New("browser: download was canceled by the browser")
)

// Options configures a Session.
type Options struct {
	Headless    bool
	UserAgent   string
	Proxy       string
	ChromePath  string
	DownloadDir string
	NavTimeout  time.Duration
}

// Session is a single long-lived Chrome tab.
type Session struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	downloadDir string
	navTimeout  time.Duration
}

// NewSession starts Chrome and opens one tab. Close must be called to tear
// the browser down.
func NewSession(opts Options) (*Session, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}

	chromePath := opts.ChromePath
	if chromePath == "" {
		chromePath = FindChrome()
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
	}
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		downloadDir: opts.DownloadDir,
		navTimeout:  opts.NavTimeout,
	}

	// Warm up and route downloads into the staging directory.
	actions := []chromedp.Action{chromedp.Navigate("about:blank")}
	if s.downloadDir != "" {
		actions = append(actions,
			cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
				WithDownloadPath(s.downloadDir).
				WithEventsEnabled(true))
	}
	if err := s.run(context.Background(), opts.NavTimeout, actions...); err != nil {
		s.Close()
		return nil, err
	}

	log.Debug().Bool("headless", opts.Headless).Str("chrome", chromePath).Msg("Browser session ready")
	return s, nil
}

// run executes chromedp actions on the session tab with its own timeout,
// while still honoring cancellation of the caller's context.
func (s *Session) run(parent context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if parent != nil {
		stop := context.AfterFunc(parent, cancel)
		defer stop()
	}
	return chromedp.Run(ctx, actions...)
}

// Navigate loads url, waits for the initial scripts to settle, and
// dismisses any consent banner that appeared.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.navTimeout,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(context.Context) error {
			// Let the initial JS paint before anything queries the DOM.
			time.Sleep(400 * time.Millisecond)
			return nil
		}),
	)
	if err != nil {
		return err
	}
	s.DismissConsent(ctx)
	return nil
}

// HTML returns the rendered markup of the current page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, 10*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Text returns the visible text of the first node matching selector.
func (s *Session) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	err := s.run(ctx, timeout, chromedp.Text(selector, &text, chromedp.ByQuery))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Location returns the tab's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, 5*time.Second, chromedp.Location(&loc))
	return loc, err
}

// Click clicks the first visible node matching selector.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Cookies exports the browser's cookies so the direct-link fetcher can
// reuse the rendering session's identity.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var out []*http.Cookie
	err := s.run(ctx, 5*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
				Secure: c.Secure,
			})
		}
		return nil
	}))
	return out, err
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
