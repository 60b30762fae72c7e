package browser

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Download describes a file the browser saved to the staging directory
// after a click-triggered download completed.
type Download struct {
	// Path is the on-disk location in the staging directory (the browser
	// names the file by its download GUID).
	Path string
	// SuggestedFilename is the name the server proposed.
	SuggestedFilename string
	// URL is the resolved file URL the browser fetched.
	URL string
}

// downloadWatcher tracks the CDP download events of one AwaitDownload
// window. Both channels are buffered and signalled non-blockingly; the
// browser can emit duplicate progress events for the same GUID.
type downloadWatcher struct {
	dir    string
	done   chan *Download
	failed chan struct{}

	mu      sync.Mutex
	pending map[string]*Download
}

func newDownloadWatcher(dir string) *downloadWatcher {
	return &downloadWatcher{
		dir:     dir,
		done:    make(chan *Download, 1),
		failed:  make(chan struct{}, 1),
		pending: make(map[string]*Download),
	}
}

func (w *downloadWatcher) handle(ev interface{}) {
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		w.mu.Lock()
		w.pending[e.GUID] = &Download{
			Path:              filepath.Join(w.dir, e.GUID),
			SuggestedFilename: e.SuggestedFilename,
			URL:               e.URL,
		}
		w.mu.Unlock()
		log.Debug().Str("suggested", e.SuggestedFilename).Msg("Download started")
	case *cdpbrowser.EventDownloadProgress:
		w.mu.Lock()
		d := w.pending[e.GUID]
		w.mu.Unlock()
		if d == nil {
			return
		}
		switch e.State {
		case cdpbrowser.DownloadProgressStateCompleted:
			select {
			case w.done <- d:
			default:
			}
		case cdpbrowser.DownloadProgressStateCanceled:
			select {
			case w.failed <- struct{}{}:
			default:
			}
		}
	}
}

// AwaitDownload clicks the node matching selector and waits for the
// resulting download to complete, up to timeout. A timeout is reported as
// ErrDownloadTimeout and is an expected outcome for controls that have no
// file behind them; callers decline and fall through.
func (s *Session) AwaitDownload(parent context.Context, selector string, timeout time.Duration) (*Download, error) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if parent != nil {
		stop := context.AfterFunc(parent, cancel)
		defer stop()
	}

	w := newDownloadWatcher(s.downloadDir)
	chromedp.ListenTarget(ctx, w.handle)

	if err := chromedp.Run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		// The click itself can time out when the control never becomes
		// visible; that is a decline, not a fault.
		if ctx.Err() != nil {
			return nil, ErrDownloadTimeout
		}
		return nil, err
	}

	select {
	case d := <-w.done:
		log.Debug().Str("path", d.Path).Str("suggested", d.SuggestedFilename).Msg("Download completed")
		return d, nil
	case <-w.failed:
		return nil, ErrDownloadFailed
	case <-ctx.Done():
		return nil, ErrDownloadTimeout
	}
}
