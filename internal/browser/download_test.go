package browser

import (
	"path/filepath"
	"testing"

	cdpbrowser "github.com/chromedp/cdproto/browser"
)

func TestDownloadWatcherSignalsCompletion(t *testing.T) {
	w := newDownloadWatcher("/stage")
	w.handle(&cdpbrowser.EventDownloadWillBegin{
		GUID:              "guid-1",
		SuggestedFilename: "report.pdf",
		URL:               "https://example.org/dl",
	})
	w.handle(&cdpbrowser.EventDownloadProgress{
		GUID:  "guid-1",
		State: cdpbrowser.DownloadProgressStateCompleted,
	})

	select {
	case d := <-w.done:
		if d.Path != filepath.Join("/stage", "guid-1") {
			t.Errorf("path = %q", d.Path)
		}
		if d.SuggestedFilename != "report.pdf" {
			t.Errorf("suggested = %q", d.SuggestedFilename)
		}
	default:
		t.Fatal("completed download was not signalled")
	}
}

func TestDownloadWatcherToleratesDuplicateCancelEvents(t *testing.T) {
	w := newDownloadWatcher("/stage")
	w.handle(&cdpbrowser.EventDownloadWillBegin{GUID: "guid-1", SuggestedFilename: "a.pdf"})
	w.handle(&cdpbrowser.EventDownloadWillBegin{GUID: "guid-2", SuggestedFilename: "b.pdf"})

	cancelled := func(guid string) *cdpbrowser.EventDownloadProgress {
		return &cdpbrowser.EventDownloadProgress{GUID: guid, State: cdpbrowser.DownloadProgressStateCanceled}
	}
	// Two cancellations in one window must not panic the listener.
	w.handle(cancelled("guid-1"))
	w.handle(cancelled("guid-1"))
	w.handle(cancelled("guid-2"))

	select {
	case <-w.failed:
	default:
		t.Fatal("cancelled download was not signalled")
	}
}

func TestDownloadWatcherIgnoresUnknownGUID(t *testing.T) {
	w := newDownloadWatcher("/stage")
	w.handle(&cdpbrowser.EventDownloadProgress{
		GUID:  "never-begun",
		State: cdpbrowser.DownloadProgressStateCompleted,
	})

	select {
	case <-w.done:
		t.Fatal("progress without a matching begin event was signalled")
	default:
	}
}
