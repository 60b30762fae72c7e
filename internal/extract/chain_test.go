package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/doc-harvest/harvest/internal/archive"
	"github.com/doc-harvest/harvest/internal/browser"
	"github.com/doc-harvest/harvest/internal/fetch"
	"github.com/doc-harvest/harvest/internal/retry"
	"github.com/doc-harvest/harvest/pkg/models"
)

type fakeView struct {
	html        string
	text        map[string]string
	download    *browser.Download
	downloadErr error
	downloads   int
}

func (v *fakeView) HTML(context.Context) (string, error) { return v.html, nil }

func (v *fakeView) Text(_ context.Context, selector string, _ time.Duration) (string, error) {
	if t, ok := v.text[selector]; ok {
		return t, nil
	}
	return "", errors.New("selector not found")
}

func (v *fakeView) AwaitDownload(_ context.Context, _ string, _ time.Duration) (*browser.Download, error) {
	v.downloads++
	if v.downloadErr != nil {
		return nil, v.downloadErr
	}
	return v.download, nil
}

func newStore(t *testing.T) *archive.Store {
	t.Helper()
	store := archive.New(t.TempDir(), ".pdf")
	if err := store.Prepare(); err != nil {
		t.Fatalf("prepare store: %v", err)
	}
	return store
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:          3,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           5 * time.Millisecond,
		Multiplier:           2,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

func testRequest() Request {
	return Request{EntityID: "F123", DetailURL: "https://example.org/initiatives/F123_en", IndexPage: 1}
}

func TestTriggerWinsOverLaterStrategies(t *testing.T) {
	store := newStore(t)
	staged := filepath.Join(store.StagingDir(), "guid-1")
	if err := os.WriteFile(staged, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	view := &fakeView{
		html: `<html><body>
			<a class="ecl-file__download" href="/dl">Download</a>
			<a href="https://example.org/annex.pdf">Annex</a>
		</body></html>`,
		download: &browser.Download{Path: staged, SuggestedFilename: "report.pdf", URL: "https://example.org/dl"},
	}
	chain := NewChain(
		NewTriggerStrategy(store),
		NewDirectLinkStrategy(store, fetch.New(time.Second, "test"), fastRetry()),
		NewTextCaptureStrategy(store),
	)

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Mechanism != models.MechanismTrigger || rec.Status != models.StatusDownloaded {
		t.Errorf("record = %s/%s, want trigger/downloaded", rec.Mechanism, rec.Status)
	}
	data, err := os.ReadFile(rec.LocalPath)
	if err != nil {
		t.Fatalf("read promoted file: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("promoted content = %q", data)
	}
	if !strings.HasSuffix(rec.LocalPath, "F123__report.pdf") {
		t.Errorf("unexpected document name: %s", rec.LocalPath)
	}
}

func TestTriggerReusesArchivedDocument(t *testing.T) {
	store := newStore(t)
	existing := store.DocumentPath("F123", "report.pdf")
	if err := os.WriteFile(existing, []byte("old bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	view := &fakeView{html: `<html><body><a class="ecl-file__download" href="/dl">Download</a></body></html>`}
	chain := NewChain(NewTriggerStrategy(store))

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if view.downloads != 0 {
		t.Errorf("download was triggered %d times for an archived entity", view.downloads)
	}
	if len(records) != 1 || records[0].Status != models.StatusDownloaded || records[0].LocalPath != existing {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestDirectLinkRetriesThroughTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("document bytes"))
	}))
	defer srv.Close()

	store := newStore(t)
	view := &fakeView{html: fmt.Sprintf(`<html><body><a href="%s/annex.pdf">Annex</a></body></html>`, srv.URL)}
	chain := NewChain(NewDirectLinkStrategy(store, fetch.New(2*time.Second, "test"), fastRetry()))

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Mechanism != models.MechanismDirectLink || rec.Status != models.StatusDownloaded {
		t.Errorf("record = %s/%s, want direct-link/downloaded", rec.Mechanism, rec.Status)
	}
	if !rec.Saved() {
		t.Error("record should count as saved")
	}
	data, err := os.ReadFile(rec.LocalPath)
	if err != nil || string(data) != "document bytes" {
		t.Errorf("saved content = %q, err = %v", data, err)
	}
}

func TestDirectLinkSkipsRefetchOfArchivedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server was contacted for an already-archived file")
	}))
	defer srv.Close()

	store := newStore(t)
	link := srv.URL + "/annex.pdf"
	dest := store.DocumentPath("F123", archive.SanitizeFilename(link))
	if err := os.WriteFile(dest, []byte("kept"), 0o644); err != nil {
		t.Fatal(err)
	}

	view := &fakeView{html: fmt.Sprintf(`<html><body><a href="%s">Annex</a></body></html>`, link)}
	chain := NewChain(NewDirectLinkStrategy(store, fetch.New(time.Second, "test"), fastRetry()))

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 || records[0].Status != models.StatusDownloaded || records[0].LocalPath != dest {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestDirectLinkRerunReusesServerNamedFiles(t *testing.T) {
	// The server advertises filenames that differ from the URL tails; a
	// second run must still find the archived files instead of re-fetching.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/annex.pdf":
			w.Header().Set("Content-Disposition", `attachment; filename="report_final.pdf"`)
			w.Write([]byte("annex bytes"))
		case "/download/123":
			w.Header().Set("Content-Disposition", `attachment; filename="summary.docx"`)
			w.Write([]byte("summary bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := newStore(t)
	view := &fakeView{html: fmt.Sprintf(`<html><body>
		<a href="%s/annex.pdf">Annex</a>
		<a href="%s/download/123">Download the document</a>
	</body></html>`, srv.URL, srv.URL)}
	chain := NewChain(NewDirectLinkStrategy(store, fetch.New(time.Second, "test"), fastRetry()))

	first, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("first run hit the server %d times, want 2", got)
	}

	second, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("second run re-fetched, server hit %d times total", got)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("records: first %d, second %d, want 2 each", len(first), len(second))
	}
	for i := range second {
		if second[i].Status != models.StatusDownloaded {
			t.Errorf("second run record %d status = %s", i, second[i].Status)
		}
		if second[i].LocalPath != first[i].LocalPath {
			t.Errorf("record %d path changed across runs: %q vs %q", i, first[i].LocalPath, second[i].LocalPath)
		}
	}
	if !strings.HasSuffix(first[1].LocalPath, "F123__123.docx") {
		t.Errorf("extension-less link saved as %s, want the advertised extension", first[1].LocalPath)
	}
}

func TestFailedLinksFallThroughToTextCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := newStore(t)
	view := &fakeView{
		html: fmt.Sprintf(`<html><body><a href="%s/gone.pdf">Annex</a><main>Submission text</main></body></html>`, srv.URL),
		text: map[string]string{"main": "Submission text"},
	}
	chain := NewChain(
		NewDirectLinkStrategy(store, fetch.New(time.Second, "test"), fastRetry()),
		NewTextCaptureStrategy(store),
	)

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want failed fetch plus text capture", len(records))
	}
	if records[0].Status != models.HTTPStatus(404) || records[0].Mechanism != models.MechanismDirectLink {
		t.Errorf("first record = %s/%s", records[0].Mechanism, records[0].Status)
	}
	if records[1].Status != models.StatusTextCaptured || records[1].Mechanism != models.MechanismText {
		t.Errorf("second record = %s/%s", records[1].Mechanism, records[1].Status)
	}
}

func TestTextCaptureSavesVisibleText(t *testing.T) {
	store := newStore(t)
	view := &fakeView{
		html: `<html><body><div role="main"><p>Hello</p></div></body></html>`,
		text: map[string]string{`[role="main"]`: "Hello"},
	}
	chain := NewChain(NewTextCaptureStrategy(store))

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 || records[0].Status != models.StatusTextCaptured {
		t.Fatalf("unexpected records: %+v", records)
	}
	data, err := os.ReadFile(records[0].LocalPath)
	if err != nil || strings.TrimSpace(string(data)) != "Hello" {
		t.Errorf("captured text = %q, err = %v", data, err)
	}
	if _, err := os.Stat(store.MarkdownPath("F123")); err != nil {
		t.Errorf("markdown companion missing: %v", err)
	}
}

func TestEmptyPageYieldsNoFileRecord(t *testing.T) {
	store := newStore(t)
	view := &fakeView{html: `<html><body><div role="main"> </div></body></html>`, text: map[string]string{}}
	chain := NewChain(
		NewTriggerStrategy(store),
		NewDirectLinkStrategy(store, fetch.New(time.Second, "test"), fastRetry()),
		NewTextCaptureStrategy(store),
	)

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Status != models.StatusNoFile || records[0].Mechanism != models.MechanismNone {
		t.Errorf("record = %s/%s, want none/no_file_found", records[0].Mechanism, records[0].Status)
	}
	if records[0].Saved() {
		t.Error("no_file_found must not count as saved")
	}
}

func TestTriggerDeclineFallsThrough(t *testing.T) {
	store := newStore(t)
	view := &fakeView{
		html:        `<html><body><a class="ecl-file__download" href="/dl">Download</a><main>Body text</main></body></html>`,
		text:        map[string]string{"main": "Body text"},
		downloadErr: browser.ErrDownloadTimeout,
	}
	chain := NewChain(NewTriggerStrategy(store), NewTextCaptureStrategy(store))

	records, err := chain.Run(context.Background(), view, testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if view.downloads != 1 {
		t.Errorf("download attempted %d times, want 1", view.downloads)
	}
	if len(records) != 1 || records[0].Status != models.StatusTextCaptured {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestParseMeta(t *testing.T) {
	html := `<html><body>
		<h1>Artificial Intelligence Act</h1>
		<p>Organisation: ACME Research Institute</p>
		<p>Feedback submitted on 14 March 2024.</p>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	meta := ParseMeta(doc)
	if meta.Title != "Artificial Intelligence Act" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Submitter != "ACME Research Institute" {
		t.Errorf("submitter = %q", meta.Submitter)
	}
	if meta.Date != "14 March 2024" {
		t.Errorf("date = %q", meta.Date)
	}
}
