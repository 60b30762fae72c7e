// Package archive owns the on-disk layout of a harvest run: downloaded
// documents, captured text, inventory metadata, and debug snapshots.
package archive

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doc-harvest/harvest/pkg/models"
)

const (
	documentsDir   = "documents"
	textDir        = "text"
	metadataDir    = "metadata"
	stagingDir     = ".staging"
	debugIndexDir  = "debug/index"
	debugDetailDir = "debug/detail"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	hasFileExt  = regexp.MustCompile(`\.[A-Za-z0-9]{2,5}$`)
)

// Store places artifacts under a single output root with a fixed layout.
// Destination names are deterministic so every run lands on the same paths,
// which is what makes re-runs idempotent: an existing non-empty destination
// is reused instead of rewritten.
type Store struct {
	root       string
	defaultExt string
}

// New creates a Store rooted at dir. defaultExt (e.g. ".pdf") is appended
// to artifact names that carry no recognizable extension; the original
// implementation treated extension-less artifacts as PDFs, and that policy
// is kept here as an explicit, overridable default.
func New(dir, defaultExt string) *Store {
	if defaultExt == "" {
		defaultExt = ".pdf"
	}
	if !strings.HasPrefix(defaultExt, ".") {
		defaultExt = "." + defaultExt
	}
	return &Store{root: dir, defaultExt: defaultExt}
}

// Prepare creates the run layout. Safe to call on an existing root.
func (s *Store) Prepare() error {
	for _, d := range []string{documentsDir, textDir, metadataDir, stagingDir, debugIndexDir, debugDetailDir} {
		if err := os.MkdirAll(filepath.Join(s.root, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Root returns the output root directory.
func (s *Store) Root() string { return s.root }

// StagingDir is where the browser drops in-flight downloads before they are
// promoted to their deterministic destination.
func (s *Store) StagingDir() string { return filepath.Join(s.root, stagingDir) }

// InventoryCSVPath is the path of the inventory CSV for this run.
func (s *Store) InventoryCSVPath() string {
	return filepath.Join(s.root, metadataDir, "inventory.csv")
}

// ReportPath is the path of the markdown run report.
func (s *Store) ReportPath() string {
	return filepath.Join(s.root, metadataDir, "report.md")
}

// DocumentPath builds the deterministic destination for a downloaded file:
// <root>/documents/<id>__<sanitized suggested name>, with the default
// extension appended when none is resolvable.
func (s *Store) DocumentPath(id models.EntityID, suggested string) string {
	name := SanitizeFilename(suggested)
	if name == "" {
		name = "file" + s.defaultExt
	}
	if !hasFileExt.MatchString(name) {
		name += s.defaultExt
	}
	return filepath.Join(s.root, documentsDir, fmt.Sprintf("%s__%s", id, name))
}

// TextPath is the destination for a captured-text artifact.
func (s *Store) TextPath(id models.EntityID) string {
	return filepath.Join(s.root, textDir, string(id)+".txt")
}

// MarkdownPath is the destination for the markdown rendering that
// accompanies a text capture.
func (s *Store) MarkdownPath(id models.EntityID) string {
	return filepath.Join(s.root, textDir, string(id)+".md")
}

// Reusable reports whether path already holds a non-empty artifact. A
// reusable destination is never rewritten.
func (s *Store) Reusable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// ExistingDocumentNamed returns a reusable document previously saved for
// the entity under the given name or URL tail. A name with no extension
// matches any extension: a direct fetch learns the real extension only from
// the response, so a re-run must find the file the previous run saved.
func (s *Store) ExistingDocumentNamed(id models.EntityID, name string) (string, bool) {
	exact := s.DocumentPath(id, name)
	if s.Reusable(exact) {
		return exact, true
	}
	base := SanitizeFilename(name)
	if base == "" || hasFileExt.MatchString(base) {
		return "", false
	}
	matches, err := filepath.Glob(filepath.Join(s.root, documentsDir, fmt.Sprintf("%s__%s.*", id, base)))
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if s.Reusable(m) {
			return m, true
		}
	}
	return "", false
}

// HasFileExt reports whether name ends in a short file extension.
func HasFileExt(name string) bool { return hasFileExt.MatchString(name) }

// ExistingDocument returns a previously saved document for the entity, if
// any. Used by the trigger strategy, which cannot know the remote-suggested
// name before clicking.
func (s *Store) ExistingDocument(id models.EntityID) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.root, documentsDir, string(id)+"__*"))
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if s.Reusable(m) {
			return m, true
		}
	}
	return "", false
}

// SaveBytes writes data to path atomically enough for a crawl: write to a
// temp file in the same directory, then rename.
func (s *Store) SaveBytes(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvest-*")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		if werr != nil {
			return werr
		}
		return cerr
	}
	return os.Rename(tmp.Name(), path)
}

// SaveText writes a captured-text artifact.
func (s *Store) SaveText(path, text string) error {
	return s.SaveBytes(path, []byte(text))
}

// Promote moves a completed staging download to its destination. Falls back
// to copy+remove when rename crosses filesystems.
func (s *Store) Promote(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// SnapshotIndex writes the raw markup of an index page that yielded no
// links, for diagnosing selector drift without re-running the crawl.
func (s *Store) SnapshotIndex(pageNo int, html string) string {
	name := fmt.Sprintf("no_links_p%d_%d.html", pageNo, time.Now().Unix())
	return s.snapshot(debugIndexDir, name, html)
}

// SnapshotDetail writes the raw markup of a detail page that yielded no
// artifact.
func (s *Store) SnapshotDetail(id models.EntityID, html string) string {
	name := fmt.Sprintf("%s_%d.html", id, time.Now().Unix())
	return s.snapshot(debugDetailDir, name, html)
}

func (s *Store) snapshot(dir, name, html string) string {
	path := filepath.Join(s.root, dir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to write debug snapshot")
		return ""
	}
	return path
}

// RemoveDebug deletes the debug snapshot tree (used when the operator did
// not ask to keep it).
func (s *Store) RemoveDebug() error {
	return os.RemoveAll(filepath.Join(s.root, "debug"))
}

// SanitizeFilename reduces a name (or URL tail) to a safe filename: path
// separators and shell-hostile characters collapse to underscores, query
// strings are dropped, length is capped.
func SanitizeFilename(input string) string {
	// Keep only the last path segment, minus any query string.
	if i := strings.IndexAny(input, "?#"); i >= 0 {
		input = input[:i]
	}
	input = strings.TrimRight(input, "/")
	if i := strings.LastIndexAny(input, "/\\"); i >= 0 {
		input = input[i+1:]
	}
	if decoded, err := url.PathUnescape(input); err == nil {
		input = decoded
	}

	input = unsafeChars.ReplaceAllString(input, "_")
	input = strings.Trim(input, "._")
	if len(input) > 200 {
		input = input[:200]
	}
	return input
}
