package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), ".pdf")
	if err := s.Prepare(); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return s
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report final.pdf", "report_final.pdf"},
		{"https://example.com/files/annex%202.pdf?v=3", "annex_2.pdf"},
		{"../../etc/passwd", "passwd"},
		{`c:\windows\evil.exe`, "evil.exe"},
		{"file:with:colons.doc", "file_with_colons.doc"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SanitizeFilename(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if strings.ContainsAny(got, `/\`) || strings.Contains(got, "..") {
				t.Errorf("sanitized name %q still contains path tokens", got)
			}
		})
	}
}

func TestDocumentPath_DefaultExtension(t *testing.T) {
	s := New("/out", ".pdf")

	got := s.DocumentPath("F1", "statement")
	if !strings.HasSuffix(got, "F1__statement.pdf") {
		t.Errorf("extension-less name: got %q, want F1__statement.pdf suffix", got)
	}

	got = s.DocumentPath("F1", "statement.docx")
	if !strings.HasSuffix(got, "F1__statement.docx") {
		t.Errorf("existing extension must be kept: got %q", got)
	}

	// Policy is overridable, not baked in.
	s = New("/out", ".bin")
	got = s.DocumentPath("F1", "statement")
	if !strings.HasSuffix(got, "F1__statement.bin") {
		t.Errorf("override extension: got %q", got)
	}
}

func TestDocumentPath_Deterministic(t *testing.T) {
	s := New("/out", ".pdf")
	a := s.DocumentPath("F42", "Response Letter.pdf")
	b := s.DocumentPath("F42", "Response Letter.pdf")
	if a != b {
		t.Errorf("DocumentPath not deterministic: %q vs %q", a, b)
	}
}

func TestReusable(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(s.Root(), "documents", "F1__a.pdf")
	if s.Reusable(path) {
		t.Error("missing file must not be reusable")
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if s.Reusable(path) {
		t.Error("empty file must not be reusable")
	}

	if err := os.WriteFile(path, []byte("pdf bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.Reusable(path) {
		t.Error("non-empty file must be reusable")
	}
}

func TestExistingDocument(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.ExistingDocument("F7"); ok {
		t.Fatal("no document saved yet")
	}

	path := s.DocumentPath("F7", "letter.pdf")
	if err := s.SaveBytes(path, []byte("content")); err != nil {
		t.Fatal(err)
	}

	got, ok := s.ExistingDocument("F7")
	if !ok || got != path {
		t.Errorf("ExistingDocument = (%q, %v), want (%q, true)", got, ok, path)
	}

	// A different entity must not match.
	if _, ok := s.ExistingDocument("F70"); ok {
		t.Error("F70 must not match F7's document")
	}
}

func TestExistingDocumentNamed(t *testing.T) {
	s := newTestStore(t)

	// Saved under an extension the URL tail never carried.
	path := s.DocumentPath("F7", "123.docx")
	if err := s.SaveBytes(path, []byte("content")); err != nil {
		t.Fatal(err)
	}

	got, ok := s.ExistingDocumentNamed("F7", "123")
	if !ok || got != path {
		t.Errorf("ExistingDocumentNamed(123) = (%q, %v), want (%q, true)", got, ok, path)
	}

	// An extensioned name matches only its exact destination.
	if _, ok := s.ExistingDocumentNamed("F7", "123.pdf"); ok {
		t.Error("123.pdf must not match the docx file")
	}
	if _, ok := s.ExistingDocumentNamed("F70", "123"); ok {
		t.Error("F70 must not match F7's document")
	}
}

func TestPromote(t *testing.T) {
	s := newTestStore(t)

	staged := filepath.Join(s.StagingDir(), "guid-123")
	if err := os.WriteFile(staged, []byte("downloaded"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := s.DocumentPath("F9", "doc.pdf")
	if err := s.Promote(staged, dest); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "downloaded" {
		t.Errorf("promoted content = %q, %v", data, err)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("staging file should be gone after promote")
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)

	p := s.SnapshotIndex(3, "<html>index</html>")
	if p == "" {
		t.Fatal("index snapshot failed")
	}
	if data, _ := os.ReadFile(p); string(data) != "<html>index</html>" {
		t.Errorf("snapshot content = %q", data)
	}

	if p := s.SnapshotDetail("F1", "<html>detail</html>"); p == "" {
		t.Error("detail snapshot failed")
	}
}
