package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/doc-harvest/harvest/internal/retry"
)

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	f := New(5*time.Second, "Test/1.0")
	res, err := f.Fetch(context.Background(), server.URL+"/files/letter.pdf")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
	if string(res.Body) != "%PDF-1.4 fake" {
		t.Errorf("body = %q", res.Body)
	}
	if res.SuggestedName != "letter.pdf" {
		t.Errorf("suggested name = %q, want letter.pdf", res.SuggestedName)
	}
}

func TestFetch_ContentDispositionWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="annex 2.pdf"`)
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	f := New(5*time.Second, "Test/1.0")
	res, err := f.Fetch(context.Background(), server.URL+"/download?id=9")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.SuggestedName != "annex 2.pdf" {
		t.Errorf("suggested name = %q, want from Content-Disposition", res.SuggestedName)
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := New(5*time.Second, "Test/1.0")
	res, err := f.Fetch(context.Background(), server.URL+"/files/a.pdf")
	if err == nil {
		t.Fatal("expected error for 503")
	}

	var httpErr retry.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want HTTPError 503", err)
	}
	if res == nil || res.StatusCode != http.StatusServiceUnavailable {
		t.Error("result with status code must accompany the error")
	}
}

func TestFetch_SendsCookies(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(5*time.Second, "Test/1.0")
	f.ImportCookies(server.URL, []*http.Cookie{{Name: "session", Value: "abc123", Path: "/"}})

	if _, err := f.Fetch(context.Background(), server.URL+"/file.pdf"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotCookie != "abc123" {
		t.Errorf("server saw cookie %q, want abc123", gotCookie)
	}
}
