package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchArchive_Extracts(t *testing.T) {
	body := zipBytes(t, map[string]string{
		"inputs/report.txt": "rapport",
		"inputs/notes/a.md": "notes",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	n, err := FetchArchive(context.Background(), srv.Client(), srv.URL+"/data.zip", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 files, got %d", n)
	}
	got, err := os.ReadFile(filepath.Join(dir, "inputs", "notes", "a.md"))
	if err != nil || string(got) != "notes" {
		t.Fatalf("unexpected extracted content %q (%v)", got, err)
	}
}

func TestFetchArchive_RejectsEscapingEntries(t *testing.T) {
	body := zipBytes(t, map[string]string{"../evil.txt": "x"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := FetchArchive(context.Background(), srv.Client(), srv.URL, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for path traversal entry")
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); !os.IsNotExist(err) {
		t.Fatal("escaping entry was written")
	}
}

func TestFetchArchive_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := FetchArchive(context.Background(), srv.Client(), srv.URL, t.TempDir()); err == nil {
		t.Fatal("expected error for 404")
	}
}
