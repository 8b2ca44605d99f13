package output

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkessler/ocrflow/internal/config"
	"github.com/mkessler/ocrflow/internal/jobs"
)

func testDocument(t *testing.T, artifacts ...string) *jobs.Document {
	t.Helper()
	doc := &jobs.Document{
		Filename: "page1.json",
		Reader:   strings.NewReader(`[{"category": "Text"}]`),
		Size:     23,
	}
	for _, path := range artifacts {
		doc.Artifacts = append(doc.Artifacts, jobs.Artifact{
			Filename: filepath.Base(path),
			Path:     path,
		})
	}
	return doc
}

func TestManagerTargets(t *testing.T) {
	cfg := config.OutputConfig{
		Filesystem: config.FilesystemConfig{Directory: t.TempDir()},
		Consume:    config.ConsumeConfig{Enabled: true, Path: t.TempDir()},
	}
	m := NewManager(cfg)

	targets := m.ListTargets()
	names := make(map[string]bool)
	for _, target := range targets {
		names[target.Name] = true
	}
	if !names["filesystem"] || !names["consume"] {
		t.Fatalf("expected filesystem and consume targets, got %v", targets)
	}
	if names["smb"] || names["webhook"] || names["email"] {
		t.Fatalf("disabled targets must not register: %v", targets)
	}
}

func TestManagerSendUnknownTarget(t *testing.T) {
	m := NewManager(config.OutputConfig{
		Filesystem: config.FilesystemConfig{Directory: t.TempDir()},
	})

	err := m.Send(context.Background(), "teleport", testDocument(t))
	if err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestFilesystemHandler(t *testing.T) {
	dir := t.TempDir()

	artifact := filepath.Join(t.TempDir(), "page1.md")
	os.WriteFile(artifact, []byte("# Page"), 0o644)

	h := NewFilesystemHandler(dir)
	if !h.Available() {
		t.Fatal("handler with directory must be available")
	}

	if err := h.Send(context.Background(), testDocument(t, artifact)); err != nil {
		t.Fatalf("send: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "page1.json"))
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	if !strings.Contains(string(data), "Text") {
		t.Fatalf("unexpected document content %s", data)
	}

	if _, err := os.Stat(filepath.Join(dir, "page1.md")); err != nil {
		t.Fatalf("artifact not copied: %v", err)
	}
}

func TestConsumeHandlerSkipsArtifacts(t *testing.T) {
	dir := t.TempDir()

	artifact := filepath.Join(t.TempDir(), "page1.md")
	os.WriteFile(artifact, []byte("# Page"), 0o644)

	h := NewConsumeHandler(config.ConsumeConfig{Enabled: true, Path: dir})
	if err := h.Send(context.Background(), testDocument(t, artifact)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "page1.json")); err != nil {
		t.Fatalf("document not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "page1.md")); !os.IsNotExist(err) {
		t.Fatal("consume folder must only receive the JSON document")
	}
}

func TestWebhookHandler(t *testing.T) {
	var gotAuth string
	var gotFiles []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		for field, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				gotFiles = append(gotFiles, field+":"+fh.Filename)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	artifact := filepath.Join(t.TempDir(), "page1.md")
	os.WriteFile(artifact, []byte("# Page"), 0o644)

	h := NewWebhookHandler(config.WebhookConfig{URL: srv.URL, Token: "s3cret"})
	if err := h.Send(context.Background(), testDocument(t, artifact)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAuth != "Token s3cret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}

	wantFiles := map[string]bool{
		"document:page1.json": true,
		"artifact:page1.md":   true,
	}
	for _, f := range gotFiles {
		if !wantFiles[f] {
			t.Fatalf("unexpected upload %s", f)
		}
		delete(wantFiles, f)
	}
	if len(wantFiles) != 0 {
		t.Fatalf("missing uploads: %v", wantFiles)
	}
}

func TestWebhookHandlerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewWebhookHandler(config.WebhookConfig{URL: srv.URL})
	if err := h.Send(context.Background(), testDocument(t)); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
