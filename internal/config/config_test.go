package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Binary != "dots.ocr" {
		t.Fatalf("expected default binary dots.ocr, got %s", cfg.Engine.Binary)
	}
	if cfg.Engine.ResultFilename != "result.json" {
		t.Fatalf("expected result.json, got %s", cfg.Engine.ResultFilename)
	}
	if len(cfg.Engine.FirstPassArgs) != 2 || cfg.Engine.FirstPassArgs[1] != "layout_all" {
		t.Fatalf("unexpected first pass args %v", cfg.Engine.FirstPassArgs)
	}
	if cfg.Engine.PictureMode != "prompt_grounding_ocr" {
		t.Fatalf("unexpected picture mode %s", cfg.Engine.PictureMode)
	}
	if cfg.Engine.PictureTempDir != "_picture_temp" {
		t.Fatalf("unexpected picture temp dir %s", cfg.Engine.PictureTempDir)
	}
	if cfg.Watch.PollInterval.Duration() != 2*time.Second {
		t.Fatalf("unexpected poll interval %v", cfg.Watch.PollInterval.Duration())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.toml")

	content := `
[server]
host = "127.0.0.1"
port = 9090

[server.auth]
enabled = true
api_keys = ["test-key"]

[engine]
binary = "/opt/ocr/dots.ocr"

[watch]
enabled = true
directory = "/data/inbox"
poll_interval = "5s"

[logging]
level = "debug"
format = "text"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Fatalf("server config not applied: %+v", cfg.Server)
	}
	if !cfg.Server.Auth.Enabled || len(cfg.Server.Auth.APIKeys) != 1 {
		t.Fatalf("auth config not applied: %+v", cfg.Server.Auth)
	}
	if cfg.Engine.Binary != "/opt/ocr/dots.ocr" {
		t.Fatalf("engine binary not applied: %s", cfg.Engine.Binary)
	}
	// Untouched engine fields keep their defaults
	if cfg.Engine.PictureMode != "prompt_grounding_ocr" {
		t.Fatalf("picture mode default lost: %s", cfg.Engine.PictureMode)
	}
	if !cfg.Watch.Enabled || cfg.Watch.Directory != "/data/inbox" {
		t.Fatalf("watch config not applied: %+v", cfg.Watch)
	}
	if cfg.Watch.PollInterval.Duration() != 5*time.Second {
		t.Fatalf("poll interval not parsed: %v", cfg.Watch.PollInterval.Duration())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("logging config not applied: %+v", cfg.Logging)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server.toml")
	os.WriteFile(configPath, []byte("[watch]\npoll_interval = \"banana\"\n"), 0o644)

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadWebhookTokenFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	tokenPath := filepath.Join(tmpDir, "token")
	os.WriteFile(tokenPath, []byte("s3cret\n"), 0o600)

	configPath := filepath.Join(tmpDir, "server.toml")
	content := `
[output.webhook]
enabled = true
url = "http://paperless:8000/api/documents/post_document/"
token_file = "` + tokenPath + `"
`
	os.WriteFile(configPath, []byte(content), 0o644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output.Webhook.Token != "s3cret" {
		t.Fatalf("token not loaded, got %q", cfg.Output.Webhook.Token)
	}
}

func TestProfileStoreBuiltins(t *testing.T) {
	store, err := NewProfileStore("")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	std, ok := store.Get("standard")
	if !ok {
		t.Fatal("standard profile missing")
	}
	if !std.OCR.PicturePass {
		t.Fatal("standard profile must enable the picture pass")
	}
	if len(std.OCR.FirstPassArgs) != 2 || std.OCR.FirstPassArgs[1] != "layout_all" {
		t.Fatalf("unexpected standard args %v", std.OCR.FirstPassArgs)
	}

	lo, ok := store.Get("layout-only")
	if !ok {
		t.Fatal("layout-only profile missing")
	}
	if lo.OCR.PicturePass {
		t.Fatal("layout-only profile must skip the picture pass")
	}

	if _, ok := store.Get("nope"); ok {
		t.Fatal("unknown profile must not resolve")
	}

	if len(store.List()) != 3 {
		t.Fatalf("expected 3 built-in profiles, got %d", len(store.List()))
	}
}

func TestProfileStoreFromDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	content := `
[profile]
name = "Receipts"
description = "Dense small print"

[ocr]
first_pass_args = ["--mode", "layout_all", "--dpi", "600"]
picture_pass = true

[output]
default_target = "webhook"
`
	os.WriteFile(filepath.Join(tmpDir, "receipts.toml"), []byte(content), 0o644)
	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("ignored"), 0o644)

	store, err := NewProfileStore(tmpDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	p, ok := store.Get("receipts")
	if !ok {
		t.Fatal("receipts profile missing")
	}
	if p.Profile.Name != "Receipts" {
		t.Fatalf("unexpected name %s", p.Profile.Name)
	}
	if len(p.OCR.FirstPassArgs) != 4 {
		t.Fatalf("unexpected args %v", p.OCR.FirstPassArgs)
	}
	if p.Output.DefaultTarget != "webhook" {
		t.Fatalf("unexpected target %s", p.Output.DefaultTarget)
	}

	// Built-ins survive alongside directory profiles
	if _, ok := store.Get("standard"); !ok {
		t.Fatal("built-in profile lost")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Standard", "standard"},
		{"Layout Only", "layout-only"},
		{"  Receipt Scans  ", "receipt-scans"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slug(tt.input); got != tt.expected {
			t.Fatalf("Slug(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestProfileStoreMissingDirectory(t *testing.T) {
	store, err := NewProfileStore(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing directory must not fail: %v", err)
	}
	if _, ok := store.Get("standard"); !ok {
		t.Fatal("built-ins missing")
	}
}
