package config

import (
	"os"
	"path/filepath"
	"testing"

	"go-media-download/internal/queue"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Concurrency != queue.DefaultConcurrency {
		t.Errorf("Concurrency = %d, want default %d", cfg.Concurrency, queue.DefaultConcurrency)
	}
	if cfg.YtdlpPath != "yt-dlp" {
		t.Errorf("YtdlpPath = %q, want yt-dlp", cfg.YtdlpPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
SavePath = "/media/downloads"
Concurrency = 5
YtdlpPath = "/opt/yt-dlp"
MetadataTimeoutSec = 30
LogLevel = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SavePath != "/media/downloads" {
		t.Errorf("SavePath = %q", cfg.SavePath)
	}
	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.YtdlpPath != "/opt/yt-dlp" {
		t.Errorf("YtdlpPath = %q", cfg.YtdlpPath)
	}
	if cfg.MetadataTimeoutSec != 30 {
		t.Errorf("MetadataTimeoutSec = %d, want 30", cfg.MetadataTimeoutSec)
	}
	// Unset fields still default.
	if cfg.DatabasePath == "" {
		t.Error("DatabasePath default not applied")
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("Concurrency = ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed TOML should return an error")
	}
}

func TestLoadConfigNegativeConcurrencyPreserved(t *testing.T) {
	// Explicitly invalid values are left for the scheduler to reject rather
	// than being silently clamped.
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("Concurrency = -2"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency != -2 {
		t.Errorf("Concurrency = %d, want -2 preserved", cfg.Concurrency)
	}
}
