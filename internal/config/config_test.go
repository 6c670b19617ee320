package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ivoronin/mediadupes/internal/types"
)

// TestDefault verifies the built-in defaults are valid and sensible.
func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.DirectoryMode != types.ModeContent {
		t.Errorf("default mode = %s, want %s", cfg.DirectoryMode, types.ModeContent)
	}
	if cfg.QuickChunkBytes != 64*1024 {
		t.Errorf("default chunk = %d, want 65536", cfg.QuickChunkBytes)
	}
	if cfg.Workers < 1 {
		t.Errorf("default workers = %d, want >= 1", cfg.Workers)
	}
	if cfg.CacheFile != "" {
		t.Error("caching should be off by default")
	}
}

// TestLoadEmptyPath verifies an empty path returns the defaults.
func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DirectoryMode != Default().DirectoryMode {
		t.Error("empty path should return the defaults")
	}
}

// TestLoadOverlay verifies YAML values override defaults while unset keys
// keep them.
func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
directory_mode: structural
workers: 2
extensions: [".jpg", ".png"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DirectoryMode != types.ModeStructural {
		t.Errorf("mode = %s, want structural", cfg.DirectoryMode)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
	if len(cfg.Extensions) != 2 {
		t.Errorf("extensions = %v, want 2 entries", cfg.Extensions)
	}
	// Unset keys keep their defaults.
	if cfg.QuickChunkBytes != DefaultQuickChunkBytes {
		t.Errorf("chunk = %d, want default", cfg.QuickChunkBytes)
	}
}

// TestLoadMissingFile verifies a nonexistent config file is an error.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

// TestLoadMalformed verifies invalid YAML is an error.
func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workers: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

// TestValidateRejections verifies each invariant is enforced.
func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.DirectoryMode = "fuzzy" }},
		{"zero chunk", func(c *Config) { c.QuickChunkBytes = 0 }},
		{"negative chunk", func(c *Config) { c.QuickChunkBytes = -1 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"no extensions", func(c *Config) { c.Extensions = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
