// Package config holds scan and server configuration, loadable from a YAML
// file with command-line flags layered on top.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/ivoronin/mediadupes/internal/media"
	"github.com/ivoronin/mediadupes/internal/types"
)

// DefaultQuickChunkBytes is the head/tail chunk size for quick fingerprints.
const DefaultQuickChunkBytes = 64 * 1024

// Config is the full application configuration.
type Config struct {
	// Extensions is the media extension allow-list (case-insensitive,
	// with or without leading dot). Empty means the built-in defaults.
	Extensions []string `yaml:"extensions"`

	// DirectoryMode selects the directory equivalence definition:
	// "structural" or "content".
	DirectoryMode types.DirectoryMode `yaml:"directory_mode"`

	// QuickChunkBytes is the size of the head and tail reads for the
	// quick fingerprint phase.
	QuickChunkBytes int64 `yaml:"quick_chunk_bytes"`

	// Workers bounds concurrent file reads and directory signings.
	Workers int `yaml:"workers"`

	// CacheFile enables the persistent digest cache when non-empty.
	// Scans are stateless between runs unless this is set.
	CacheFile string `yaml:"cache_file"`

	// Listen is the web front end's bind address.
	Listen string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Extensions:      media.DefaultExtensions(),
		DirectoryMode:   types.ModeContent,
		QuickChunkBytes: DefaultQuickChunkBytes,
		Workers:         runtime.NumCPU(),
		Listen:          "127.0.0.1:8080",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants shared by every consumer.
func (c Config) Validate() error {
	if _, err := types.ParseDirectoryMode(string(c.DirectoryMode)); err != nil {
		return err
	}
	if c.QuickChunkBytes <= 0 {
		return fmt.Errorf("quick_chunk_bytes must be positive, got %d", c.QuickChunkBytes)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extension allow-list is empty")
	}
	return nil
}
