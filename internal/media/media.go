// Package media decides which filesystem entries are in scope for a scan:
// regular files with a recognized image or video extension.
package media

import (
	"path/filepath"
	"strings"
)

// imageExtensions and videoExtensions are the default allow-list,
// matched case-insensitively.
var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".tif",
	".webp", ".heic", ".heif", ".raw", ".cr2", ".nef", ".arw",
}

var videoExtensions = []string{
	".mp4", ".m4v", ".mov", ".avi", ".mkv", ".webm", ".wmv",
	".mpeg", ".mpg", ".mpe", ".mts", ".m2ts", ".3gp", ".flv", ".ogv",
}

// DefaultExtensions returns the built-in image + video extension allow-list.
func DefaultExtensions() []string {
	out := make([]string, 0, len(imageExtensions)+len(videoExtensions))
	out = append(out, imageExtensions...)
	out = append(out, videoExtensions...)
	return out
}

// Classifier matches file paths against an extension allow-list.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	exts map[string]struct{}
}

// NewClassifier builds a Classifier from an extension list. Extensions are
// normalized to lower case and to a leading dot, so "JPG" and ".jpg" are
// equivalent inputs. An empty list falls back to DefaultExtensions.
func NewClassifier(extensions []string) *Classifier {
	if len(extensions) == 0 {
		extensions = DefaultExtensions()
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Classifier{exts: exts}
}

// Match reports whether the path carries an allow-listed extension.
// The caller is responsible for checking that the entry is a regular file.
func (c *Classifier) Match(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := c.exts[ext]
	return ok
}
