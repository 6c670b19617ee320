// Package types provides shared types used across the mediadupes codebase.
package types

import (
	"fmt"
	"sync"
	"time"
)

// FileRecord holds metadata for one in-scope media file discovered during a
// scan. Quick and Full digests are populated lazily: a file is only hashed
// once its size bucket (and later its quick-digest bucket) has at least two
// members.
type FileRecord struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Quick    uint64
	Full     uint64
	Hashed   bool // Full holds a valid digest
	Readable bool // cleared on the first read failure
}

// FileGroup is a confirmed set of byte-identical files.
// Paths are sorted ascending; len(Paths) >= 2.
type FileGroup struct {
	Size  int64
	Paths []string
}

// DirectoryGroup is a set of directories sharing one content signature.
// Dirs are sorted ascending; len(Dirs) >= 2 and FileCount >= 1.
type DirectoryGroup struct {
	FileCount  int
	TotalBytes int64
	Signature  uint64
	Dirs       []string
}

// DirectoryMode selects the directory equivalence definition.
type DirectoryMode string

const (
	// ModeStructural groups directories containing files at the same
	// relative locations with identical size and content.
	ModeStructural DirectoryMode = "structural"
	// ModeContent groups directories containing the same multiset of file
	// contents regardless of names, nesting or layout.
	ModeContent DirectoryMode = "content"
)

// ParseDirectoryMode parses a mode string as used in flags and forms.
func ParseDirectoryMode(s string) (DirectoryMode, error) {
	switch DirectoryMode(s) {
	case ModeStructural:
		return ModeStructural, nil
	case ModeContent:
		return ModeContent, nil
	}
	return "", fmt.Errorf("unknown directory mode %q (want %q or %q)", s, ModeStructural, ModeContent)
}

// ErrorNote records a non-fatal observation made during a scan: an unreadable
// file, a failed size query, a directory that could not be listed. Notes never
// halt the scan.
type ErrorNote struct {
	Path   string
	Reason string
}

// Notes is a concurrency-safe ErrorNote collector. Workers append from any
// goroutine; the engine merges and reads once the scan settles.
type Notes struct {
	mu    sync.Mutex
	items []ErrorNote
}

// NewNotes creates an empty collector.
func NewNotes() *Notes { return &Notes{} }

// Add appends one note.
func (n *Notes) Add(path, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, ErrorNote{Path: path, Reason: reason})
}

// Items returns a copy of the collected notes.
func (n *Notes) Items() []ErrorNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ErrorNote, len(n.items))
	copy(out, n.items)
	return out
}

// Len returns the number of collected notes.
func (n *Notes) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items)
}

// ScanResult is the immutable outcome of one scan invocation, the sole
// handoff point to presentation layers. No component mutates it after
// assembly.
type ScanResult struct {
	Root           string
	FileGroups     []FileGroup
	DirGroups      []DirectoryGroup
	Notes          []ErrorNote
	CandidateFiles int
	HashedFiles    int
	Elapsed        time.Duration
}

// Semaphore implements a counting semaphore using a buffered channel.
// It limits concurrent access to a resource by blocking when the limit is reached.
type Semaphore chan struct{}

// NewSemaphore creates a semaphore that allows up to n concurrent acquisitions.
func NewSemaphore(n int) Semaphore { return make(chan struct{}, n) }

// Acquire blocks until a slot is available, then claims it.
func (s Semaphore) Acquire() { s <- struct{}{} }

// Release frees a slot, unblocking one waiting Acquire call.
func (s Semaphore) Release() { <-s }
