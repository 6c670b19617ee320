// Package dirsig groups duplicate directories by a deterministic signature
// over their recursive in-scope content.
//
// # Signature Construction
//
// Every directory with at least one in-scope file gets a signature folded
// from its sorted (key, size, digest) tuples, one per descendant file:
//
//	structural mode:       key = path relative to the signed directory
//	content-multiset mode: key = "" (only the content multiset matters)
//
// Sorting before folding makes the signature independent of on-disk
// iteration order. File count and total bytes are folded in first.
//
// # Digest Trust
//
// Unlike file groups, directory groups trust the signature without a
// recursive byte-comparison pass. A full cross-check of every candidate pair
// would be prohibitively expensive; the per-file digests feeding the
// signature were themselves byte-confirmed wherever they formed file groups.
//
// Per-directory signature computation fans out across a semaphore-limited
// worker set; each worker reads only its own descendant subset and results
// are merged sequentially.
package dirsig

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivoronin/mediadupes/internal/cache"
	"github.com/ivoronin/mediadupes/internal/fingerprint"
	"github.com/ivoronin/mediadupes/internal/media"
	"github.com/ivoronin/mediadupes/internal/progress"
	"github.com/ivoronin/mediadupes/internal/types"
	"github.com/ivoronin/mediadupes/internal/walker"
)

// Signer computes directory signatures and groups directories sharing one.
//
// The signer is designed for single-use: create with New(), call Run() once.
type Signer struct {
	// Config (immutable, set by New)
	mode    types.DirectoryMode
	workers int
	cache   *cache.Cache
	notes   *types.Notes
	bar     *progress.Bar

	// Sub-enumeration walker. Its notes are discarded: every entry under
	// the scan root was already visited (and any failure noted) during the
	// collection phase, so re-noting here would duplicate entries.
	walker *walker.Walker

	fullFn func(path string) (uint64, error)

	stats *stats
}

// New creates a Signer. The cache may be nil or disabled; bar may be nil.
func New(mode types.DirectoryMode, workers int, classifier *media.Classifier, digestCache *cache.Cache, notes *types.Notes, bar *progress.Bar) *Signer {
	if workers < 1 {
		workers = 1
	}
	return &Signer{
		mode:    mode,
		workers: workers,
		cache:   digestCache,
		notes:   notes,
		bar:     bar,
		walker:  walker.New(classifier, types.NewNotes()),
		fullFn:  fingerprint.File,
	}
}

// stats tracks signing progress for the progress bar description.
type stats struct {
	signedDirs  atomic.Int64
	hashedFiles atomic.Int64
	groups      int
	startTime   time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Signed %d directories (+%d files hashed), %d duplicate groups in %.1fs",
		s.signedDirs.Load(), s.hashedFiles.Load(), s.groups,
		time.Since(s.startTime).Seconds())
}

// HashedFiles returns how many additional files were full-hashed for
// signatures (files whose size bucket never required a digest before).
func (s *Signer) HashedFiles() int {
	if s.stats == nil {
		return 0
	}
	return int(s.stats.hashedFiles.Load())
}

// entry is one signed directory awaiting grouping.
type entry struct {
	dir        string
	fileCount  int
	totalBytes int64
	signature  uint64
}

// Run signs every directory under root and returns groups of directories
// sharing a signature, ordered by descending file count, then total bytes,
// then member count. Directories with zero in-scope files are excluded and
// can never be grouped. files is the collection-phase record list; digests
// already computed by the file duplicate pipeline are reused.
//
// A non-nil error is returned only when ctx is cancelled; no group is ever
// emitted for an aborted directory.
func (s *Signer) Run(ctx context.Context, root string, files []*types.FileRecord) ([]types.DirectoryGroup, error) {
	s.stats = &stats{startTime: time.Now()}
	if s.bar != nil {
		s.bar.Describe(s.stats)
	}

	if err := s.ensureDigests(ctx, files); err != nil {
		return nil, err
	}

	// Index by path for the per-directory sub-enumerations. Files that are
	// unreadable or empty never contribute to a signature.
	byPath := make(map[string]*types.FileRecord, len(files))
	for _, f := range files {
		if f.Hashed && f.Size > 0 {
			byPath[f.Path] = f
		}
	}

	results := make(chan entry, 64)
	sem := types.NewSemaphore(s.workers)
	var wg sync.WaitGroup

	go func() {
		for dir := range s.walker.Dirs(ctx, root) {
			wg.Add(1)
			go func(dir string) {
				defer wg.Done()
				sem.Acquire()
				defer sem.Release()
				if e, ok := s.sign(ctx, dir, byPath); ok {
					results <- e
				}
			}(dir)
		}
		wg.Wait()
		close(results)
	}()

	buckets := make(map[uint64][]entry)
	for e := range results {
		buckets[e.signature] = append(buckets[e.signature], e)
		s.stats.signedDirs.Add(1)
		if s.bar != nil {
			s.bar.Describe(s.stats)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var groups []types.DirectoryGroup
	for sig, members := range buckets {
		if len(members) < 2 {
			continue
		}
		dirs := make([]string, len(members))
		for i, m := range members {
			dirs[i] = m.dir
		}
		slices.Sort(dirs)
		groups = append(groups, types.DirectoryGroup{
			FileCount:  members[0].fileCount,
			TotalBytes: members[0].totalBytes,
			Signature:  sig,
			Dirs:       dirs,
		})
	}
	sortGroups(groups)
	s.stats.groups = len(groups)

	if s.bar != nil {
		s.bar.Finish(s.stats)
	}
	return groups, nil
}

// ensureDigests full-hashes every readable non-empty file that the file
// duplicate pipeline left untouched (unique sizes, pruned quick buckets).
// Failures are noted once and the file drops out of all signatures.
func (s *Signer) ensureDigests(ctx context.Context, files []*types.FileRecord) error {
	var pending []*types.FileRecord
	for _, f := range files {
		if f.Readable && !f.Hashed && f.Size > 0 {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return ctx.Err()
	}

	sem := types.NewSemaphore(s.workers)
	var wg sync.WaitGroup
	for _, f := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(rec *types.FileRecord) {
			defer wg.Done()
			sem.Acquire()
			defer sem.Release()

			if digest, ok := s.cache.Lookup(rec); ok {
				rec.Full = digest
				rec.Hashed = true
				return
			}
			digest, err := s.fullFn(rec.Path)
			if err != nil {
				s.notes.Add(rec.Path, "full digest: "+err.Error())
				rec.Readable = false
				return
			}
			s.cache.Store(rec, digest)
			rec.Full = digest
			rec.Hashed = true
			s.stats.hashedFiles.Add(1)
			if s.bar != nil {
				s.bar.Describe(s.stats)
			}
		}(f)
	}
	wg.Wait()
	return ctx.Err()
}

// tuple is one file's contribution to a directory signature.
type tuple struct {
	key    string
	size   int64
	digest uint64
}

// sign enumerates the in-scope files under dir and folds their sorted
// tuples into a signature. Returns ok=false for directories with no
// in-scope content.
func (s *Signer) sign(ctx context.Context, dir string, byPath map[string]*types.FileRecord) (entry, bool) {
	var tuples []tuple
	var totalBytes int64

	for f := range s.walker.Files(ctx, dir) {
		rec, ok := byPath[f.Path]
		if !ok {
			continue
		}
		key := ""
		if s.mode == types.ModeStructural {
			rel, err := filepath.Rel(dir, rec.Path)
			if err != nil {
				continue
			}
			key = filepath.ToSlash(rel)
		}
		tuples = append(tuples, tuple{key: key, size: rec.Size, digest: rec.Full})
		totalBytes += rec.Size
	}
	if len(tuples) == 0 || ctx.Err() != nil {
		return entry{}, false
	}

	slices.SortFunc(tuples, func(a, b tuple) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		if a.size != b.size {
			if a.size < b.size {
				return -1
			}
			return 1
		}
		switch {
		case a.digest < b.digest:
			return -1
		case a.digest > b.digest:
			return 1
		}
		return 0
	})

	d := fingerprint.New()
	d.WriteUint64(uint64(len(tuples)))
	d.WriteUint64(uint64(totalBytes))
	for _, t := range tuples {
		if s.mode == types.ModeStructural {
			d.WriteString(t.key)
		}
		d.WriteUint64(uint64(t.size))
		d.WriteUint64(t.digest)
	}

	return entry{
		dir:        dir,
		fileCount:  len(tuples),
		totalBytes: totalBytes,
		signature:  d.Sum64(),
	}, true
}

// sortGroups orders groups by descending file count, then total bytes, then
// member count, then ascending first directory for determinism.
func sortGroups(groups []types.DirectoryGroup) {
	slices.SortFunc(groups, func(a, b types.DirectoryGroup) int {
		if a.FileCount != b.FileCount {
			return b.FileCount - a.FileCount
		}
		if a.TotalBytes != b.TotalBytes {
			if a.TotalBytes > b.TotalBytes {
				return -1
			}
			return 1
		}
		if len(a.Dirs) != len(b.Dirs) {
			return len(b.Dirs) - len(a.Dirs)
		}
		return strings.Compare(a.Dirs[0], b.Dirs[0])
	})
}
