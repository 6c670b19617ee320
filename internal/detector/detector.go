// Package detector finds confirmed duplicate files among scanned candidates.
//
// # Processing Pipeline
//
//	Input: []*types.FileRecord (in-scope files from the walker)
//	    │
//	    ├──► Group by exact size, drop singletons (primary pruning, O(n))
//	    │
//	    ├──► Quick fingerprint (size + head + tail) sub-buckets
//	    │
//	    ├──► Full-content digest sub-buckets (parallel worker pool)
//	    │
//	    └──► Byte-for-byte confirmation classes → FileGroups
//
// # Why This Design?
//
//   - Size grouping eliminates most files without any I/O
//   - Quick fingerprints separate most same-size non-duplicates after
//     reading at most two small chunks
//   - Only surviving bucket members pay for a full-content read
//   - Confirmation defeats digest collisions: a candidate joins the first
//     class whose representative it matches byte-for-byte, else starts its
//     own class
//
// Full-digest computation fans out across a semaphore-limited worker set;
// each worker returns its result over a channel and the buckets are merged
// sequentially, so the bucket maps need no locking.
package detector

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/mediadupes/internal/cache"
	"github.com/ivoronin/mediadupes/internal/fingerprint"
	"github.com/ivoronin/mediadupes/internal/progress"
	"github.com/ivoronin/mediadupes/internal/types"
)

// Detector runs the file duplicate pipeline.
//
// The detector is designed for single-use: create with New(), call Run() once.
type Detector struct {
	// Config (immutable, set by New)
	chunk   int64        // Quick fingerprint chunk size (bytes)
	workers int          // Max concurrent full-content reads
	cache   *cache.Cache // Optional digest cache (disabled when nil)
	notes   *types.Notes // Shared non-fatal error collector
	bar     *progress.Bar

	// Digest functions, replaceable in tests to force collisions.
	quickFn func(path string, size, chunk int64) (uint64, error)
	fullFn  func(path string) (uint64, error)
	equalFn func(a, b string) (bool, error)

	stats *stats
}

// New creates a Detector. The cache may be nil or disabled; bar may be nil.
func New(chunk int64, workers int, digestCache *cache.Cache, notes *types.Notes, bar *progress.Bar) *Detector {
	if workers < 1 {
		workers = 1
	}
	return &Detector{
		chunk:   chunk,
		workers: workers,
		cache:   digestCache,
		notes:   notes,
		bar:     bar,
		quickFn: fingerprint.Quick,
		fullFn:  fingerprint.File,
		equalFn: fingerprint.Equal,
	}
}

// stats tracks detection progress for the progress bar description.
type stats struct {
	candidates  int
	hashedFiles atomic.Int64
	hashedBytes atomic.Int64
	groups      atomic.Int64
	startTime   time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Hashed %d/%d candidates (%s), %d duplicate groups in %.1fs",
		s.hashedFiles.Load(), s.candidates,
		humanize.IBytes(uint64(s.hashedBytes.Load())),
		s.groups.Load(),
		time.Since(s.startTime).Seconds())
}

// HashedFiles returns how many files had their full content streamed.
func (d *Detector) HashedFiles() int {
	if d.stats == nil {
		return 0
	}
	return int(d.stats.hashedFiles.Load())
}

// Run executes the pipeline and returns confirmed duplicate groups, ordered
// by descending size, then descending member count, then first path. Member
// paths within a group are sorted ascending.
//
// A non-nil error is returned only when ctx is cancelled; no group is ever
// emitted for an aborted bucket.
func (d *Detector) Run(ctx context.Context, files []*types.FileRecord) ([]types.FileGroup, error) {
	d.stats = &stats{candidates: len(files), startTime: time.Now()}
	if d.bar != nil {
		d.bar.Describe(d.stats)
	}

	// Size bucketing. Zero-byte files are never bucketed, hashed or matched.
	bySize := make(map[int64][]*types.FileRecord)
	for _, f := range files {
		if f.Size == 0 {
			continue
		}
		bySize[f.Size] = append(bySize[f.Size], f)
	}

	var groups []types.FileGroup
	for size, bucket := range bySize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(bucket) < 2 {
			continue
		}

		for _, quickBucket := range d.quickBuckets(bucket) {
			if len(quickBucket) < 2 {
				continue
			}
			fullBuckets, err := d.fullBuckets(ctx, quickBucket)
			if err != nil {
				return nil, err
			}
			for _, fullBucket := range fullBuckets {
				if len(fullBucket) < 2 {
					continue
				}
				for _, class := range d.confirm(fullBucket) {
					if len(class) < 2 {
						continue
					}
					slices.Sort(class)
					groups = append(groups, types.FileGroup{Size: size, Paths: class})
					d.stats.groups.Add(1)
				}
			}
			if d.bar != nil {
				d.bar.Describe(d.stats)
			}
		}
	}

	sortGroups(groups)
	if d.bar != nil {
		d.bar.Finish(d.stats)
	}
	return groups, nil
}

// quickBuckets sub-buckets one size bucket by the cheap head+tail digest.
// Files that cannot be read are noted, marked unreadable and dropped.
func (d *Detector) quickBuckets(bucket []*types.FileRecord) map[uint64][]*types.FileRecord {
	byQuick := make(map[uint64][]*types.FileRecord)
	for _, f := range bucket {
		q, err := d.quickFn(f.Path, f.Size, d.chunk)
		if err != nil {
			d.notes.Add(f.Path, "quick digest: "+err.Error())
			f.Readable = false
			continue
		}
		f.Quick = q
		byQuick[q] = append(byQuick[q], f)
	}
	return byQuick
}

// fullResult pairs a record with its computed digest for merging.
type fullResult struct {
	rec    *types.FileRecord
	digest uint64
	cached bool
	err    error
}

// fullBuckets streams every file in a quick bucket through the full-content
// digest on a semaphore-limited worker set and merges results sequentially.
func (d *Detector) fullBuckets(ctx context.Context, bucket []*types.FileRecord) (map[uint64][]*types.FileRecord, error) {
	results := make(chan fullResult, len(bucket))
	sem := types.NewSemaphore(d.workers)
	var wg sync.WaitGroup

	for _, f := range bucket {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		go func(rec *types.FileRecord) {
			defer wg.Done()
			sem.Acquire()
			defer sem.Release()

			if digest, ok := d.cache.Lookup(rec); ok {
				results <- fullResult{rec: rec, digest: digest, cached: true}
				return
			}
			digest, err := d.fullFn(rec.Path)
			if err == nil {
				d.cache.Store(rec, digest)
			}
			results <- fullResult{rec: rec, digest: digest, err: err}
		}(f)
	}
	wg.Wait()
	close(results)

	byFull := make(map[uint64][]*types.FileRecord)
	for r := range results {
		if r.err != nil {
			d.notes.Add(r.rec.Path, "full digest: "+r.err.Error())
			r.rec.Readable = false
			continue
		}
		r.rec.Full = r.digest
		r.rec.Hashed = true
		if !r.cached {
			d.stats.hashedFiles.Add(1)
			d.stats.hashedBytes.Add(r.rec.Size)
		}
		byFull[r.digest] = append(byFull[r.digest], r.rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return byFull, nil
}

// confirm splits one full-digest bucket into byte-identical equivalence
// classes. Each candidate is compared against the representative (first
// member) of every emerging class; a failed comparison due to I/O is noted
// and the candidate ends up alone in its own class, which is never emitted.
func (d *Detector) confirm(bucket []*types.FileRecord) [][]string {
	// Deterministic class formation regardless of map iteration upstream.
	slices.SortFunc(bucket, func(a, b *types.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})

	var classes [][]string
	for _, f := range bucket {
		placed := false
		for i := range classes {
			same, err := d.equalFn(f.Path, classes[i][0])
			if err != nil {
				d.notes.Add(f.Path, "compare: "+err.Error())
				continue
			}
			if same {
				classes[i] = append(classes[i], f.Path)
				placed = true
				break
			}
		}
		if !placed {
			classes = append(classes, []string{f.Path})
		}
	}
	return classes
}

// sortGroups orders groups by descending size, then descending member count,
// then ascending first path for determinism.
func sortGroups(groups []types.FileGroup) {
	slices.SortFunc(groups, func(a, b types.FileGroup) int {
		if a.Size != b.Size {
			if a.Size > b.Size {
				return -1
			}
			return 1
		}
		if len(a.Paths) != len(b.Paths) {
			return len(b.Paths) - len(a.Paths)
		}
		return strings.Compare(a.Paths[0], b.Paths[0])
	})
}
