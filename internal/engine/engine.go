// Package engine orchestrates a scan: traversal, file duplicate detection,
// directory signatures and report assembly.
//
// A scan is a single pass with no state shared between invocations. The
// returned ScanResult is immutable; renderers (CLI text/CSV, web) only read
// it. Entry-local failures surface as ErrorNotes on the result so a
// partially successful scan is visibly distinct from a clean one; only a
// missing or inaccessible root is scan-fatal, yielding an empty result with
// a single note and zero counters.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/mediadupes/internal/cache"
	"github.com/ivoronin/mediadupes/internal/config"
	"github.com/ivoronin/mediadupes/internal/detector"
	"github.com/ivoronin/mediadupes/internal/dirsig"
	"github.com/ivoronin/mediadupes/internal/media"
	"github.com/ivoronin/mediadupes/internal/progress"
	"github.com/ivoronin/mediadupes/internal/types"
	"github.com/ivoronin/mediadupes/internal/walker"
)

// Engine runs scans with a fixed configuration. One Engine may serve many
// sequential or concurrent Scan calls; each call owns all of its state.
type Engine struct {
	cfg          config.Config
	cache        *cache.Cache
	showProgress bool
}

// New creates an Engine. digestCache may be nil (no caching).
func New(cfg config.Config, digestCache *cache.Cache, showProgress bool) *Engine {
	return &Engine{cfg: cfg, cache: digestCache, showProgress: showProgress}
}

// collectStats tracks the collection phase for the progress spinner.
type collectStats struct {
	files     int
	bytes     int64
	startTime time.Time
}

func (s *collectStats) String() string {
	return fmt.Sprintf("Collected %d media files (%s) in %.1fs",
		s.files, humanize.IBytes(uint64(s.bytes)), time.Since(s.startTime).Seconds())
}

// Scan walks root and returns the duplicate report.
//
// A missing or inaccessible root is not an error in the Go sense: the
// result carries one note and empty groups. The only non-nil error is
// context cancellation, in which case no result is returned at all (no
// partial groups ever escape an aborted scan).
func (e *Engine) Scan(ctx context.Context, root string) (*types.ScanResult, error) {
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return fatalResult(root, err.Error(), start), nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fatalResult(abs, "root: "+reason(err), start), nil
	}
	// A single file as root scans its parent directory.
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	notes := types.NewNotes()
	classifier := media.NewClassifier(e.cfg.Extensions)
	w := walker.New(classifier, notes)

	// Phase 1: collect in-scope files.
	bar := progress.New(e.showProgress)
	cs := &collectStats{startTime: start}
	var files []*types.FileRecord
	for f := range w.Files(ctx, abs) {
		files = append(files, f)
		cs.files++
		cs.bytes += f.Size
		bar.Describe(cs)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bar.Finish(cs)

	// Phase 2: confirmed duplicate files.
	det := detector.New(e.cfg.QuickChunkBytes, e.cfg.Workers, e.cache, notes, progress.New(e.showProgress))
	fileGroups, err := det.Run(ctx, files)
	if err != nil {
		return nil, err
	}

	// Phase 3: duplicate directories.
	signer := dirsig.New(e.cfg.DirectoryMode, e.cfg.Workers, classifier, e.cache, notes, progress.New(e.showProgress))
	dirGroups, err := signer.Run(ctx, abs, files)
	if err != nil {
		return nil, err
	}

	return &types.ScanResult{
		Root:           abs,
		FileGroups:     fileGroups,
		DirGroups:      dirGroups,
		Notes:          dedupeNotes(notes.Items()),
		CandidateFiles: len(files),
		HashedFiles:    det.HashedFiles() + signer.HashedFiles(),
		Elapsed:        time.Since(start),
	}, nil
}

// fatalResult builds the empty result for a scan-fatal condition.
func fatalResult(path, why string, start time.Time) *types.ScanResult {
	return &types.ScanResult{
		Root:    path,
		Notes:   []types.ErrorNote{{Path: path, Reason: why}},
		Elapsed: time.Since(start),
	}
}

// dedupeNotes drops exact repeats while preserving first-seen order, so one
// failing entry reports once no matter how many phases touched it.
func dedupeNotes(notes []types.ErrorNote) []types.ErrorNote {
	seen := make(map[types.ErrorNote]struct{}, len(notes))
	out := notes[:0]
	for _, n := range notes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func reason(err error) string {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err.Error()
	}
	return err.Error()
}
