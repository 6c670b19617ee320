// Package walker provides fault-tolerant traversal of a directory subtree.
//
// The walker exposes pull-based sequences (iter.Seq) rather than callbacks:
// consumers range over entries and can stop at any point, which keeps
// cancellation and parallel fan-out at the caller's discretion.
//
// Failure policy: a directory that cannot be opened or listed is recorded as
// an ErrorNote and skipped; a file that cannot be stat'ed is recorded and
// excluded. The walk itself never aborts on entry-local errors. A missing
// root is the caller's scan-fatal case, handled before the walker runs.
package walker

import (
	"context"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/ivoronin/mediadupes/internal/media"
	"github.com/ivoronin/mediadupes/internal/types"
)

// batchSize bounds memory when listing directories with very many entries.
const batchSize = 1000

// Walker enumerates in-scope files and directories under a root.
// It is stateless apart from the shared note collector and safe for
// concurrent use, so per-directory sub-enumerations may run in parallel.
type Walker struct {
	classifier *media.Classifier
	notes      *types.Notes
}

// New creates a Walker. Entry-local failures are appended to notes;
// pass a throwaway collector to discard them.
func New(classifier *media.Classifier, notes *types.Notes) *Walker {
	return &Walker{classifier: classifier, notes: notes}
}

// Files returns the in-scope files under root (recursive). Records are
// created with Readable set; digests are left for the detectors to fill.
func (w *Walker) Files(ctx context.Context, root string) iter.Seq[*types.FileRecord] {
	return func(yield func(*types.FileRecord) bool) {
		w.walk(ctx, root, yield, nil)
	}
}

// Dirs returns every directory in the subtree, the root included.
func (w *Walker) Dirs(ctx context.Context, root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield(root) {
			return
		}
		w.walk(ctx, root, nil, yield)
	}
}

// walk is the shared traversal primitive, parameterized by root. Either
// yield may be nil. Returns false once a consumer stops the iteration.
func (w *Walker) walk(ctx context.Context, dir string, yieldFile func(*types.FileRecord) bool, yieldDir func(string) bool) bool {
	if ctx.Err() != nil {
		return false
	}

	files, subdirs := w.listDirectory(dir)

	for _, f := range files {
		if yieldFile != nil && !yieldFile(f) {
			return false
		}
	}
	for _, sub := range subdirs {
		if yieldDir != nil && !yieldDir(sub) {
			return false
		}
		if !w.walk(ctx, sub, yieldFile, yieldDir) {
			return false
		}
	}
	return true
}

// listDirectory reads a single directory in batches, returning in-scope
// files and subdirectories. The directory handle is closed before the caller
// recurses, so open descriptors stay bounded by recursion depth.
func (w *Walker) listDirectory(dir string) (files []*types.FileRecord, subdirs []string) {
	d, err := os.Open(dir)
	if err != nil {
		w.notes.Add(dir, "open directory: "+reason(err))
		return nil, nil
	}
	defer func() { _ = d.Close() }()

	for {
		entries, err := d.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && err != io.EOF {
				w.notes.Add(dir, "list directory: "+reason(err))
			}
			return files, subdirs
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			switch {
			case entry.IsDir():
				subdirs = append(subdirs, full)
			case entry.Type().IsRegular():
				if !w.classifier.Match(full) {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					w.notes.Add(full, "stat: "+reason(err))
					continue
				}
				files = append(files, &types.FileRecord{
					Path:     full,
					Size:     info.Size(),
					ModTime:  info.ModTime(),
					Readable: true,
				})
			default:
				// Symlinks, devices, sockets and the like are out of scope.
			}
		}
	}
}

// reason shortens an error to the part worth showing in a note: for
// *fs.PathError the underlying cause, since the note carries the path itself.
func reason(err error) string {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err.Error()
	}
	return err.Error()
}
