// Package report renders a ScanResult as CLI text or CSV. Renderers only
// read the result; they never influence traversal or hashing.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/mediadupes/internal/types"
)

// WriteText renders the human-readable report.
func WriteText(w io.Writer, res *types.ScanResult) {
	fmt.Fprintln(w, "=== Media duplicates report ===")
	fmt.Fprintf(w, "Root: %s\n", res.Root)
	fmt.Fprintf(w, "Elapsed: %.1fs\n", res.Elapsed.Seconds())
	fmt.Fprintf(w, "Candidate files: %d, hashed: %d\n\n", res.CandidateFiles, res.HashedFiles)

	if len(res.FileGroups) == 0 {
		fmt.Fprintln(w, "[Files] No duplicate media files.")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "[Files] Duplicate groups: %d\n\n", len(res.FileGroups))
		for i, g := range res.FileGroups {
			fmt.Fprintf(w, "File Group %d - %s (%d bytes) - count=%d\n",
				i+1, humanize.IBytes(uint64(g.Size)), g.Size, len(g.Paths))
			for _, p := range g.Paths {
				fmt.Fprintf(w, "  - %s\n", p)
			}
			fmt.Fprintln(w)
		}
	}

	if len(res.DirGroups) == 0 {
		fmt.Fprintln(w, "[Folders] No duplicate folders (by media content).")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "[Folders] Duplicate groups: %d\n\n", len(res.DirGroups))
		for i, g := range res.DirGroups {
			fmt.Fprintf(w, "Folder Group %d - files=%d - total=%s (%d bytes)\n",
				i+1, g.FileCount, humanize.IBytes(uint64(g.TotalBytes)), g.TotalBytes)
			for _, d := range g.Dirs {
				fmt.Fprintf(w, "  - %s\n", d)
			}
			fmt.Fprintln(w)
		}
	}

	if len(res.Notes) > 0 {
		fmt.Fprintf(w, "Notes (%d):\n", len(res.Notes))
		for _, n := range res.Notes {
			fmt.Fprintf(w, "  * %s - %s\n", n.Path, n.Reason)
		}
	}
}

// WriteFilesCSV exports file groups as CSV:
// group_id,file_size_bytes,file_path.
func WriteFilesCSV(w io.Writer, res *types.ScanResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"group_id", "file_size_bytes", "file_path"}); err != nil {
		return err
	}
	for i, g := range res.FileGroups {
		for _, p := range g.Paths {
			rec := []string{strconv.Itoa(i + 1), strconv.FormatInt(g.Size, 10), p}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDirsCSV exports directory groups as CSV:
// group_id,files_count,total_bytes,dir_path.
func WriteDirsCSV(w io.Writer, res *types.ScanResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"group_id", "files_count", "total_bytes", "dir_path"}); err != nil {
		return err
	}
	for i, g := range res.DirGroups {
		for _, d := range g.Dirs {
			rec := []string{
				strconv.Itoa(i + 1),
				strconv.Itoa(g.FileCount),
				strconv.FormatInt(g.TotalBytes, 10),
				d,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
