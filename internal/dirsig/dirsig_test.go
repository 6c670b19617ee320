package dirsig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivoronin/mediadupes/internal/media"
	"github.com/ivoronin/mediadupes/internal/types"
	"github.com/ivoronin/mediadupes/internal/walker"
)

// createFile writes content at root/rel, creating parent directories.
func createFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

// scanTree runs the collection phase and the signer over root.
func scanTree(t *testing.T, root string, mode types.DirectoryMode) []types.DirectoryGroup {
	t.Helper()
	classifier := media.NewClassifier(nil)
	notes := types.NewNotes()

	var files []*types.FileRecord
	for f := range walker.New(classifier, notes).Files(context.Background(), root) {
		files = append(files, f)
	}

	groups, err := New(mode, 4, classifier, nil, notes, nil).Run(context.Background(), root, files)
	if err != nil {
		t.Fatal(err)
	}
	return groups
}

// hasGroup reports whether some group contains exactly the given directories.
func hasGroup(groups []types.DirectoryGroup, dirs ...string) bool {
	for _, g := range groups {
		if len(g.Dirs) != len(dirs) {
			continue
		}
		match := true
		for i := range dirs {
			if g.Dirs[i] != dirs[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// =============================================================================
// Section 1: Structural Mode Tests
// =============================================================================

// TestStructuralDuplicates verifies directories with identical layout and
// content group together.
func TestStructuralDuplicates(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x.jpg", []byte("photo x"))
	createFile(t, root, "a/sub/y.jpg", []byte("photo y"))
	createFile(t, root, "b/x.jpg", []byte("photo x"))
	createFile(t, root, "b/sub/y.jpg", []byte("photo y"))
	createFile(t, root, "c/x.jpg", []byte("photo x"))
	createFile(t, root, "c/other.jpg", []byte("something else"))

	groups := scanTree(t, root, types.ModeStructural)

	if !hasGroup(groups, filepath.Join(root, "a"), filepath.Join(root, "b")) {
		t.Errorf("a and b should group structurally, got %v", groups)
	}
	for _, g := range groups {
		for _, d := range g.Dirs {
			if d == filepath.Join(root, "c") {
				t.Error("c has different content and should not group")
			}
		}
	}
}

// TestStructuralLayoutMatters verifies same content at different relative
// paths does not group structurally.
func TestStructuralLayoutMatters(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x.jpg", []byte("same bytes"))
	createFile(t, root, "b/renamed.jpg", []byte("same bytes"))

	groups := scanTree(t, root, types.ModeStructural)
	if hasGroup(groups, filepath.Join(root, "a"), filepath.Join(root, "b")) {
		t.Error("renamed file should break structural equivalence")
	}
}

// TestStructuralGroupMetadata verifies file count and total bytes.
func TestStructuralGroupMetadata(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x.jpg", []byte("12345"))
	createFile(t, root, "a/y.jpg", []byte("123"))
	createFile(t, root, "b/x.jpg", []byte("12345"))
	createFile(t, root, "b/y.jpg", []byte("123"))

	groups := scanTree(t, root, types.ModeStructural)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %v", groups)
	}
	g := groups[0]
	if g.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", g.FileCount)
	}
	if g.TotalBytes != 8 {
		t.Errorf("TotalBytes = %d, want 8", g.TotalBytes)
	}
	if g.Signature == 0 {
		t.Error("Signature should be set")
	}
}

// =============================================================================
// Section 2: Content Mode Tests
// =============================================================================

// TestContentIgnoresLayout verifies content mode groups directories holding
// the same file contents under different names and nesting.
func TestContentIgnoresLayout(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x.jpg", []byte("photo one"))
	createFile(t, root, "a/y.jpg", []byte("photo two!"))
	createFile(t, root, "b/deep/renamed1.jpg", []byte("photo one"))
	createFile(t, root, "b/renamed2.jpg", []byte("photo two!"))

	groups := scanTree(t, root, types.ModeContent)
	if !hasGroup(groups, filepath.Join(root, "a"), filepath.Join(root, "b")) {
		t.Errorf("a and b hold the same content multiset, got %v", groups)
	}
}

// TestContentMultisetCounts verifies duplicate copies inside one directory
// count toward the multiset: {x, x} is not equivalent to {x}.
func TestContentMultisetCounts(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x1.jpg", []byte("same"))
	createFile(t, root, "a/x2.jpg", []byte("same"))
	createFile(t, root, "b/x.jpg", []byte("same"))

	groups := scanTree(t, root, types.ModeContent)
	if hasGroup(groups, filepath.Join(root, "a"), filepath.Join(root, "b")) {
		t.Error("different multiplicities should not group")
	}
}

// TestContentDifferentContent verifies different content never groups.
func TestContentDifferentContent(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x.jpg", []byte("alpha"))
	createFile(t, root, "b/y.jpg", []byte("bravo"))

	groups := scanTree(t, root, types.ModeContent)
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %v", groups)
	}
}

// =============================================================================
// Section 3: Exclusion Tests
// =============================================================================

// TestEmptyDirsNeverGroup verifies directories without in-scope files are
// excluded entirely.
func TestEmptyDirsNeverGroup(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"e1", "e2", "e3"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Directories with only out-of-scope files are empty too.
	createFile(t, root, "t1/readme.txt", []byte("doc"))
	createFile(t, root, "t2/readme.txt", []byte("doc"))

	groups := scanTree(t, root, types.ModeContent)
	if len(groups) != 0 {
		t.Errorf("empty directories formed groups: %v", groups)
	}
}

// TestZeroByteFilesExcluded verifies empty files do not contribute to
// signatures, so directories holding only empty files never group.
func TestZeroByteFilesExcluded(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/empty.jpg", nil)
	createFile(t, root, "b/empty.jpg", nil)

	groups := scanTree(t, root, types.ModeContent)
	if len(groups) != 0 {
		t.Errorf("zero-byte content formed groups: %v", groups)
	}
}

// TestNestedDirsGroupIndependently verifies duplicated parents and their
// duplicated children each form their own group.
func TestNestedDirsGroupIndependently(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/inner/x.jpg", []byte("dup"))
	createFile(t, root, "a/extra.jpg", []byte("only here"))
	createFile(t, root, "b/inner/x.jpg", []byte("dup"))
	createFile(t, root, "b/extra.jpg", []byte("only here"))

	groups := scanTree(t, root, types.ModeStructural)

	// Both the parents and the inner directories group, independently.
	if !hasGroup(groups, filepath.Join(root, "a"), filepath.Join(root, "b")) {
		t.Errorf("parents should group, got %v", groups)
	}
	if !hasGroup(groups, filepath.Join(root, "a", "inner"), filepath.Join(root, "b", "inner")) {
		t.Errorf("inner directories should group, got %v", groups)
	}
}

// =============================================================================
// Section 4: Determinism Tests
// =============================================================================

// TestSignatureStableAcrossRuns verifies repeated scans produce identical
// groups and signatures.
func TestSignatureStableAcrossRuns(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a/x.jpg", []byte("photo x"))
	createFile(t, root, "a/y.jpg", []byte("photo y!"))
	createFile(t, root, "b/x.jpg", []byte("photo x"))
	createFile(t, root, "b/y.jpg", []byte("photo y!"))

	first := scanTree(t, root, types.ModeStructural)
	second := scanTree(t, root, types.ModeStructural)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 group per run, got %d and %d", len(first), len(second))
	}
	if first[0].Signature != second[0].Signature {
		t.Errorf("signatures differ across runs: %x vs %x", first[0].Signature, second[0].Signature)
	}
}
