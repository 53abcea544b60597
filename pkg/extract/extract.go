// Package extract turns a package path — either a packaged archive file
// or an already-extracted directory — into a plain directory the rest of
// the installer can read from (C3, §4.4).
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/scratch"
)

// Suffix is the packaged archive file extension (§6).
const Suffix = ".mpi"

// Result describes where the package's contents live on disk.
type Result struct {
	// Root is the directory containing the package's files
	// (either the input directory, or a fresh scratch extraction).
	Root string
	// Scratch is true if Root is a scratch directory this package
	// created and the caller should let the scratch registry clean up.
	Scratch bool
}

// Extract resolves path per §4.4: a directory is returned as-is; a file
// ending in Suffix is opened with the archive codec, every entry is
// extracted into a fresh scratch directory, and that directory is
// registered with reg for end-of-run cleanup.
func Extract(codec archive.Codec, reg *scratch.Registry, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("extract: stat %s: %w", path, err)
	}

	if info.IsDir() {
		return Result{Root: path, Scratch: false}, nil
	}

	if !strings.EqualFold(filepath.Ext(path), Suffix) {
		return Result{}, fmt.Errorf("extract: %s is neither a directory nor a %s package", path, Suffix)
	}

	dir, err := reg.Create(os.TempDir())
	if err != nil {
		return Result{}, fmt.Errorf("extract: create scratch dir: %w", err)
	}

	if err := extractAll(codec, path, dir); err != nil {
		reg.CleanupAll()
		return Result{}, err
	}

	return Result{Root: dir, Scratch: true}, nil
}

func extractAll(codec archive.Codec, packagePath, destDir string) error {
	h, err := codec.OpenArchive(packagePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", packagePath, err)
	}
	defer codec.CloseArchive(h)

	entries, err := entryPaths(codec, h)
	if err != nil {
		return fmt.Errorf("extract: list entries of %s: %w", packagePath, err)
	}

	for _, entry := range entries {
		data, err := codec.ExtractFile(h, entry)
		if err != nil {
			return fmt.Errorf("extract: read entry %s: %w", entry, err)
		}

		target := filepath.Join(destDir, filepath.FromSlash(entry))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract: create dir for %s: %w", entry, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("extract: write %s: %w", target, err)
		}
	}

	return nil
}

// entryPaths enumerates every entry in an open archive by walking its
// fixed file table: FileCount gives the length, FileNameAt resolves each
// index to its entry path (§4.4, §4.5).
func entryPaths(codec archive.Codec, h archive.Handle) ([]string, error) {
	n := codec.FileCount(h)
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := codec.FileNameAt(h, i)
		if err != nil {
			return nil, fmt.Errorf("extract: file name at index %d: %w", i, err)
		}
		paths = append(paths, name)
	}
	return paths, nil
}
