// Package process dispatches a single asset's operation: read its source
// bytes, transform them per the asset's op-type, and write the result to
// its target (C9, §4.8, §4.10).
package process

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/ttw-community/mpi-installer/pkg/audio"
	"github.com/ttw-community/mpi-installer/pkg/bsaread"
	"github.com/ttw-community/mpi-installer/pkg/bsawrite"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/patch"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
)

// zlibInZlibMagic is the two-byte zlib header the archive codec may
// return at the start of an already-compressed payload (§9).
var zlibInZlibMagic = []byte{0x78, 0x9C}

// Env bundles everything process(asset) needs to resolve locations, read
// sources, run helper tools, and write results.
type Env struct {
	Resolver    *resolver.Resolver
	Locations   []manifest.Location
	PackageRoot string // extracted package root, for op-type 1 (new)
	ReadCache   *bsaread.Cache
	Writer      *bsawrite.Collector
	Tools       patch.Tools
	AudioTool   audio.Tool
	ScratchDir  string
}

// MissingSourceError indicates an asset's source bytes could not be
// located in either the expected archive or directory (§4.8, §7).
type MissingSourceError struct {
	Path string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("process: source not found: %s", e.Path)
}

// Process executes asset's operation and writes its result. It never
// panics on a per-asset failure; all failures are returned as errors for
// the caller to log and continue past (§5, §7).
func Process(env *Env, asset manifest.Asset) error {
	switch asset.OpType {
	case manifest.OpCopy:
		return processCopyOrNew(env, asset, false)
	case manifest.OpNew:
		return processCopyOrNew(env, asset, true)
	case manifest.OpPatch:
		return processPatch(env, asset)
	case manifest.OpAudioResample:
		return processAudioResample(env, asset)
	case manifest.OpAudioTranscode:
		return processAudioTranscode(env, asset)
	case manifest.OpReserved:
		return fmt.Errorf("process: op-type 3 is reserved and unsupported")
	default:
		return fmt.Errorf("process: unknown op-type %d", asset.OpType)
	}
}

func processCopyOrNew(env *Env, asset manifest.Asset, fromPackageRoot bool) error {
	var data []byte
	var err error

	if fromPackageRoot {
		data, err = readFromDirectory(env.PackageRoot, asset.SourcePath)
	} else {
		data, err = readSource(env, asset.SourceLoc, asset.SourcePath)
	}
	if err != nil {
		return err
	}

	data = stripZlibInZlib(data)
	return writeTarget(env, asset, data)
}

func processPatch(env *Env, asset manifest.Asset) error {
	blobPath := filepath.Join(env.PackageRoot, asset.TargetPath+".xd3")
	patchBlob, err := os.ReadFile(blobPath)
	if err != nil {
		return fmt.Errorf("process: read patch blob %s: %w", blobPath, err)
	}

	reference, err := readSource(env, asset.SourceLoc, asset.SourcePath)
	if err != nil {
		reference, err = readFromDirectory(env.PackageRoot, asset.SourcePath)
		if err != nil {
			return err
		}
	}

	patched, err := patch.Apply(env.Tools, env.ScratchDir, reference, patchBlob)
	if err != nil {
		return err
	}
	return writeTarget(env, asset, patched)
}

func processAudioResample(env *Env, asset manifest.Asset) error {
	source, err := readSource(env, asset.SourceLoc, asset.SourcePath)
	if err != nil {
		return err
	}
	params := audio.ParseParams(asset.Params)
	out, err := env.AudioTool.Resample(env.ScratchDir, source, params)
	if err != nil {
		return err
	}
	return writeTarget(env, asset, out)
}

func processAudioTranscode(env *Env, asset manifest.Asset) error {
	source, err := readSource(env, asset.SourceLoc, asset.SourcePath)
	if err != nil {
		return err
	}
	params := audio.ParseParams(asset.Params)
	out, err := env.AudioTool.Transcode(env.ScratchDir, filepath.Ext(asset.SourcePath), filepath.Ext(asset.TargetPath), source, params)
	if err != nil {
		return err
	}
	return writeTarget(env, asset, out)
}

// readSource reads sourcePath from sourceLoc's location: if it's a
// read-archive location, via the archive read cache; otherwise from the
// filesystem with a case-insensitive fallback (§4.8).
func readSource(env *Env, sourceLoc int, sourcePath string) ([]byte, error) {
	loc, err := manifest.LocationAt(env.Locations, sourceLoc)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	if resolver.IsBsaLocation(loc) {
		bsaPath, err := env.Resolver.GetBsaPath(loc)
		if err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		normalized := normalizeArchiveEntryPath(sourcePath)
		data, err := env.ReadCache.ExtractFile(bsaPath, normalized)
		if err != nil {
			return nil, &MissingSourceError{Path: sourcePath}
		}
		return data, nil
	}

	dir, err := env.Resolver.GetDirectoryPath(loc)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	return readFromDirectory(dir, sourcePath)
}

func normalizeArchiveEntryPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

// readFromDirectory reads dir/relPath, falling back to a case-insensitive
// directory walk if the exact path doesn't exist (§4.8).
func readFromDirectory(dir, relPath string) ([]byte, error) {
	normalized := filepath.FromSlash(strings.ReplaceAll(relPath, `\`, "/"))
	path := filepath.Join(dir, normalized)

	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}

	found, walkErr := findCaseInsensitive(dir, normalized)
	if walkErr != nil || found == "" {
		return nil, &MissingSourceError{Path: relPath}
	}
	data, err = os.ReadFile(found)
	if err != nil {
		return nil, &MissingSourceError{Path: relPath}
	}
	return data, nil
}

func findCaseInsensitive(root, relPath string) (string, error) {
	wantSegments := strings.Split(filepath.ToSlash(relPath), "/")

	current := root
	for _, want := range wantSegments {
		entries, err := os.ReadDir(current)
		if err != nil {
			return "", err
		}
		matched := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name(), want) {
				matched = e.Name()
				break
			}
		}
		if matched == "" {
			return "", nil
		}
		current = filepath.Join(current, matched)
	}
	return current, nil
}

// stripZlibInZlib strips the 2-byte zlib header and inflates the
// raw-deflate body when data begins with the 78 9C magic, falling back
// to the raw bytes on any decode failure or if decoding takes longer
// than 30 seconds (§9).
func stripZlibInZlib(data []byte) []byte {
	if len(data) < 2 || data[0] != zlibInZlibMagic[0] || data[1] != zlibInZlibMagic[1] {
		return data
	}

	done := make(chan []byte, 1)
	go func() {
		fr := flate.NewReader(bytes.NewReader(data[2:]))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			out = data
		}
		done <- out
	}()

	select {
	case out := <-done:
		return out
	case <-time.After(30 * time.Second):
		return data
	}
}

// writeTarget normalizes the effective target path and delegates to the
// write-archive collector if targetLoc is a write target, or writes
// directly to the filesystem otherwise (4.10).
func writeTarget(env *Env, asset manifest.Asset, data []byte) error {
	normalized := normalizeEffectiveTargetPath(asset.TargetPath)

	if env.Writer.IsBsaLocation(asset.TargetLoc) {
		return env.Writer.AddFile(asset.TargetLoc, normalized, data)
	}

	loc, err := manifest.LocationAt(env.Locations, asset.TargetLoc)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	targetDir, err := env.Resolver.GetDirectoryPath(loc)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	destPath := filepath.Join(targetDir, filepath.FromSlash(normalized))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("process: create target directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("process: write %s: %w", destPath, err)
	}
	return nil
}

// normalizeEffectiveTargetPath strips a leading "./" or ".\" and leading
// separators (4.10).
func normalizeEffectiveTargetPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "./")
	return strings.TrimLeft(p, "/")
}
