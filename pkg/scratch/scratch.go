// Package scratch tracks scratch directories created during an install so
// they can be cleaned up at the end of the run, or swept on startup if a
// prior run crashed before cleaning up (C15, §3, §5).
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Prefix marks directories this package owns; only directories whose base
// name starts with Prefix are ever deleted, as a safety guard against
// removing something the caller pointed at by mistake.
const Prefix = "ttw_mpi_"

// Registry is a process-wide, mutex-protected set of scratch directories.
type Registry struct {
	mu   sync.Mutex
	dirs map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dirs: make(map[string]struct{})}
}

// Create makes a fresh scratch directory named with a random UUID under
// base (typically os.TempDir()) and registers it for later cleanup.
func (r *Registry) Create(base string) (string, error) {
	dir := filepath.Join(base, Prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("scratch: create %s: %w", dir, err)
	}

	r.mu.Lock()
	r.dirs[dir] = struct{}{}
	r.mu.Unlock()

	return dir, nil
}

// Register adds an externally-created directory to the registry, e.g. one
// the extractor produced directly.
func (r *Registry) Register(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[dir] = struct{}{}
}

// CleanupAll deletes every registered directory whose name matches Prefix,
// unregistering each on success. Errors are collected, not fatal — the
// spec's cleanup path always runs to completion (§5, §7).
func (r *Registry) CleanupAll() []error {
	r.mu.Lock()
	dirs := make([]string, 0, len(r.dirs))
	for d := range r.dirs {
		dirs = append(dirs, d)
	}
	r.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		if !strings.HasPrefix(filepath.Base(dir), Prefix) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("scratch: remove %s: %w", dir, err))
			continue
		}
		r.mu.Lock()
		delete(r.dirs, dir)
		r.mu.Unlock()
	}
	return errs
}

// SweepStale deletes any directory directly under base whose name matches
// Prefix, regardless of whether this process registered it — the
// startup-time cleanup of a prior run's leftovers (§5, §7).
func SweepStale(base string) []error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return []error{fmt.Errorf("scratch: read %s: %w", base, err)}
	}

	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(base, e.Name())); err != nil {
			errs = append(errs, fmt.Errorf("scratch: sweep %s: %w", e.Name(), err))
		}
	}
	return errs
}
