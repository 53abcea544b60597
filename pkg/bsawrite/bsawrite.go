// Package bsawrite collects files destined for write-archive locations,
// staging them on disk until the run is ready to pack every BSA at once
// (C7, §4.7).
package bsawrite

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/pathrules"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
)

// DefaultArchiveFlags is the flag set used when a write-archive location
// doesn't declare its own (§4.7).
const DefaultArchiveFlags = archive.FlagDirectoryStrings | archive.FlagFileStrings |
	archive.FlagCompressed | archive.FlagRetainDirectoryNames |
	archive.FlagRetainFileNames | archive.FlagRetainFileNameOffsets

// Collision records two logical paths normalizing to the same staging
// path within one target; the later write wins.
type Collision struct {
	Previous    string
	Duplicate   string
	StagingPath string
}

// Target is one write-archive location's accumulated state.
type Target struct {
	LocationIndex int
	Name          string
	OutputPath    string
	Flags         archive.Flag
	Types         archive.ContentType
	StagingDir    string

	mu         sync.Mutex
	stagingMap map[string]string // normalized staging path -> original logical path
	collisions []Collision
	fileCount  int64
}

// Collector discovers write-archive targets from a profile's locations
// and stages files into per-target directories until WriteAllBsas is
// called.
type Collector struct {
	resolver *resolver.Resolver
	targets  map[int]*Target // keyed by location index
	order    []int
}

// contentTypeRule pairs a keyword-matching pattern with the content type
// it implies, tried in order against a BSA's declared name (§4.7).
type contentTypeRule struct {
	matcher *pathrules.Matcher
	content archive.ContentType
}

var contentTypeRules = mustContentTypeRules()

func mustContentTypeRules() []contentTypeRule {
	keywordSets := []struct {
		keywords []string
		content  archive.ContentType
	}{
		{[]string{"*mesh*"}, archive.ContentMeshes},
		{[]string{"*texture*"}, archive.ContentTextures},
		{[]string{"*voice*", "*menuvoice*"}, archive.ContentVoices},
		{[]string{"*sound*"}, archive.ContentSounds},
		{[]string{"*main*", "*misc*"}, archive.ContentMisc},
	}

	rules := make([]contentTypeRule, 0, len(keywordSets))
	for _, set := range keywordSets {
		patterns := make([]pathrules.Rule, 0, len(set.keywords))
		for _, kw := range set.keywords {
			patterns = append(patterns, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: kw})
		}
		m, err := pathrules.NewMatcher(patterns, pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		})
		if err != nil {
			panic(fmt.Sprintf("bsawrite: compile content-type rules: %v", err))
		}
		rules = append(rules, contentTypeRule{matcher: m, content: set.content})
	}
	return rules
}

// StagingDirName is the hidden subdirectory under the destination that
// holds every write target's staging directory (§6).
const StagingDirName = ".ttw_bsa_staging_temp"

// New scans stagingRoot/locs for write-archive locations and builds a
// Target for each, creating its staging directory under
// "<stagingRoot>/.ttw_bsa_staging_temp/bsa_<N>/" (§3).
func New(r *resolver.Resolver, stagingRoot string, locs []manifest.Location) (*Collector, error) {
	c := &Collector{resolver: r, targets: make(map[int]*Target)}

	n := 0
	for idx, loc := range locs {
		if !resolver.IsBsaCreationLocation(loc) {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(loc.Value), ".bsa") {
			continue
		}

		outputPath := r.ResolvePath(loc.Value)
		name := path.Base(filepath.ToSlash(outputPath))

		stagingDir := filepath.Join(stagingRoot, StagingDirName, fmt.Sprintf("bsa_%d", n))
		if err := os.MkdirAll(stagingDir, 0o755); err != nil {
			return nil, fmt.Errorf("bsawrite: create staging dir for %s: %w", name, err)
		}
		n++

		flags := archive.Flag(loc.ArchiveFlags)
		if flags == 0 {
			flags = DefaultArchiveFlags
		}
		types := archive.ContentType(loc.ArchiveType)
		if types == 0 {
			types = inferContentType(name)
		}

		t := &Target{
			LocationIndex: idx,
			Name:          name,
			OutputPath:    outputPath,
			Flags:         flags,
			Types:         types,
			StagingDir:    stagingDir,
			stagingMap:    make(map[string]string),
		}
		c.targets[idx] = t
		c.order = append(c.order, idx)
	}

	sort.Ints(c.order)
	return c, nil
}

func inferContentType(name string) archive.ContentType {
	for _, rule := range contentTypeRules {
		if rule.matcher.Included(name, false) {
			return rule.content
		}
	}
	return archive.ContentMisc
}

// IsBsaLocation reports whether a write target exists for the given
// location index (§4.7 naming: "isBsaLocation(loc)" in the collector
// answers whether a write target is registered for it).
func (c *Collector) IsBsaLocation(locIndex int) bool {
	_, ok := c.targets[locIndex]
	return ok
}

// normalizeLogicalPath strips a leading "./" or ".\", collapses
// separators to "/", and lowercases — the staging-path normalization
// from §4.7.
func normalizeLogicalPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	return strings.ToLower(p)
}

// AddFile writes logicalPath's bytes into locIndex's staging directory,
// recording a collision if the normalized staging path was already used.
func (c *Collector) AddFile(locIndex int, logicalPath string, data []byte) error {
	t, ok := c.targets[locIndex]
	if !ok {
		return fmt.Errorf("bsawrite: location %d has no write-archive target", locIndex)
	}

	normalized := normalizeLogicalPath(logicalPath)
	stagingPath := filepath.Join(t.StagingDir, filepath.FromSlash(normalized))

	t.mu.Lock()
	previous, exists := t.stagingMap[normalized]
	if exists {
		t.collisions = append(t.collisions, Collision{Previous: previous, Duplicate: logicalPath, StagingPath: stagingPath})
	} else {
		t.stagingMap[normalized] = logicalPath
	}
	t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(stagingPath), 0o755); err != nil {
		return fmt.Errorf("bsawrite: create staging parent for %s: %w", logicalPath, err)
	}
	if err := os.WriteFile(stagingPath, data, 0o644); err != nil {
		return fmt.Errorf("bsawrite: stage %s: %w", logicalPath, err)
	}
	if !exists {
		atomic.AddInt64(&t.fileCount, 1)
	}
	return nil
}

// WriteAllBsas packs every target's staged files into a BSA via codec, in
// ascending location-index order. It returns the number of targets that
// failed to pack; it does not abort early on a single target's failure.
func (c *Collector) WriteAllBsas(codec archive.Codec) (int, error) {
	failures := 0
	var collisionReport strings.Builder
	hasCollisions := false

	for _, idx := range c.order {
		t := c.targets[idx]
		if err := packTarget(codec, t); err != nil {
			failures++
			continue
		}
		if len(t.collisions) > 0 {
			hasCollisions = true
			writeCollisionSection(&collisionReport, t)
		}
	}

	if hasCollisions {
		reportPath := filepath.Join(filepath.Dir(c.targets[c.order[0]].StagingDir), "bsa_collisions_report.txt")
		_ = os.WriteFile(reportPath, []byte(collisionReport.String()), 0o644)
	}

	return failures, nil
}

func packTarget(codec archive.Codec, t *Target) error {
	h, err := codec.Create()
	if err != nil {
		return fmt.Errorf("bsawrite: create archive handle for %s: %w", t.Name, err)
	}
	defer codec.Free(h)

	if err := codec.SetArchiveFlags(h, t.Flags); err != nil {
		return fmt.Errorf("bsawrite: set flags for %s: %w", t.Name, err)
	}
	if err := codec.SetArchiveTypes(h, t.Types); err != nil {
		return fmt.Errorf("bsawrite: set types for %s: %w", t.Name, err)
	}

	err = filepath.Walk(t.StagingDir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(t.StagingDir, p)
		if err != nil {
			return err
		}
		rel = strings.ToLower(filepath.ToSlash(rel))
		dir, name := path.Split(rel)
		dir = strings.TrimSuffix(dir, "/")

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return codec.AddFile(h, dir, name, data)
	})
	if err != nil {
		return fmt.Errorf("bsawrite: stage %s into archive: %w", t.Name, err)
	}

	if err := codec.Write(h, t.OutputPath, archive.VersionFO3); err != nil {
		return fmt.Errorf("bsawrite: write %s: %w", t.OutputPath, err)
	}
	return nil
}

func writeCollisionSection(b *strings.Builder, t *Target) {
	fmt.Fprintf(b, "%s (%d collisions):\n", t.Name, len(t.collisions))
	for _, c := range t.collisions {
		fmt.Fprintf(b, "  %s overwritten by %s at %s\n", c.Previous, c.Duplicate, c.StagingPath)
	}
}

// FileCount returns the number of files staged for locIndex's target.
func (c *Collector) FileCount(locIndex int) int64 {
	t, ok := c.targets[locIndex]
	if !ok {
		return 0
	}
	return atomic.LoadInt64(&t.fileCount)
}

// Collisions returns locIndex's recorded collisions.
func (c *Collector) Collisions(locIndex int) []Collision {
	t, ok := c.targets[locIndex]
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Collision, len(t.collisions))
	copy(out, t.collisions)
	return out
}

// StagingDirs returns every target's staging directory, for disposal.
func (c *Collector) StagingDirs() []string {
	dirs := make([]string, 0, len(c.targets))
	for _, idx := range c.order {
		dirs = append(dirs, c.targets[idx].StagingDir)
	}
	return dirs
}

// Dispose deletes every staging directory, best-effort; errors are
// collected, not propagated (§4.7).
func (c *Collector) Dispose() []error {
	var errs []error
	for _, dir := range c.StagingDirs() {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("bsawrite: remove staging dir %s: %w", dir, err))
		}
	}
	return errs
}
