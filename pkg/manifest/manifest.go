// Package manifest parses a package's _package/index.json document into
// the typed entities the rest of the installer operates on (C4, §3, §4.1).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LocationType is the type tag of a Location (§3).
type LocationType int

const (
	LocationDirectory    LocationType = 0
	LocationReadArchive  LocationType = 1
	LocationWriteArchive LocationType = 2
)

// OpType is an Asset's operation type (§3).
type OpType int

const (
	OpCopy           OpType = 0
	OpNew            OpType = 1
	OpPatch          OpType = 2
	OpReserved       OpType = 3
	OpAudioResample  OpType = 4
	OpAudioTranscode OpType = 5
)

// CheckType is a Check's type tag (§3, §4.3).
type CheckType int

const (
	CheckFileExists       CheckType = 0
	CheckFreeSize         CheckType = 1
	CheckNoRestrictedPath CheckType = 2
)

// Package holds the manifest's advisory package metadata.
type Package struct {
	Title       string `json:"Title"`
	Version     string `json:"Version"`
	Author      string `json:"Author"`
	Description string `json:"Description"`
}

// Variable is a named, typed, textual value substituted by the resolver
// (C5) against `%NAME%` markers. It is never expanded eagerly.
type Variable struct {
	Name  string `json:"Name"`
	Type  int    `json:"Type"`
	Value string `json:"Value"`
}

// Location is a named addressable place (§3).
type Location struct {
	Name              string       `json:"Name"`
	Type              LocationType `json:"Type"`
	Value             string       `json:"Value"`
	ArchiveType       uint32       `json:"ArchiveType"`
	ArchiveFlags      uint32       `json:"ArchiveFlags"`
	FilesFlags        uint32       `json:"FilesFlags"`
	ArchiveCompressed bool         `json:"ArchiveCompressed"`
}

// Asset is one unit of work: read from a source location, transform per
// OpType, write to a target location (§3).
type Asset struct {
	Tags       string
	OpType     OpType
	Params     string
	Status     int
	SourceLoc  int
	TargetLoc  int
	SourcePath string
	TargetPath string
}

// Check is a pre-install validation rule (§3, §4.3).
type Check struct {
	Type          CheckType `json:"Type"`
	Inverted      bool      `json:"Inverted"`
	Loc           int       `json:"Loc"`
	File          string    `json:"File"`
	Checksums     string    `json:"Checksums"`
	CustomMessage string    `json:"CustomMessage"`
}

// PostCommand is a post-install shell-like command (§3, C13).
type PostCommand struct {
	Command string `json:"Command"`
	Wait    bool   `json:"Wait"`
	Hidden  bool   `json:"Hidden"`
}

// Profile is one parallel variable/location table. Profiles are addressed
// by index; the installation profile is index 1 (§3).
type Profile struct {
	Variables []Variable
	Locations []Location
}

// Manifest is the fully parsed _package/index.json document.
type Manifest struct {
	Package      Package
	Profiles     []Profile
	Tags         []string
	Assets       []Asset
	Checks       []Check
	FileAttrs    []string
	PostCommands []PostCommand

	// SkippedAssets counts every asset tuple that failed to parse; only
	// the first maxAssetWarnings of them are logged individually (§4.1).
	SkippedAssets int
}

// maxAssetWarnings bounds the verbose per-asset warning log; beyond this
// count, failures are still counted but no longer logged individually.
const maxAssetWarnings = 3

// rawDocument mirrors the on-disk JSON shape (§9): Variables and Locations
// are arrays of arrays, one inner array per profile.
type rawDocument struct {
	Package      Package         `json:"Package"`
	Variables    [][]Variable    `json:"Variables"`
	Locations    [][]Location    `json:"Locations"`
	Tags         []string        `json:"Tags"`
	Assets       [][]interface{} `json:"Assets"`
	Checks       []Check         `json:"Checks"`
	FileAttrs    []string        `json:"FileAttrs"`
	PostCommands []PostCommand   `json:"PostCommands"`
}

// Load reads and parses the manifest document at path. It tolerates
// trailing commas and `//` line comments, neither of which are valid JSON
// but both of which appear in the wild (§4.1).
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes manifest document bytes already read into memory.
func Parse(data []byte) (*Manifest, error) {
	cleaned := stripCommentsAndTrailingCommas(data)

	var doc rawDocument
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		return nil, fmt.Errorf("manifest: parse document: %w", err)
	}

	m := &Manifest{
		Package:      doc.Package,
		Tags:         doc.Tags,
		Checks:       doc.Checks,
		FileAttrs:    doc.FileAttrs,
		PostCommands: doc.PostCommands,
	}

	profileCount := len(doc.Variables)
	if len(doc.Locations) > profileCount {
		profileCount = len(doc.Locations)
	}
	m.Profiles = make([]Profile, profileCount)
	for i := range m.Profiles {
		if i < len(doc.Variables) {
			m.Profiles[i].Variables = doc.Variables[i]
		}
		if i < len(doc.Locations) {
			m.Profiles[i].Locations = doc.Locations[i]
		}
	}

	warned := 0
	for _, tuple := range doc.Assets {
		asset, err := parseAssetTuple(tuple)
		if err != nil {
			m.SkippedAssets++
			if warned < maxAssetWarnings {
				warned++
				fmt.Fprintf(os.Stderr, "manifest: skipping asset: %v\n", err)
			}
			continue
		}
		m.Assets = append(m.Assets, asset)
	}

	return m, nil
}

// parseAssetTuple coerces a heterogeneous JSON array into an Asset. The
// tuple must have at least 7 elements; the 8th, if present, is TargetPath,
// and elements past the 8th are ignored. A length-7 tuple's TargetPath
// defaults to SourcePath (§3, §4.1).
func parseAssetTuple(tuple []interface{}) (Asset, error) {
	if len(tuple) < 7 {
		return Asset{}, fmt.Errorf("asset tuple has length %d, want at least 7", len(tuple))
	}

	tags, err := coerceString(tuple[0])
	if err != nil {
		return Asset{}, fmt.Errorf("tags: %w", err)
	}
	opType, err := coerceInt(tuple[1])
	if err != nil {
		return Asset{}, fmt.Errorf("opType: %w", err)
	}
	params, err := coerceString(tuple[2])
	if err != nil {
		return Asset{}, fmt.Errorf("params: %w", err)
	}
	status, err := coerceInt(tuple[3])
	if err != nil {
		return Asset{}, fmt.Errorf("status: %w", err)
	}
	sourceLoc, err := coerceInt(tuple[4])
	if err != nil {
		return Asset{}, fmt.Errorf("sourceLoc: %w", err)
	}
	targetLoc, err := coerceInt(tuple[5])
	if err != nil {
		return Asset{}, fmt.Errorf("targetLoc: %w", err)
	}
	sourcePath, err := coerceString(tuple[6])
	if err != nil {
		return Asset{}, fmt.Errorf("sourcePath: %w", err)
	}

	targetPath := sourcePath
	if len(tuple) >= 8 {
		targetPath, err = coerceString(tuple[7])
		if err != nil {
			return Asset{}, fmt.Errorf("targetPath: %w", err)
		}
	}

	return Asset{
		Tags:       tags,
		OpType:     OpType(opType),
		Params:     params,
		Status:     status,
		SourceLoc:  sourceLoc,
		TargetLoc:  targetLoc,
		SourcePath: sourcePath,
		TargetPath: targetPath,
	}, nil
}

func coerceString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("cannot coerce %T to string", v)
	}
}

func coerceInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to int: %w", t, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", v)
	}
}

// GetLocations returns profileIndex's locations. Profile indices address
// the document's per-profile arrays directly (index 0 is the first array);
// index 1 is the installation profile.
func (m *Manifest) GetLocations(profileIndex int) ([]Location, error) {
	p, err := m.profile(profileIndex)
	if err != nil {
		return nil, err
	}
	return p.Locations, nil
}

// GetVariables returns profileIndex's variables.
func (m *Manifest) GetVariables(profileIndex int) ([]Variable, error) {
	p, err := m.profile(profileIndex)
	if err != nil {
		return nil, err
	}
	return p.Variables, nil
}

func (m *Manifest) profile(profileIndex int) (*Profile, error) {
	if profileIndex < 0 || profileIndex >= len(m.Profiles) {
		return nil, fmt.Errorf("manifest: profile index %d out of range (have %d profiles)", profileIndex, len(m.Profiles))
	}
	return &m.Profiles[profileIndex], nil
}

// LocationAt returns the location at idx within a profile's location
// list, used by resolvers and processors that index sourceLoc/targetLoc
// against an already-fetched slice.
func LocationAt(locs []Location, idx int) (Location, error) {
	if idx < 0 || idx >= len(locs) {
		return Location{}, fmt.Errorf("manifest: location index %d out of range (have %d)", idx, len(locs))
	}
	return locs[idx], nil
}
