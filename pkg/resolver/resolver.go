// Package resolver expands a location's variable-bearing value against
// the installation configuration and game roots (C5, §4.2).
package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ttw-community/mpi-installer/pkg/config"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
)

// Resolver expands `%NAME%` markers in location values using a fixed set
// of well-known variables plus any manifest-declared ones for the active
// profile.
type Resolver struct {
	builtins map[string]string
	vars     map[string]string
}

// New builds a Resolver from the installation configuration and a
// profile's declared variables. Manifest-declared variables take
// precedence over same-named built-ins, letting a profile override a
// fixed installer default when it names one explicitly (§4.2).
func New(cfg *config.Config, profileVars []manifest.Variable) *Resolver {
	r := &Resolver{
		builtins: builtinVariables(cfg),
		vars:     make(map[string]string, len(profileVars)),
	}
	for _, v := range profileVars {
		r.vars[v.Name] = v.Value
	}
	return r
}

func builtinVariables(cfg *config.Config) map[string]string {
	out := make(map[string]string)
	if root, ok := cfg.Root(config.Fallout3); ok {
		out["FO3ROOT"] = root
	}
	if dir, ok := cfg.DataDir(config.Fallout3); ok {
		out["FO3DATA"] = dir
	}
	if root, ok := cfg.Root(config.FalloutNV); ok {
		out["FNVROOT"] = root
	}
	if dir, ok := cfg.DataDir(config.FalloutNV); ok {
		out["FNVDATA"] = dir
	}
	if root, ok := cfg.Root(config.Oblivion); ok {
		out["TES4ROOT"] = root
	}
	if dir, ok := cfg.DataDir(config.Oblivion); ok {
		out["TES4DATA"] = dir
	}
	out["DESTINATION"] = cfg.Destination
	return out
}

// ResolvePath expands every `%NAME%` marker in value and normalizes the
// path separator to `/`. Unknown variables are left literal (§4.2).
func (r *Resolver) ResolvePath(value string) string {
	expanded := expandVariables(value, r.vars, r.builtins)
	return filepath.ToSlash(strings.ReplaceAll(expanded, `\`, `/`))
}

func expandVariables(value string, tables ...map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(value) {
		if value[i] != '%' {
			b.WriteByte(value[i])
			i++
			continue
		}
		end := strings.IndexByte(value[i+1:], '%')
		if end < 0 {
			b.WriteString(value[i:])
			break
		}
		name := value[i+1 : i+1+end]
		if resolved, ok := lookup(name, tables); ok {
			b.WriteString(resolved)
		} else {
			b.WriteString(value[i : i+2+end])
		}
		i += 2 + end
	}
	return b.String()
}

func lookup(name string, tables []map[string]string) (string, bool) {
	for _, t := range tables {
		if v, ok := t[name]; ok {
			return v, true
		}
	}
	return "", false
}

// GetDirectoryPath resolves loc as a directory. Type-0 locations resolve
// directly; type-2 (write-archive) locations resolve to the parent
// directory of the expanded archive path; type-1 (read-archive) locations
// have no directory meaning and this fails (§4.2).
func (r *Resolver) GetDirectoryPath(loc manifest.Location) (string, error) {
	switch loc.Type {
	case manifest.LocationDirectory:
		return r.ResolvePath(loc.Value), nil
	case manifest.LocationWriteArchive:
		return filepath.ToSlash(filepath.Dir(r.ResolvePath(loc.Value))), nil
	default:
		return "", fmt.Errorf("resolver: location %q has no directory path (type %d)", loc.Name, loc.Type)
	}
}

// GetBsaPath resolves a type-1 (read-archive) location to its archive
// file path. Any other location type fails.
func (r *Resolver) GetBsaPath(loc manifest.Location) (string, error) {
	if !IsBsaLocation(loc) {
		return "", fmt.Errorf("resolver: location %q is not a read-archive location (type %d)", loc.Name, loc.Type)
	}
	return r.ResolvePath(loc.Value), nil
}

// IsBsaLocation reports whether loc is a read-archive location.
func IsBsaLocation(loc manifest.Location) bool {
	return loc.Type == manifest.LocationReadArchive
}

// IsBsaCreationLocation reports whether loc is a write-archive location.
func IsBsaCreationLocation(loc manifest.Location) bool {
	return loc.Type == manifest.LocationWriteArchive
}
