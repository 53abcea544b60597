// Package config describes the installation configuration: the reference
// game roots, the output destination, and the package to install (§3).
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Game identifies one of the three supported reference titles.
type Game int

const (
	Fallout3 Game = iota
	FalloutNV
	Oblivion
)

// signatureExecutable is the well-known launcher binary used to sanity
// check that a configured root really points at that game's install.
// spec.md leaves the exact file unspecified (§3 invariant); these are the
// titles' actual executables.
var signatureExecutable = map[Game]string{
	Fallout3:  "Fallout3.exe",
	FalloutNV: "FalloutNV.exe",
	Oblivion:  "Oblivion.exe",
}

func (g Game) String() string {
	switch g {
	case Fallout3:
		return "Fallout3"
	case FalloutNV:
		return "FalloutNV"
	case Oblivion:
		return "Oblivion"
	default:
		return "unknown"
	}
}

// Config is the fully-resolved installation configuration. Any game root
// may be empty; Destination and PackagePath are always required.
type Config struct {
	// Roots maps each configured game to its install directory. A game
	// absent from the map (or mapped to "") was not configured.
	Roots map[Game]string

	// Destination is the output directory the install writes into.
	Destination string

	// PackagePath is either a packaged archive file (.mpi) or an
	// already-extracted directory (§4.4).
	PackagePath string

	// DataDirOverride overrides the derived "<root>/Data" data directory
	// per game, used when a package's post-commands must operate on an
	// arbitrary output folder rather than the source game (§3).
	DataDirOverride map[Game]string
}

// DataDir returns the effective data directory for a configured game:
// the override if set, else "<root>/Data".
func (c *Config) DataDir(g Game) (string, bool) {
	if c.DataDirOverride != nil {
		if dir, ok := c.DataDirOverride[g]; ok && dir != "" {
			return dir, true
		}
	}
	root, ok := c.Roots[g]
	if !ok || root == "" {
		return "", false
	}
	return filepath.Join(root, "Data"), true
}

// Root returns a configured game's root directory, if any.
func (c *Config) Root(g Game) (string, bool) {
	root, ok := c.Roots[g]
	return root, ok && root != ""
}

// AllowedRoots returns every directory a post-install command is allowed
// to operate under besides Destination: each configured game's root and
// its effective data directory. Post-commands normally target a game's
// Data directory rather than Destination — DataDirOverride exists
// precisely for the case where they should target Destination instead
// (§3) — so both must be considered safe operands.
func (c *Config) AllowedRoots() []string {
	var roots []string
	for g, root := range c.Roots {
		if root != "" {
			roots = append(roots, root)
		}
		if dir, ok := c.DataDir(g); ok {
			roots = append(roots, dir)
		}
	}
	return roots
}

// Validate checks the configuration invariants from §3: every configured
// root must contain its game's signature executable, and Destination and
// PackagePath must both be set.
func (c *Config) Validate() error {
	if c.Destination == "" {
		return fmt.Errorf("config: destination directory is required")
	}
	if c.PackagePath == "" {
		return fmt.Errorf("config: package path is required")
	}

	for g, root := range c.Roots {
		if root == "" {
			continue
		}
		exe, ok := signatureExecutable[g]
		if !ok {
			return fmt.Errorf("config: unknown game %v", g)
		}
		sigPath := filepath.Join(root, exe)
		if _, err := os.Stat(sigPath); err != nil {
			return fmt.Errorf("config: %s root %q missing signature executable %s: %w", g, root, exe, err)
		}
	}

	return nil
}
