// Package validate runs a manifest's pre-install checks against the
// resolved installation configuration (C6, §4.3).
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttw-community/mpi-installer/pkg/hashsum"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
)

// Result is the outcome of one Check.
type Result struct {
	Check   manifest.Check
	Pass    bool
	Message string
}

// Run evaluates every check against the resolver and profile locations,
// returning one Result per check in order.
func Run(r *resolver.Resolver, locs []manifest.Location, checks []manifest.Check) ([]Result, error) {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		loc, err := manifest.LocationAt(locs, c.Loc)
		if err != nil {
			return nil, fmt.Errorf("validate: check references invalid location: %w", err)
		}

		res, err := runCheck(r, loc, c)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Pass reports whether every result passed.
func Pass(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

// Report concatenates every failing result's message, per §4.3.
func Report(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		if r.Pass {
			continue
		}
		b.WriteString(r.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

func runCheck(r *resolver.Resolver, loc manifest.Location, c manifest.Check) (Result, error) {
	switch c.Type {
	case manifest.CheckFileExists:
		return checkFileExists(r, loc, c)
	case manifest.CheckFreeSize:
		return Result{Check: c, Pass: true}, nil
	case manifest.CheckNoRestrictedPath:
		return checkNoRestrictedPath(r, loc, c)
	default:
		return Result{}, fmt.Errorf("validate: unknown check type %d", c.Type)
	}
}

func checkFileExists(r *resolver.Resolver, loc manifest.Location, c manifest.Check) (Result, error) {
	dir, err := r.GetDirectoryPath(loc)
	if err != nil {
		return Result{}, fmt.Errorf("validate: file-exists check: %w", err)
	}
	path := filepath.Join(dir, c.File)

	_, statErr := os.Stat(path)
	exists := statErr == nil

	predicate := exists
	if c.Inverted {
		predicate = !exists
	}

	if !predicate {
		return Result{Check: c, Pass: false, Message: failureMessage(c, fmt.Sprintf("file-exists check failed for %s", path))}, nil
	}

	if exists && c.Checksums != "" {
		ok, actual, err := checksumsMatch(path, c.Checksums)
		if err != nil {
			return Result{}, fmt.Errorf("validate: checksum check: %w", err)
		}
		if !ok {
			expected := strings.Join(strings.Fields(c.Checksums), " ")
			return Result{Check: c, Pass: false, Message: failureMessage(c, fmt.Sprintf("checksum mismatch for %s: expected one of [%s], got %s", path, expected, actual))}, nil
		}
	}

	return Result{Check: c, Pass: true}, nil
}

// checksumsMatch reports whether the file's MD5 or SHA-1 digest is in the
// newline-separated checksums list, along with both actual digests in
// "alg:hex" form for the failure message.
func checksumsMatch(path, checksums string) (bool, string, error) {
	md5Digest, sha1Digest, err := hashsum.File(path)
	if err != nil {
		return false, "", err
	}
	actual := fmt.Sprintf("%s %s", md5Digest, sha1Digest)

	var expected []string
	for _, line := range strings.Split(checksums, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			expected = append(expected, line)
		}
	}

	return hashsum.MatchesAny(md5Digest, expected) || hashsum.MatchesAny(sha1Digest, expected), actual, nil
}

func checkNoRestrictedPath(r *resolver.Resolver, loc manifest.Location, c manifest.Check) (Result, error) {
	dir, err := r.GetDirectoryPath(loc)
	if err != nil {
		return Result{}, fmt.Errorf("validate: no-restricted-path check: %w", err)
	}
	path := dir
	if c.File != "" {
		path = filepath.Join(dir, c.File)
	}

	restricted := strings.Contains(strings.ToLower(path), "program files")
	predicate := !restricted
	if c.Inverted {
		predicate = restricted
	}

	if !predicate {
		return Result{Check: c, Pass: false, Message: failureMessage(c, fmt.Sprintf("restricted-path check failed for %s", path))}, nil
	}
	return Result{Check: c, Pass: true}, nil
}

func failureMessage(c manifest.Check, base string) string {
	if c.CustomMessage != "" {
		return fmt.Sprintf("%s: %s", base, c.CustomMessage)
	}
	return base
}
