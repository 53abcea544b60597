package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ttw-community/mpi-installer/pkg/config"
	"github.com/ttw-community/mpi-installer/pkg/hashsum"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
)

func newResolver(t *testing.T, destination string) *resolver.Resolver {
	t.Helper()
	cfg := &config.Config{Destination: destination}
	return resolver.New(cfg, nil)
}

func TestFileExistsCheckPassesAndFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.esm"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newResolver(t, dir)
	locs := []manifest.Location{{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}}

	results, err := Run(r, locs, []manifest.Check{
		{Type: manifest.CheckFileExists, Loc: 0, File: "foo.esm"},
		{Type: manifest.CheckFileExists, Loc: 0, File: "missing.esm"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Pass {
		t.Fatalf("expected existing file to pass: %+v", results[0])
	}
	if results[1].Pass {
		t.Fatal("expected missing file to fail")
	}
	if Pass(results) {
		t.Fatal("expected overall Pass to be false")
	}
}

func TestFileExistsCheckInverted(t *testing.T) {
	dir := t.TempDir()
	r := newResolver(t, dir)
	locs := []manifest.Location{{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}}

	results, err := Run(r, locs, []manifest.Check{
		{Type: manifest.CheckFileExists, Loc: 0, File: "missing.esm", Inverted: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Pass {
		t.Fatal("expected inverted missing-file check to pass")
	}
}

func TestFileExistsCheckValidatesChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.esm")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	md5Digest, _ := hashsum.Bytes([]byte("hello"))

	r := newResolver(t, dir)
	locs := []manifest.Location{{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}}

	results, err := Run(r, locs, []manifest.Check{
		{Type: manifest.CheckFileExists, Loc: 0, File: "foo.esm", Checksums: md5Digest.Encoded()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Pass {
		t.Fatalf("expected checksum match to pass: %+v", results[0])
	}

	results, err = Run(r, locs, []manifest.Check{
		{Type: manifest.CheckFileExists, Loc: 0, File: "foo.esm", Checksums: "deadbeefdeadbeefdeadbeefdeadbeef"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Pass {
		t.Fatal("expected checksum mismatch to fail")
	}
}

func TestFreeSizeCheckAlwaysPasses(t *testing.T) {
	r := newResolver(t, t.TempDir())
	locs := []manifest.Location{{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}}

	results, err := Run(r, locs, []manifest.Check{{Type: manifest.CheckFreeSize, Loc: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Pass {
		t.Fatal("expected free-size check to always pass")
	}
}

func TestNoRestrictedPathCheck(t *testing.T) {
	r := newResolver(t, `C:\Program Files\Bethesda\Fallout3\Data`)
	locs := []manifest.Location{{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}}

	results, err := Run(r, locs, []manifest.Check{{Type: manifest.CheckNoRestrictedPath, Loc: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Pass {
		t.Fatal("expected Program Files path to fail the restricted-path check")
	}

	r2 := newResolver(t, `C:\Games\Fallout3\Data`)
	results, err = Run(r2, locs, []manifest.Check{{Type: manifest.CheckNoRestrictedPath, Loc: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Pass {
		t.Fatal("expected non-restricted path to pass")
	}
}

func TestReportConcatenatesFailures(t *testing.T) {
	results := []Result{
		{Pass: true, Message: "ignored"},
		{Pass: false, Message: "first failure"},
		{Pass: false, Message: "second failure"},
	}
	report := Report(results)
	if report != "first failure\nsecond failure\n" {
		t.Fatalf("Report = %q", report)
	}
}
