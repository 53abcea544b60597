package process

import (
	"bytes"
	"compress/flate"
	"os"
	"path/filepath"
	"testing"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/bsaread"
	"github.com/ttw-community/mpi-installer/pkg/bsawrite"
	"github.com/ttw-community/mpi-installer/pkg/config"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
)

func newTestEnv(t *testing.T, dest string, locs []manifest.Location) *Env {
	t.Helper()
	r := resolver.New(&config.Config{Destination: dest}, nil)
	codec := archive.NewMemCodec()
	writer, err := bsawrite.New(r, dest, locs)
	if err != nil {
		t.Fatal(err)
	}
	return &Env{
		Resolver:   r,
		Locations:  locs,
		ReadCache:  bsaread.New(codec),
		Writer:     writer,
		ScratchDir: t.TempDir(),
	}
}

func TestProcessCopyFromDirectory(t *testing.T) {
	dest := t.TempDir()
	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "meshes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "meshes", "x.nif"), []byte("mesh-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	locs := []manifest.Location{
		{Type: manifest.LocationDirectory, Value: srcDir},
		{Type: manifest.LocationDirectory, Value: "%DESTINATION%"},
	}
	env := newTestEnv(t, dest, locs)

	asset := manifest.Asset{OpType: manifest.OpCopy, SourceLoc: 0, TargetLoc: 1, SourcePath: "meshes/x.nif", TargetPath: "meshes/x.nif"}
	if err := Process(env, asset); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "meshes", "x.nif"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "mesh-data" {
		t.Fatalf("got %q", got)
	}
}

func TestProcessCopyCaseInsensitiveFallback(t *testing.T) {
	dest := t.TempDir()
	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "Meshes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "Meshes", "X.NIF"), []byte("mesh-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	locs := []manifest.Location{
		{Type: manifest.LocationDirectory, Value: srcDir},
		{Type: manifest.LocationDirectory, Value: "%DESTINATION%"},
	}
	env := newTestEnv(t, dest, locs)

	asset := manifest.Asset{OpType: manifest.OpCopy, SourceLoc: 0, TargetLoc: 1, SourcePath: "meshes/x.nif", TargetPath: "meshes/x.nif"}
	if err := Process(env, asset); err != nil {
		t.Fatal(err)
	}
}

func TestProcessCopyMissingSourceFails(t *testing.T) {
	dest := t.TempDir()
	srcDir := t.TempDir()
	locs := []manifest.Location{
		{Type: manifest.LocationDirectory, Value: srcDir},
		{Type: manifest.LocationDirectory, Value: "%DESTINATION%"},
	}
	env := newTestEnv(t, dest, locs)

	asset := manifest.Asset{OpType: manifest.OpCopy, SourceLoc: 0, TargetLoc: 1, SourcePath: "meshes/missing.nif", TargetPath: "meshes/missing.nif"}
	err := Process(env, asset)
	if err == nil {
		t.Fatal("expected missing-source error")
	}
	if _, ok := err.(*MissingSourceError); !ok {
		t.Fatalf("expected *MissingSourceError, got %T: %v", err, err)
	}
}

func TestProcessCopyWritesIntoArchiveTarget(t *testing.T) {
	dest := t.TempDir()
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "x.dds"), []byte("texture"), 0o644); err != nil {
		t.Fatal(err)
	}

	locs := []manifest.Location{
		{Type: manifest.LocationDirectory, Value: srcDir},
		{Type: manifest.LocationWriteArchive, Value: "%DESTINATION%/Textures.bsa"},
	}
	env := newTestEnv(t, dest, locs)

	asset := manifest.Asset{OpType: manifest.OpCopy, SourceLoc: 0, TargetLoc: 1, SourcePath: "x.dds", TargetPath: "textures/x.dds"}
	if err := Process(env, asset); err != nil {
		t.Fatal(err)
	}

	if env.Writer.FileCount(1) != 1 {
		t.Fatalf("FileCount = %d, want 1", env.Writer.FileCount(1))
	}
}

func TestStripZlibInZlib(t *testing.T) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("raw deflate body")); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}

	wrapped := append([]byte{0x78, 0x9C}, buf.Bytes()...)
	got := stripZlibInZlib(wrapped)
	if string(got) != "raw deflate body" {
		t.Fatalf("stripZlibInZlib = %q", got)
	}
}

func TestStripZlibInZlibLeavesNonMatchingDataAlone(t *testing.T) {
	data := []byte("plain bytes")
	if got := stripZlibInZlib(data); string(got) != string(data) {
		t.Fatalf("stripZlibInZlib modified non-matching data: %q", got)
	}
}

func TestNormalizeEffectiveTargetPath(t *testing.T) {
	cases := map[string]string{
		`./meshes\x.nif`: "meshes/x.nif",
		`/meshes/x.nif`:  "meshes/x.nif",
		`meshes/x.nif`:   "meshes/x.nif",
	}
	for in, want := range cases {
		if got := normalizeEffectiveTargetPath(in); got != want {
			t.Fatalf("normalizeEffectiveTargetPath(%q) = %q, want %q", in, got, want)
		}
	}
}
