package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/scratch"
)

func TestExtractPassesThroughDirectory(t *testing.T) {
	dir := t.TempDir()
	reg := scratch.NewRegistry()

	res, err := Extract(archive.NewMemCodec(), reg, dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != dir || res.Scratch {
		t.Fatalf("Extract(dir) = %+v", res)
	}
}

func TestExtractUnpacksPackageFile(t *testing.T) {
	codec := archive.NewMemCodec()
	h, err := codec.Create()
	if err != nil {
		t.Fatal(err)
	}
	if err := codec.AddFile(h, "_package", "index.json", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := codec.AddFile(h, "textures", "foo.dds", []byte("data")); err != nil {
		t.Fatal(err)
	}

	// Extract stats the package path on disk before handing it to the
	// codec, so a file must exist there even though MemCodec keeps the
	// archive contents in memory.
	pkgPath := filepath.Join(t.TempDir(), "mod.mpi")
	if err := os.WriteFile(pkgPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := codec.Write(h, pkgPath, archive.VersionFO3); err != nil {
		t.Fatal(err)
	}

	reg := scratch.NewRegistry()
	res, err := Extract(codec, reg, pkgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Scratch {
		t.Fatal("expected a scratch extraction")
	}
	defer reg.CleanupAll()

	got, err := os.ReadFile(filepath.Join(res.Root, "textures", "foo.dds"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractRejectsUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-package.zip")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Extract(archive.NewMemCodec(), scratch.NewRegistry(), path); err == nil {
		t.Fatal("expected error for non-.mpi file")
	}
}
