package scratch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAndCleanupAll(t *testing.T) {
	base := t.TempDir()
	r := NewRegistry()

	dir, err := r.Create(base)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected dir to exist: %v", err)
	}

	if errs := r.CleanupAll(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected dir to be removed")
	}
}

func TestCleanupAllIgnoresNonPrefixedDirs(t *testing.T) {
	base := t.TempDir()
	foreign := filepath.Join(base, "not-ours")
	if err := os.Mkdir(foreign, 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	r.Register(foreign)
	r.CleanupAll()

	if _, err := os.Stat(foreign); err != nil {
		t.Fatal("expected foreign directory to survive cleanup")
	}
}

func TestSweepStale(t *testing.T) {
	base := t.TempDir()
	stale := filepath.Join(base, Prefix+"leftover")
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	kept := filepath.Join(base, "keep-me")
	if err := os.Mkdir(kept, 0o755); err != nil {
		t.Fatal(err)
	}

	if errs := SweepStale(base); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale dir removed")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatal("expected unrelated dir to survive")
	}
}
