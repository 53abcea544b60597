package install

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ttw-community/mpi-installer/pkg/archive"
	"github.com/ttw-community/mpi-installer/pkg/config"
)

func writeManifest(t *testing.T, root string, doc map[string]interface{}) {
	t.Helper()
	dir := filepath.Join(root, "_package")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunCopiesAssetIntoDestination(t *testing.T) {
	packageRoot := t.TempDir()
	destination := t.TempDir()

	if err := os.MkdirAll(filepath.Join(packageRoot, "meshes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(packageRoot, "meshes", "x.nif"), []byte("mesh-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	writeManifest(t, packageRoot, map[string]interface{}{
		"Package":   map[string]string{"Title": "Test"},
		"Variables": [][]interface{}{{}, {}},
		"Locations": [][]interface{}{
			{},
			{
				map[string]interface{}{"Name": "pkg", "Type": 0, "Value": packageRoot},
				map[string]interface{}{"Name": "dst", "Type": 0, "Value": "%DESTINATION%"},
			},
		},
		"Assets": [][]interface{}{
			{"", 0, "", 0, 0, 1, "meshes/x.nif"},
		},
		"Checks":       []interface{}{},
		"FileAttrs":    []interface{}{},
		"PostCommands": []interface{}{},
	})

	cfg := &config.Config{Destination: destination, PackagePath: packageRoot}
	result, err := Run(context.Background(), Options{Config: cfg, Codec: archive.NewMemCodec()})
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalState != StateDone {
		t.Fatalf("FinalState = %v, want Done; entries: %+v", result.FinalState, result.Logger.Entries())
	}

	got, err := os.ReadFile(filepath.Join(destination, "meshes", "x.nif"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "mesh-data" {
		t.Fatalf("got %q", got)
	}
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	cfg := &config.Config{}
	_, err := Run(context.Background(), Options{Config: cfg, Codec: archive.NewMemCodec()})
	if err == nil {
		t.Fatal("expected configuration error")
	}
}
