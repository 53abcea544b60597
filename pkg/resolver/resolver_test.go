package resolver

import (
	"testing"

	"github.com/ttw-community/mpi-installer/pkg/config"
	"github.com/ttw-community/mpi-installer/pkg/manifest"
)

func testConfig() *config.Config {
	return &config.Config{
		Roots:       map[config.Game]string{config.Fallout3: `C:\Games\Fallout3`},
		Destination: `C:\Games\Fallout3\Data`,
	}
}

func TestResolvePathExpandsBuiltins(t *testing.T) {
	r := New(testConfig(), nil)
	got := r.ResolvePath(`%FO3DATA%\textures\x.dds`)
	want := `C:/Games/Fallout3/Data/textures/x.dds`
	if got != want {
		t.Fatalf("ResolvePath = %q, want %q", got, want)
	}
}

func TestResolvePathLeavesUnknownVariableLiteral(t *testing.T) {
	r := New(testConfig(), nil)
	got := r.ResolvePath(`%UNKNOWN%/x`)
	if got != "%UNKNOWN%/x" {
		t.Fatalf("ResolvePath = %q", got)
	}
}

func TestResolvePathPrefersProfileVariableOverUnknown(t *testing.T) {
	r := New(testConfig(), []manifest.Variable{{Name: "MODNAME", Value: "Tale of Two Wastelands"}})
	got := r.ResolvePath(`%DESTINATION%/%MODNAME%`)
	want := `C:/Games/Fallout3/Data/Tale of Two Wastelands`
	if got != want {
		t.Fatalf("ResolvePath = %q, want %q", got, want)
	}
}

func TestResolvePathProfileVariableOverridesBuiltin(t *testing.T) {
	r := New(testConfig(), []manifest.Variable{{Name: "FO3DATA", Value: `C:\Override`}})
	got := r.ResolvePath(`%FO3DATA%\x.dds`)
	want := `C:/Override/x.dds`
	if got != want {
		t.Fatalf("ResolvePath = %q, want %q (profile variable should win over built-in)", got, want)
	}
}

func TestGetDirectoryPath(t *testing.T) {
	r := New(testConfig(), nil)

	dir := manifest.Location{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}
	got, err := r.GetDirectoryPath(dir)
	if err != nil || got != "C:/Games/Fallout3/Data" {
		t.Fatalf("GetDirectoryPath(dir) = %q, %v", got, err)
	}

	write := manifest.Location{Name: "out", Type: manifest.LocationWriteArchive, Value: `%DESTINATION%\Textures.bsa`}
	got, err = r.GetDirectoryPath(write)
	if err != nil || got != "C:/Games/Fallout3/Data" {
		t.Fatalf("GetDirectoryPath(write) = %q, %v", got, err)
	}

	read := manifest.Location{Name: "src", Type: manifest.LocationReadArchive, Value: `%FO3DATA%\Textures.bsa`}
	if _, err := r.GetDirectoryPath(read); err == nil {
		t.Fatal("expected read-archive location to fail GetDirectoryPath")
	}
}

func TestGetBsaPath(t *testing.T) {
	r := New(testConfig(), nil)

	read := manifest.Location{Name: "src", Type: manifest.LocationReadArchive, Value: `%FO3DATA%\Textures.bsa`}
	got, err := r.GetBsaPath(read)
	if err != nil || got != "C:/Games/Fallout3/Data/Textures.bsa" {
		t.Fatalf("GetBsaPath = %q, %v", got, err)
	}

	dir := manifest.Location{Type: manifest.LocationDirectory, Value: "%DESTINATION%"}
	if _, err := r.GetBsaPath(dir); err == nil {
		t.Fatal("expected directory location to fail GetBsaPath")
	}
}

func TestIsBsaLocationPredicates(t *testing.T) {
	read := manifest.Location{Type: manifest.LocationReadArchive}
	write := manifest.Location{Type: manifest.LocationWriteArchive}
	dir := manifest.Location{Type: manifest.LocationDirectory}

	if !IsBsaLocation(read) || IsBsaLocation(write) || IsBsaLocation(dir) {
		t.Fatal("IsBsaLocation mismatched expectations")
	}
	if !IsBsaCreationLocation(write) || IsBsaCreationLocation(read) || IsBsaCreationLocation(dir) {
		t.Fatal("IsBsaCreationLocation mismatched expectations")
	}
}
