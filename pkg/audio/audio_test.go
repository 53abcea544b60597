package audio

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestParseParamsRecognizedKeys(t *testing.T) {
	p := ParseParams("-f:44100 -c:2 -b:128 -fmt:ogg -unknown:x")
	want := Params{"f": "44100", "c": "2", "b": "128", "fmt": "ogg", "unknown": "x"}
	for k, v := range want {
		if p[k] != v {
			t.Fatalf("ParseParams()[%q] = %q, want %q", k, p[k], v)
		}
	}
}

func TestFormatParamsRoundTrips(t *testing.T) {
	p := Params{"f": "44100", "c": "2", "b": "128", "fmt": "ogg"}
	formatted := FormatParams(p)
	got := ParseParams(formatted)
	for k, v := range p {
		if got[k] != v {
			t.Fatalf("round trip mismatch for %q: got %q, want %q", k, got[k], v)
		}
	}
}

// fakeTranscodeTool writes a script standing in for the media-transcode
// binary: it locates the path after "-i" and the final argument, copies
// the input bytes to the output path with a marker appended, and records
// its arguments in args.txt beside the output.
func fakeTranscodeTool(t *testing.T) Tool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool script is POSIX shell only")
	}
	path := filepath.Join(t.TempDir(), "media-transcode.sh")
	script := `#!/bin/sh
in=""
for i in $(seq 1 $#); do
  eval "arg=\${$i}"
  if [ "$prev" = "-i" ]; then
    in="$arg"
  fi
  prev="$arg"
  out="$arg"
done
cp "$in" "$out"
printf 'X' >> "$out"
echo "$@" > "$(dirname "$out")/args.txt"
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return Tool(path)
}

func TestResampleDefaultsSampleRate(t *testing.T) {
	tool := fakeTranscodeTool(t)
	scratch := t.TempDir()
	out, err := tool.Resample(scratch, []byte("pcm-data"), Params{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "pcm-dataX" {
		t.Fatalf("out = %q", out)
	}
	args, err := os.ReadFile(filepath.Join(scratch, "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "-ar "+DefaultResampleRate) {
		t.Fatalf("expected default sample rate %s in args: %q", DefaultResampleRate, args)
	}
}

func TestTranscodeDispatchesByExtension(t *testing.T) {
	tool := fakeTranscodeTool(t)

	for _, ext := range []string{"wav", "mp3", "ogg"} {
		out, err := tool.Transcode(t.TempDir(), ".flac", ext, []byte("src"), Params{"b": "192"})
		if err != nil {
			t.Fatalf("Transcode(%s): %v", ext, err)
		}
		if string(out) != "srcX" {
			t.Fatalf("Transcode(%s) out = %q", ext, out)
		}
	}
}

func TestTranscodeRejectsUnknownExtension(t *testing.T) {
	tool := fakeTranscodeTool(t)
	if _, err := tool.Transcode(t.TempDir(), ".wav", "flac", []byte("src"), Params{}); err == nil {
		t.Fatal("expected unrecognized extension to fail")
	}
}

func TestTranscodeUsesSourceExtensionForScratchInput(t *testing.T) {
	tool := fakeTranscodeTool(t)
	scratch := t.TempDir()
	if _, err := tool.Transcode(scratch, ".wav", "mp3", []byte("src"), Params{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(scratch, "audio_in.wav")); err != nil {
		t.Fatalf("expected scratch input named after source extension: %v", err)
	}
}
