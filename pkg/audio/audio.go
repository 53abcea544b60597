// Package audio parses asset audio parameters and invokes the external
// media-transcode helper for audio-resample and audio-transcode
// operations (C11, §4.8, §4.11).
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Timeout is the uniform wall-clock deadline on every media-transcode
// invocation (§5).
const Timeout = 30 * time.Second

// DefaultResampleRate is used for op-type 4 when params carries no "f"
// key (§4.8, §4.11).
const DefaultResampleRate = "24000"

// Params is an audio asset's parsed parameter map (§4.11).
type Params map[string]string

// ParseParams splits a space-delimited "-key:value" string into a map.
// Unknown keys are kept but ignored by callers that don't recognize
// them; only f (sample rate), c (channels), b (bitrate), fmt (advisory)
// are consumed here.
func ParseParams(raw string) Params {
	p := make(Params)
	for _, token := range strings.Fields(raw) {
		token = strings.TrimPrefix(token, "-")
		key, value, ok := strings.Cut(token, ":")
		if !ok {
			continue
		}
		p[key] = value
	}
	return p
}

// FormatParams is ParseParams's inverse, used by tests that check
// round-tripping for the recognized key set (§8).
func FormatParams(p Params) string {
	keys := []string{"f", "c", "b", "fmt"}
	var tokens []string
	for _, k := range keys {
		if v, ok := p[k]; ok {
			tokens = append(tokens, fmt.Sprintf("-%s:%s", k, v))
		}
	}
	return strings.Join(tokens, " ")
}

// Tool is the media-transcode helper's path (§6).
type Tool string

// Resample runs op-type 4: decode the source audio and re-encode as
// Vorbis at the requested (or default) sample rate.
func (t Tool) Resample(scratchDir string, source []byte, params Params) ([]byte, error) {
	rate := params["f"]
	if rate == "" {
		rate = DefaultResampleRate
	}

	args := []string{"-i", "{in}", "-ar", rate, "-c:a", "libvorbis", "-y", "{out}"}
	return t.run(scratchDir, "ogg", "ogg", source, args)
}

// Transcode runs op-type 5: dispatch codec flags by the target
// extension, honoring optional sample-rate/channel overrides. sourceExt
// names the asset's real source extension (e.g. ".wav"), used for the
// scratch input file so the media-transcode helper can sniff the
// container by suffix (§4.8).
func (t Tool) Transcode(scratchDir, sourceExt, targetExt string, source []byte, params Params) ([]byte, error) {
	ext := strings.ToLower(strings.TrimPrefix(targetExt, "."))

	var codecArgs []string
	switch ext {
	case "wav":
		codecArgs = []string{"-c:a", "pcm_s16le"}
	case "mp3":
		codecArgs = []string{"-c:a", "libmp3lame"}
		if b := params["b"]; b != "" {
			codecArgs = append(codecArgs, "-b:a", b+"k")
		}
	case "ogg":
		codecArgs = []string{"-c:a", "libvorbis"}
	default:
		return nil, fmt.Errorf("audio: unrecognized transcode target extension %q", targetExt)
	}

	args := append([]string{"-i", "{in}"}, codecArgs...)
	if f := params["f"]; f != "" {
		args = append(args, "-ar", f)
	}
	if c := params["c"]; c != "" {
		args = append(args, "-ac", c)
	}
	args = append(args, "-y", "{out}")

	inExt := strings.ToLower(strings.TrimPrefix(sourceExt, "."))
	if inExt == "" {
		inExt = "in"
	}
	return t.run(scratchDir, inExt, ext, source, args)
}

// run materializes source to a scratch input file, invokes the
// media-transcode tool with a 30-second timeout, and returns the scratch
// output bytes. {in} and {out} in args are replaced with the scratch
// paths.
func (t Tool) run(scratchDir, inExt, outExt string, source []byte, args []string) ([]byte, error) {
	inPath := filepath.Join(scratchDir, "audio_in."+inExt)
	outPath := filepath.Join(scratchDir, "audio_out."+outExt)

	if err := os.WriteFile(inPath, source, 0o644); err != nil {
		return nil, fmt.Errorf("audio: write scratch input: %w", err)
	}

	resolved := make([]string, 0, len(args)+3)
	resolved = append(resolved, "-nostdin", "-hide_banner", "-loglevel", "error")
	for _, a := range args {
		a = strings.ReplaceAll(a, "{in}", inPath)
		a = strings.ReplaceAll(a, "{out}", outPath)
		resolved = append(resolved, a)
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	if err := runWithTimeout(ctx, string(t), resolved); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("audio: read scratch output: %w", err)
	}
	return out, nil
}

func runWithTimeout(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("audio: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start media-transcode: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, stdoutPipe, &outBuf)
	go drain(&wg, stderrPipe, &errBuf)
	wg.Wait()

	err = cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("audio: media-transcode timed out after %s", Timeout)
	}
	if err != nil {
		return fmt.Errorf("audio: media-transcode failed: %w (stderr: %s)", err, strings.TrimSpace(errBuf.String()))
	}
	return nil
}

func drain(wg *sync.WaitGroup, r io.Reader, buf *bytes.Buffer) {
	defer wg.Done()
	_, _ = io.Copy(buf, r)
}
