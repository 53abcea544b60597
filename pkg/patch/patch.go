// Package patch invokes the external binary-patch and lz4-decode helper
// tools to reconstruct a reference file from a patch blob (C10, §4.8, §6).
package patch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// lz4FrameMagic is the magic prefix of an LZ4 frame (§4.8).
var lz4FrameMagic = []byte{0x04, 0x22, 0x4D, 0x18}

// Tools names the external binaries the patch engine invokes (§6).
type Tools struct {
	BinaryPatch string
	Lz4Decode   string
}

// Apply reconstructs the patched file from reference and patchBlob,
// writing scratch files under scratchDir and returning the patched bytes.
// If patchBlob begins with the LZ4 frame magic, it is decompressed via
// the lz4-decode helper first.
func Apply(tools Tools, scratchDir string, reference, patchBlob []byte) ([]byte, error) {
	effectivePatch := patchBlob
	if len(patchBlob) >= 4 && bytes.Equal(patchBlob[:4], lz4FrameMagic) {
		decompressed, err := decompressLz4(tools.Lz4Decode, scratchDir, patchBlob)
		if err != nil {
			return nil, fmt.Errorf("patch: lz4-decode patch blob: %w", err)
		}
		effectivePatch = decompressed
	}

	refPath := filepath.Join(scratchDir, "reference.bin")
	patchPath := filepath.Join(scratchDir, "patch.xd3")
	outPath := filepath.Join(scratchDir, "output.bin")

	if err := os.WriteFile(refPath, reference, 0o644); err != nil {
		return nil, fmt.Errorf("patch: write reference scratch file: %w", err)
	}
	if err := os.WriteFile(patchPath, effectivePatch, 0o644); err != nil {
		return nil, fmt.Errorf("patch: write patch scratch file: %w", err)
	}

	if err := runBinaryPatch(tools.BinaryPatch, refPath, patchPath, outPath); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("patch: read patch output: %w", err)
	}
	return out, nil
}

// runBinaryPatch invokes the binary-patch helper. It has no timeout,
// unlike the media-transcode tools (§5).
func runBinaryPatch(bin, reference, patchBlob, output string) error {
	cmd := exec.Command(bin, "-d", "-f", "-s", reference, patchBlob, output)
	stdout, stderr, err := runCaptured(cmd)
	if err == nil {
		return nil
	}

	hint := classifyStderr(stderr)
	if hint != "" {
		return fmt.Errorf("patch: binary-patch failed: %w (stderr: %s) — %s", err, strings.TrimSpace(stderr), hint)
	}
	return fmt.Errorf("patch: binary-patch failed: %w (stdout: %s, stderr: %s)", err, strings.TrimSpace(stdout), strings.TrimSpace(stderr))
}

// classifyStderr looks for the two known binary-patch failure signatures
// that indicate the reference copy is the wrong version (§4.8).
func classifyStderr(stderr string) string {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "source file too short") || strings.Contains(lower, "checksum mismatch") {
		return "reference file is likely the wrong version"
	}
	return ""
}

func decompressLz4(bin, scratchDir string, data []byte) ([]byte, error) {
	inPath := filepath.Join(scratchDir, "lz4_in.bin")
	outPath := filepath.Join(scratchDir, "lz4_out.bin")

	if err := os.WriteFile(inPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write lz4 input: %w", err)
	}

	cmd := exec.Command(bin, "-d", "-f", inPath, outPath)
	if _, stderr, err := runCaptured(cmd); err != nil {
		return nil, fmt.Errorf("lz4-decode failed: %w (stderr: %s)", err, strings.TrimSpace(stderr))
	}

	return os.ReadFile(outPath)
}

// runCaptured runs cmd to completion, draining stdout and stderr
// concurrently with Wait to avoid pipe-buffer deadlock (§5).
func runCaptured(cmd *exec.Cmd) (stdout, stderr string, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("start: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, stdoutPipe, &outBuf)
	go drain(&wg, stderrPipe, &errBuf)
	wg.Wait()

	err = cmd.Wait()
	return outBuf.String(), errBuf.String(), err
}

func drain(wg *sync.WaitGroup, r io.Reader, buf *bytes.Buffer) {
	defer wg.Done()
	_, _ = io.Copy(buf, r)
}
