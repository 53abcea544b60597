package hashsum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestForExpected(t *testing.T) {
	cases := []struct {
		hex     string
		want    string
		wantErr bool
	}{
		{hex: "d41d8cd98f00b204e9800998ecf8427e", want: "md5"},
		{hex: "da39a3ee5e6b4b0d3255bfef95601890afd80709", want: "sha1"},
		{hex: "tooshort", wantErr: true},
	}

	for _, c := range cases {
		alg, err := ForExpected(c.hex)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ForExpected(%q): expected error", c.hex)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ForExpected(%q): %v", c.hex, err)
		}
		if string(alg) != c.want {
			t.Fatalf("ForExpected(%q) = %q, want %q", c.hex, alg, c.want)
		}
	}
}

func TestFileAndBytesAgree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	fileMD5, fileSHA1, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	byteMD5, byteSHA1 := Bytes([]byte("hello"))

	if fileMD5 != byteMD5 {
		t.Fatalf("md5 mismatch: %s != %s", fileMD5, byteMD5)
	}
	if fileSHA1 != byteSHA1 {
		t.Fatalf("sha1 mismatch: %s != %s", fileSHA1, byteSHA1)
	}
}

func TestMatchesAny(t *testing.T) {
	_, sha1Digest := Bytes([]byte("hello"))
	if !MatchesAny(sha1Digest, []string{"AAAA", sha1Digest.Encoded()}) {
		t.Fatal("expected match")
	}
	if MatchesAny(sha1Digest, []string{"deadbeef"}) {
		t.Fatal("expected no match")
	}
}
