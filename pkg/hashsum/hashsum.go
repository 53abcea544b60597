// Package hashsum computes content digests used to verify reference files
// against the checksums recorded in a manifest check.
package hashsum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
)

// Algorithm names used by manifest checksum lists. go-digest only ships
// registered support for the sha2 family, but NewDigestFromHex builds a
// well-formed "alg:hex" value for any algorithm name without requiring
// registration, which is all the report/log formatting needs.
const (
	MD5  digest.Algorithm = "md5"
	SHA1 digest.Algorithm = "sha1"
)

// ForExpected picks the algorithm implied by the length of an expected hex
// digest: 32 hex chars is MD5, 40 is SHA-1. Any other length is unsupported.
func ForExpected(expectedHex string) (digest.Algorithm, error) {
	switch len(expectedHex) {
	case 32:
		return MD5, nil
	case 40:
		return SHA1, nil
	default:
		return "", fmt.Errorf("hashsum: unsupported digest length %d", len(expectedHex))
	}
}

// File computes both the MD5 and SHA-1 digests of the file at path.
func File(path string) (md5Digest, sha1Digest digest.Digest, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("hashsum: open %s: %w", path, err)
	}
	defer f.Close()

	mh := md5.New()
	sh := sha1.New()
	if _, err := io.Copy(io.MultiWriter(mh, sh), f); err != nil {
		return "", "", fmt.Errorf("hashsum: read %s: %w", path, err)
	}

	return digest.NewDigestFromHex(string(MD5), hex.EncodeToString(mh.Sum(nil))),
		digest.NewDigestFromHex(string(SHA1), hex.EncodeToString(sh.Sum(nil))),
		nil
}

// Bytes computes both the MD5 and SHA-1 digests of an in-memory buffer.
func Bytes(b []byte) (md5Digest, sha1Digest digest.Digest) {
	mSum := md5.Sum(b)
	sSum := sha1.Sum(b)
	return digest.NewDigestFromHex(string(MD5), hex.EncodeToString(mSum[:])),
		digest.NewDigestFromHex(string(SHA1), hex.EncodeToString(sSum[:]))
}

// MatchesAny reports whether digest d's hex portion equals, case-insensitively,
// any of the hex digests in expectedHexList.
func MatchesAny(d digest.Digest, expectedHexList []string) bool {
	got := d.Encoded()
	for _, want := range expectedHexList {
		if len(want) == len(got) && equalFold(want, got) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
