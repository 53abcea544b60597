// Package archive adapts the game's binary archive format (BSA) to
// idiomatic Go. The codec itself — reading and writing the packed
// archives used by the reference games — is an external native library
// with a fixed C-style calling convention (create/free a context,
// open/close a handle, extract or add an entry, write the final file);
// this package only wraps that convention. See codec_cgo.go for the
// binding and codec_mem.go for the in-memory double used by tests.
package archive

import "fmt"

// Version identifies an archive's on-disk format revision, passed to Write.
type Version uint32

// Recognized version tags (§4.5).
const (
	VersionTES4 Version = 103
	VersionFO3  Version = 104 // shared tag: FO3, FalloutNV, TES5
	VersionFNV  Version = 104
	VersionTES5 Version = 104
	VersionSSE  Version = 105
)

// Flag is a bitmask of archive-level format flags.
type Flag uint32

// Closed enumeration of archive flags (§4.5).
const (
	FlagDirectoryStrings Flag = 1 << iota
	FlagFileStrings
	FlagCompressed
	FlagRetainDirectoryNames
	FlagRetainFileNames
	FlagRetainFileNameOffsets
	FlagXbox360Archive
	FlagRetainStringsDuringStartup
	FlagEmbedFileNames
	FlagXMemCodec
)

// DefaultFlags is the fallback flag set for a write-archive location that
// does not specify ArchiveFlags explicitly (§4.7).
const DefaultFlags = FlagDirectoryStrings | FlagFileStrings | FlagCompressed |
	FlagRetainDirectoryNames | FlagRetainFileNames | FlagRetainFileNameOffsets

// ContentType is a bitmask of the kinds of content an archive declares.
type ContentType uint32

// Closed enumeration of archive content types (§4.5).
const (
	ContentMeshes ContentType = 1 << iota
	ContentTextures
	ContentMenus
	ContentSounds
	ContentVoices
	ContentShaders
	ContentTrees
	ContentFonts
	ContentMisc
)

// Handle references a native archive context. It is owned by whichever
// package obtained it (Create or Open) and must be released with Free or
// Close exactly once, on every exit path — success, failure, or panic
// recovery further up the call stack.
type Handle uint64

// Codec is the fixed adapter surface over the native archive library
// (§4.5). All string paths are archive-internal (forward-slash, already
// normalized) unless otherwise noted.
type Codec interface {
	// Create allocates a new, empty archive-write context.
	Create() (Handle, error)
	// Free releases a context created by Create. Idempotent double-frees
	// are a caller bug, not a codec responsibility.
	Free(h Handle)

	SetArchiveFlags(h Handle, flags Flag) error
	SetArchiveTypes(h Handle, types ContentType) error
	// AddFile stages one entry's bytes under (dir, name) for the next Write.
	AddFile(h Handle, dir, name string, data []byte) error
	// Write serializes the staged entries to outputPath under the given
	// version tag.
	Write(h Handle, outputPath string, version Version) error

	// OpenArchive opens an existing archive file for reading.
	OpenArchive(path string) (Handle, error)
	// CloseArchive releases a context obtained from OpenArchive.
	CloseArchive(h Handle)
	// ExtractFile reads one entry's bytes out of an open archive. The
	// returned slice is a copy owned by the caller; codec-side buffers,
	// if any, are released before ExtractFile returns.
	ExtractFile(h Handle, entryPath string) ([]byte, error)
	FileExists(h Handle, entryPath string) bool
	FileCount(h Handle) int
	// FileNameAt returns the entry path at the given 0-based index into
	// an open archive's file table, letting a caller enumerate every
	// entry by looping index from 0 to FileCount(h)-1. Index order is
	// whatever the codec's own file table uses; it need not match
	// insertion order.
	FileNameAt(h Handle, index int) (string, error)

	// LastError returns the most recent error message recorded against h,
	// or "" if none. Consulted immediately after an operation reports
	// failure, mirroring a C library's thread-local error state.
	LastError(h Handle) string
}

// ErrCodecUnavailable is returned by the cgo-less build of the codec: the
// native archive library was not linked into this binary.
var ErrCodecUnavailable = fmt.Errorf("archive: native codec unavailable (built without cgo)")
