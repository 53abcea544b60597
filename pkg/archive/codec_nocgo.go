//go:build !cgo

package archive

// NewNativeCodec reports ErrCodecUnavailable from every call: this build
// was compiled without cgo, so the linked archive library isn't present.
func NewNativeCodec() Codec { return unavailableCodec{} }

type unavailableCodec struct{}

func (unavailableCodec) Create() (Handle, error)                            { return 0, ErrCodecUnavailable }
func (unavailableCodec) Free(Handle)                                        {}
func (unavailableCodec) SetArchiveFlags(Handle, Flag) error                 { return ErrCodecUnavailable }
func (unavailableCodec) SetArchiveTypes(Handle, ContentType) error          { return ErrCodecUnavailable }
func (unavailableCodec) AddFile(Handle, string, string, []byte) error       { return ErrCodecUnavailable }
func (unavailableCodec) Write(Handle, string, Version) error                { return ErrCodecUnavailable }
func (unavailableCodec) OpenArchive(string) (Handle, error)                 { return 0, ErrCodecUnavailable }
func (unavailableCodec) CloseArchive(Handle)                                {}
func (unavailableCodec) ExtractFile(Handle, string) ([]byte, error)         { return nil, ErrCodecUnavailable }
func (unavailableCodec) FileExists(Handle, string) bool                     { return false }
func (unavailableCodec) FileCount(Handle) int                               { return 0 }
func (unavailableCodec) FileNameAt(Handle, int) (string, error)             { return "", ErrCodecUnavailable }
func (unavailableCodec) LastError(Handle) string                            { return ErrCodecUnavailable.Error() }
