//go:build cgo

package archive

/*
#cgo LDFLAGS: -lbsarch

#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef uint64_t bsa_handle_t;

extern bsa_handle_t bsa_create(void);
extern void bsa_free(bsa_handle_t h);
extern int bsa_set_archive_flags(bsa_handle_t h, uint32_t flags);
extern int bsa_set_archive_types(bsa_handle_t h, uint32_t types);
extern int bsa_add_file(bsa_handle_t h, const char *dir, const char *name, const uint8_t *data, size_t len);
extern int bsa_write(bsa_handle_t h, const char *outputPath, uint32_t version);

extern bsa_handle_t bsa_open_archive(const char *path);
extern void bsa_close_archive(bsa_handle_t h);
extern int bsa_extract_file(bsa_handle_t h, const char *entryPath, uint8_t **outPtr, size_t *outLen);
extern void bsa_free_data(uint8_t *ptr);
extern int bsa_file_exists(bsa_handle_t h, const char *entryPath);
extern size_t bsa_file_count(bsa_handle_t h);
extern const char *bsa_file_name_at(bsa_handle_t h, size_t index);
extern const char *bsa_last_error(bsa_handle_t h);
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// nativeCodec binds Codec to the linked BSA library via cgo.
type nativeCodec struct{}

// NewNativeCodec returns the Codec implementation backed by the linked
// archive library. Building without cgo yields a stub that reports
// ErrCodecUnavailable from every method (see codec_nocgo.go).
func NewNativeCodec() Codec { return nativeCodec{} }

func (nativeCodec) Create() (Handle, error) {
	h := Handle(C.bsa_create())
	if h == 0 {
		return 0, fmt.Errorf("archive: bsa_create failed")
	}
	return h, nil
}

func (nativeCodec) Free(h Handle) {
	C.bsa_free(C.bsa_handle_t(h))
}

func (c nativeCodec) SetArchiveFlags(h Handle, flags Flag) error {
	if C.bsa_set_archive_flags(C.bsa_handle_t(h), C.uint32_t(flags)) == 0 {
		return fmt.Errorf("archive: set flags: %s", c.LastError(h))
	}
	return nil
}

func (c nativeCodec) SetArchiveTypes(h Handle, types ContentType) error {
	if C.bsa_set_archive_types(C.bsa_handle_t(h), C.uint32_t(types)) == 0 {
		return fmt.Errorf("archive: set types: %s", c.LastError(h))
	}
	return nil
}

func (c nativeCodec) AddFile(h Handle, dir, name string, data []byte) error {
	cDir := C.CString(dir)
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cDir))
	defer C.free(unsafe.Pointer(cName))

	var dataPtr *C.uint8_t
	if len(data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}

	if C.bsa_add_file(C.bsa_handle_t(h), cDir, cName, dataPtr, C.size_t(len(data))) == 0 {
		return fmt.Errorf("archive: add file %s/%s: %s", dir, name, c.LastError(h))
	}
	return nil
}

func (c nativeCodec) Write(h Handle, outputPath string, version Version) error {
	cPath := C.CString(outputPath)
	defer C.free(unsafe.Pointer(cPath))

	if C.bsa_write(C.bsa_handle_t(h), cPath, C.uint32_t(version)) == 0 {
		return fmt.Errorf("archive: write %s: %s", outputPath, c.LastError(h))
	}
	return nil
}

func (nativeCodec) OpenArchive(path string) (Handle, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	h := Handle(C.bsa_open_archive(cPath))
	if h == 0 {
		return 0, fmt.Errorf("archive: open %s failed", path)
	}
	return h, nil
}

func (nativeCodec) CloseArchive(h Handle) {
	C.bsa_close_archive(C.bsa_handle_t(h))
}

func (c nativeCodec) ExtractFile(h Handle, entryPath string) ([]byte, error) {
	cPath := C.CString(entryPath)
	defer C.free(unsafe.Pointer(cPath))

	var outPtr *C.uint8_t
	var outLen C.size_t

	if C.bsa_extract_file(C.bsa_handle_t(h), cPath, &outPtr, &outLen) == 0 {
		return nil, fmt.Errorf("archive: extract %s: %s", entryPath, c.LastError(h))
	}
	if outPtr == nil {
		return []byte{}, nil
	}

	// Copy into a Go-managed slice, then release the codec's buffer on
	// every path — success is the only path here, since a zero return
	// above already took the failure exit.
	defer C.bsa_free_data(outPtr)
	if outLen == 0 {
		return []byte{}, nil
	}
	out := C.GoBytes(unsafe.Pointer(outPtr), C.int(outLen))
	return out, nil
}

func (nativeCodec) FileExists(h Handle, entryPath string) bool {
	cPath := C.CString(entryPath)
	defer C.free(unsafe.Pointer(cPath))
	return C.bsa_file_exists(C.bsa_handle_t(h), cPath) != 0
}

func (nativeCodec) FileCount(h Handle) int {
	return int(C.bsa_file_count(C.bsa_handle_t(h)))
}

func (c nativeCodec) FileNameAt(h Handle, index int) (string, error) {
	cName := C.bsa_file_name_at(C.bsa_handle_t(h), C.size_t(index))
	if cName == nil {
		return "", fmt.Errorf("archive: file name at index %d: %s", index, c.LastError(h))
	}
	return C.GoString(cName), nil
}

func (nativeCodec) LastError(h Handle) string {
	msg := C.bsa_last_error(C.bsa_handle_t(h))
	if msg == nil {
		return ""
	}
	return C.GoString(msg)
}
