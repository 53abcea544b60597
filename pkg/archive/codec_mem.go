package archive

import (
	"fmt"
	"path"
	"sort"
	"sync"
)

// MemCodec is an in-memory double for Codec, used by tests throughout this
// module so they can exercise archive-write/read behavior without the
// linked native library. Handles it does not know (never allocated, or
// already freed or closed) make its error-returning methods fail; Free
// and CloseArchive of such a handle are silent no-ops, so a double free
// or close is not detected.
type MemCodec struct {
	mu      sync.Mutex
	next    Handle
	writers map[Handle]*memWriteCtx
	readers map[Handle]*memArchive
	lastErr map[Handle]string
	written map[string]map[string][]byte
}

type memWriteCtx struct {
	flags   Flag
	types   ContentType
	entries map[string][]byte // "dir/name" -> data, insertion order not preserved
	order   []string
}

type memArchive struct {
	entries map[string][]byte
	order   []string // stable index order, fixed at OpenArchive time
}

// NewMemCodec creates an empty in-memory codec.
func NewMemCodec() *MemCodec {
	return &MemCodec{
		writers: make(map[Handle]*memWriteCtx),
		readers: make(map[Handle]*memArchive),
		lastErr: make(map[Handle]string),
	}
}

// Archives exposes the archives written so far, keyed by output path, for
// assertions in tests.
func (m *MemCodec) Archives() map[string]map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string][]byte, len(m.written))
	for k, v := range m.written {
		cp := make(map[string][]byte, len(v))
		for e, d := range v {
			cp[e] = d
		}
		out[k] = cp
	}
	return out
}

func (m *MemCodec) allocate() Handle {
	m.next++
	return m.next
}

func (m *MemCodec) Create() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.allocate()
	m.writers[h] = &memWriteCtx{entries: make(map[string][]byte)}
	return h, nil
}

func (m *MemCodec) Free(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.writers, h)
}

func (m *MemCodec) SetArchiveFlags(h Handle, flags Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.writers[h]
	if !ok {
		return m.fail(h, "unknown write handle")
	}
	w.flags = flags
	return nil
}

func (m *MemCodec) SetArchiveTypes(h Handle, types ContentType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.writers[h]
	if !ok {
		return m.fail(h, "unknown write handle")
	}
	w.types = types
	return nil
}

func (m *MemCodec) AddFile(h Handle, dir, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.writers[h]
	if !ok {
		return m.fail(h, "unknown write handle")
	}
	key := path.Join(dir, name)
	cp := make([]byte, len(data))
	copy(cp, data)
	if _, exists := w.entries[key]; !exists {
		w.order = append(w.order, key)
	}
	w.entries[key] = cp
	return nil
}

func (m *MemCodec) Write(h Handle, outputPath string, version Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.writers[h]
	if !ok {
		return m.fail(h, "unknown write handle")
	}
	if m.written == nil {
		m.written = make(map[string]map[string][]byte)
	}
	snapshot := make(map[string][]byte, len(w.entries))
	for k, v := range w.entries {
		snapshot[k] = v
	}
	m.written[outputPath] = snapshot
	return nil
}

func (m *MemCodec) OpenArchive(path string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.written[path]
	if !ok {
		return 0, fmt.Errorf("archive: %s not found in memory codec", path)
	}
	h := m.allocate()
	m.readers[h] = &memArchive{entries: entries, order: SortedEntries(entries)}
	return h, nil
}

func (m *MemCodec) CloseArchive(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.readers, h)
}

func (m *MemCodec) ExtractFile(h Handle, entryPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[h]
	if !ok {
		return nil, m.fail(h, "unknown read handle")
	}
	data, ok := r.entries[entryPath]
	if !ok {
		return nil, m.fail(h, fmt.Sprintf("entry not found: %s", entryPath))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemCodec) FileExists(h Handle, entryPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[h]
	if !ok {
		return false
	}
	_, ok = r.entries[entryPath]
	return ok
}

func (m *MemCodec) FileCount(h Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.readers[h]; ok {
		return len(r.entries)
	}
	if w, ok := m.writers[h]; ok {
		return len(w.entries)
	}
	return 0
}

// FileNameAt returns the entry path at index in the archive's fixed
// open-time ordering.
func (m *MemCodec) FileNameAt(h Handle, index int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[h]
	if !ok {
		return "", m.fail(h, "unknown read handle")
	}
	if index < 0 || index >= len(r.order) {
		return "", m.fail(h, fmt.Sprintf("file name index %d out of range (have %d)", index, len(r.order)))
	}
	return r.order[index], nil
}

func (m *MemCodec) LastError(h Handle) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr[h]
}

func (m *MemCodec) fail(h Handle, msg string) error {
	m.lastErr[h] = msg
	return fmt.Errorf("archive: %s", msg)
}

// SortedEntries returns an archive's entry paths in sorted order, useful
// for deterministic assertions.
func SortedEntries(entries map[string][]byte) []string {
	out := make([]string, 0, len(entries))
	for k := range entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
