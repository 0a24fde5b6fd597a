// ABOUTME: In-memory sources
// ABOUTME: Serves registered byte slices under mem:// URIs
package source

import (
	"fmt"
	"io"
	"sync"
)

// MemorySource reads from a byte slice.
type MemorySource struct {
	uri  string
	data []byte
	pos  int64
}

// NewMemorySource wraps data. The slice is not copied.
func NewMemorySource(uri string, data []byte) *MemorySource {
	return &MemorySource{uri: uri, data: data}
}

func (s *MemorySource) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *MemorySource) Seek(offset int64, whence int) (int64, error) {
	abs, err := seekOffset(offset, whence, s.pos, int64(len(s.data)))
	if err != nil {
		return s.pos, err
	}
	s.pos = abs
	return abs, nil
}

func (s *MemorySource) Reset() error {
	s.pos = 0
	return nil
}

func (s *MemorySource) URI() string     { return s.uri }
func (s *MemorySource) CanSeek() bool   { return true }
func (s *MemorySource) Size() int64     { return int64(len(s.data)) }
func (s *MemorySource) Position() int64 { return s.pos }
func (s *MemorySource) Close() error    { return nil }

// MemoryStore is a Factory serving named blobs as mem://name.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores data under name and returns its URI.
func (m *MemoryStore) Put(name string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = data
	return "mem://" + name
}

// Open opens a mem:// URI.
func (m *MemoryStore) Open(uri string) (Source, error) {
	m.mu.RLock()
	data, ok := m.blobs[Path(uri)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, ErrNotFound)
	}
	return NewMemorySource(uri, data), nil
}
