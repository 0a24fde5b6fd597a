// ABOUTME: Byte-stream source abstraction behind every decoder
// ABOUTME: Defines the Source contract, factories and URI helpers
package source

import (
	"errors"
	"io"
	"strings"
)

var (
	// ErrNotSeekable is returned by Seek on sources that cannot seek.
	ErrNotSeekable = errors.New("source is not seekable")
	// ErrNotFound is returned when the resource behind a URI does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidSeek is returned for seeks before the start of the stream.
	ErrInvalidSeek = errors.New("invalid seek position")
)

// Source provides the raw bytes of a resource.
type Source interface {
	io.Reader
	// Seek moves the read position. whence is io.SeekStart, io.SeekCurrent
	// or io.SeekEnd.
	io.Seeker
	io.Closer

	// URI returns the resource identifier this source was opened from
	URI() string
	// CanSeek reports whether Seek is supported
	CanSeek() bool
	// Size returns the total size in bytes or -1 if unknown
	Size() int64
	// Position returns the current read offset
	Position() int64
	// Reset rewinds the source to its first byte
	Reset() error
}

// Factory opens sources for one URI scheme.
type Factory interface {
	Open(uri string) (Source, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(uri string) (Source, error)

// Open calls f(uri).
func (f FactoryFunc) Open(uri string) (Source, error) {
	return f(uri)
}

// Scheme returns the scheme of uri. Bare paths have the "file" scheme.
func Scheme(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 0 {
		return "file"
	}
	return strings.ToLower(uri[:i])
}

// Path strips the scheme prefix from uri.
func Path(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return uri[i+3:]
	}
	return uri
}

// seekOffset resolves a Seek request against the current position and size.
func seekOffset(offset int64, whence int, pos, size int64) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = pos + offset
	case io.SeekEnd:
		if size < 0 {
			return pos, ErrNotSeekable
		}
		abs = size + offset
	default:
		return pos, ErrInvalidSeek
	}
	if abs < 0 {
		return pos, ErrInvalidSeek
	}
	return abs, nil
}
