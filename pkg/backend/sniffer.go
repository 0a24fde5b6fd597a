// ABOUTME: MIME sniffer owned by the backend
// ABOUTME: Detects content types from leading source bytes with mimetype
package backend

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// ErrSnifferClosed is returned by Sniff after Close.
var ErrSnifferClosed = errors.New("mime sniffer closed")

// sniffLimit matches the header window mimetype inspects by default
const sniffLimit = 3072

// Sniffer detects MIME types. It is created by the backend and closed with
// it; a closed sniffer refuses further work.
type Sniffer struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewSniffer creates a sniffer.
func NewSniffer() *Sniffer {
	return &Sniffer{buf: make([]byte, sniffLimit)}
}

// Sniff returns the MIME type of src and rewinds it. An empty source has
// no type and yields "".
func (s *Sniffer) Sniff(src source.Source) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSnifferClosed
	}

	n, err := io.ReadFull(src, s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read %s: %w", src.URI(), err)
	}
	if rerr := src.Reset(); rerr != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", src.URI(), rerr)
	}
	if n == 0 {
		return "", nil
	}
	return mimetype.Detect(s.buf[:n]).String(), nil
}

// Close releases the sniffer.
func (s *Sniffer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buf = nil
	return nil
}
