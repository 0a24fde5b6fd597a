// ABOUTME: Local file source
// ABOUTME: Opens file:// URIs and bare paths as seekable sources
package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// FileSource reads a local file.
type FileSource struct {
	uri  string
	file *os.File
	size int64
	pos  int64
}

// OpenFile opens a file:// URI or a plain path.
func OpenFile(uri string) (Source, error) {
	path := Path(uri)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("audio file not found: %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &FileSource{uri: uri, file: f, size: info.Size()}, nil
}

func (s *FileSource) Read(p []byte) (int, error) {
	n, err := s.file.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *FileSource) Seek(offset int64, whence int) (int64, error) {
	abs, err := seekOffset(offset, whence, s.pos, s.size)
	if err != nil {
		return s.pos, err
	}
	pos, err := s.file.Seek(abs, io.SeekStart)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

func (s *FileSource) Reset() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

func (s *FileSource) URI() string     { return s.uri }
func (s *FileSource) CanSeek() bool   { return true }
func (s *FileSource) Size() int64     { return s.size }
func (s *FileSource) Position() int64 { return s.pos }
func (s *FileSource) Close() error    { return s.file.Close() }
