// ABOUTME: Decoder error values
// ABOUTME: Sentinel errors shared by codec adapters
package decode

import "errors"

var (
	// ErrUnsupportedFormat means the source is not in the factory's format
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNotSeekable is returned by codecs that cannot reposition
	ErrNotSeekable = errors.New("codec cannot seek")
	// ErrUnsupportedBitDepth is returned for PCM depths the adapters do not handle
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("decoder closed")
)
