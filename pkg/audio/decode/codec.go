// ABOUTME: Shared plumbing for codec adapters
// ABOUTME: Factory type, magic-byte probing and MIME hint filtering
package decode

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// OpenFunc probes src and returns a codec positioned at the first frame.
type OpenFunc func(src source.Source) (Codec, error)

// CodecFactory is a Factory producing Stream decoders.
type CodecFactory struct {
	name  string
	mimes []string
	open  OpenFunc
}

// NewCodecFactory creates a factory. mimes lists the MIME types the codec
// accepts as hints; an empty list accepts any hint.
func NewCodecFactory(name string, mimes []string, open OpenFunc) *CodecFactory {
	return &CodecFactory{name: name, mimes: mimes, open: open}
}

func (f *CodecFactory) Name() string { return f.name }

// Accepts reports whether mimeHint is compatible with this codec. Empty and
// generic hints are always accepted.
func (f *CodecFactory) Accepts(mimeHint string) bool {
	mimeHint = strings.ToLower(strings.TrimSpace(mimeHint))
	if i := strings.IndexByte(mimeHint, ';'); i >= 0 {
		mimeHint = strings.TrimSpace(mimeHint[:i])
	}
	if len(f.mimes) == 0 || mimeHint == "" || mimeHint == "application/octet-stream" {
		return true
	}
	for _, m := range f.mimes {
		if m == mimeHint {
			return true
		}
	}
	return false
}

func (f *CodecFactory) Create(src source.Source, meta Metadata, notify NotifyFunc, mimeHint string) (Decoder, error) {
	if !f.Accepts(mimeHint) {
		return nil, fmt.Errorf("%s does not handle %s: %w", f.name, mimeHint, ErrUnsupportedFormat)
	}
	codec, err := f.open(src)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" {
		meta.Title = titleFromURI(src.URI())
	}
	return NewStream(src.URI(), codec, src, meta, notify), nil
}

// Builtin returns factories for every bundled codec in probing order.
func Builtin() []Factory {
	return []Factory{
		NewCodecFactory("flac", []string{"audio/flac", "audio/x-flac"}, OpenFLAC),
		NewCodecFactory("wav", []string{"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"}, OpenWAV),
		NewCodecFactory("aiff", []string{"audio/aiff", "audio/x-aiff"}, OpenAIFF),
		NewCodecFactory("vorbis", oggMIMETypes, OpenVorbis),
		NewCodecFactory("opus", oggMIMETypes, OpenOpus),
		NewCodecFactory("mp3", []string{"audio/mpeg", "audio/mp3", "audio/x-mpeg"}, OpenMP3),
		ToneFactory{},
	}
}

var oggMIMETypes = []string{"audio/ogg", "application/ogg", "audio/opus", "audio/vorbis", "audio/x-ogg"}

// peek reads up to n bytes from the start of src and rewinds it.
func peek(src source.Source, n int) ([]byte, error) {
	if err := src.Reset(); err != nil {
		return nil, fmt.Errorf("failed to rewind source: %w", err)
	}
	buf := make([]byte, n)
	m, err := io.ReadFull(src, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := src.Reset(); err != nil {
		return nil, fmt.Errorf("failed to rewind source: %w", err)
	}
	return buf[:m], nil
}

func notMine(name string) error {
	return fmt.Errorf("not a %s stream: %w", name, ErrUnsupportedFormat)
}

func framesToDuration(frames int64, rate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

func titleFromURI(uri string) string {
	p := source.Path(uri)
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i > 0 {
		p = p[:i]
	}
	return p
}
