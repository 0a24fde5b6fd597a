// ABOUTME: Ogg Vorbis codec adapter
// ABOUTME: Decodes Vorbis with jfreymuth/oggvorbis to 16-bit PCM
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

type vorbisCodec struct {
	dec   *oggvorbis.Reader
	props audio.Properties
	buf   []float32
	eof   bool
}

// OpenVorbis opens an Ogg stream whose first logical stream is Vorbis.
func OpenVorbis(src source.Source) (Codec, error) {
	head, err := peek(src, 64)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(head, []byte("OggS")) || !bytes.Contains(head, []byte("\x01vorbis")) {
		return nil, notMine("vorbis")
	}

	dec, err := oggvorbis.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	return &vorbisCodec{
		dec: dec,
		props: audio.Properties{
			Frequency:  dec.SampleRate(),
			Channels:   dec.Channels(),
			SampleType: audio.SampleTypeS16,
		},
	}, nil
}

func (c *vorbisCodec) Properties() audio.Properties { return c.props }

func (c *vorbisCodec) ReadFrames(dst []byte, frames int) (int, error) {
	if c.eof {
		return 0, io.EOF
	}

	ch := c.props.Channels
	want := frames * ch
	if cap(c.buf) < want {
		c.buf = make([]float32, want)
	}
	c.buf = c.buf[:want]

	// Read returns interleaved values, always a multiple of the channel count
	n, err := c.dec.Read(c.buf)
	for tries := 0; n == 0 && err == nil && tries < 8; tries++ {
		// packets without audio (e.g. after a page boundary) yield nothing
		n, err = c.dec.Read(c.buf)
	}
	for i := 0; i < n; i++ {
		audio.SetSampleValue(dst, i, int32(floatToInt16(c.buf[i])), audio.SampleTypeS16)
	}
	got := n / ch

	if err != nil {
		if !errors.Is(err, io.EOF) {
			return got, fmt.Errorf("vorbis decode error: %w", err)
		}
		c.eof = true
		if got == 0 {
			return 0, io.EOF
		}
	}
	return got, nil
}

func (c *vorbisCodec) SeekFrame(frame int64) (int64, error) {
	if err := c.dec.SetPosition(frame); err != nil {
		return 0, fmt.Errorf("vorbis seek failed: %w", err)
	}
	c.eof = false
	return c.dec.Position(), nil
}

func (c *vorbisCodec) Length() int64 {
	if n := c.dec.Length(); n > 0 {
		return n
	}
	return -1
}

func (c *vorbisCodec) Close() error { return nil }

// floatToInt16 converts a [-1, 1] float sample with clamping
func floatToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767)
}
