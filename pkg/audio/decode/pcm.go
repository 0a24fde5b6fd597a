// ABOUTME: Uncompressed PCM codecs built on go-audio decoders
// ABOUTME: Shared reader for WAV and AIFF containers
package decode

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// intReader is the part of the go-audio decoders the PCM codec uses.
type intReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// pcmLayout is what a container header says about its PCM data. Frames is
// -1 when the header does not tell.
type pcmLayout struct {
	depth  int
	frames int64
}

// intCodec reads integer PCM from a go-audio decoder. Seeking reopens the
// container and skips forward.
type intCodec struct {
	name   string
	src    source.Source
	reopen func(src source.Source) (intReader, pcmLayout, error)

	dec    intReader
	props  audio.Properties
	length int64
	pos    int64
	eof    bool
	buf    *goaudio.IntBuffer
}

func newIntCodec(name string, src source.Source, reopen func(source.Source) (intReader, pcmLayout, error)) (*intCodec, error) {
	c := &intCodec{name: name, src: src, reopen: reopen, length: -1}
	if err := c.rewind(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *intCodec) rewind() error {
	if err := c.src.Reset(); err != nil {
		return fmt.Errorf("failed to rewind %s source: %w", c.name, err)
	}
	dec, layout, err := c.reopen(c.src)
	if err != nil {
		return err
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate < 1 {
		return fmt.Errorf("invalid %s layout", c.name)
	}

	var typ audio.SampleType
	switch layout.depth {
	case 16:
		typ = audio.SampleTypeS16
	case 24:
		typ = audio.SampleTypeS24
	case 32:
		typ = audio.SampleTypeS32
	default:
		return fmt.Errorf("%s %d-bit: %w", c.name, layout.depth, ErrUnsupportedBitDepth)
	}

	c.dec = dec
	c.props = audio.Properties{Frequency: format.SampleRate, Channels: format.NumChannels, SampleType: typ}
	c.pos = 0
	c.eof = false
	c.length = -1
	if layout.frames > 0 {
		c.length = layout.frames
	}
	return nil
}

func (c *intCodec) Properties() audio.Properties { return c.props }
func (c *intCodec) Length() int64                { return c.length }
func (c *intCodec) Close() error                 { return nil }

func (c *intCodec) ReadFrames(dst []byte, frames int) (int, error) {
	if c.eof {
		return 0, io.EOF
	}

	ch := c.props.Channels
	want := frames * ch
	if c.buf == nil || cap(c.buf.Data) < want {
		c.buf = &goaudio.IntBuffer{Data: make([]int, want), Format: c.dec.Format()}
	}
	c.buf.Data = c.buf.Data[:want]

	n, err := c.dec.PCMBuffer(c.buf)
	got := n / ch
	for i := 0; i < got*ch; i++ {
		audio.SetSampleValue(dst, i, int32(c.buf.Data[i]), c.props.SampleType)
	}
	c.pos += int64(got)

	if err != nil && !errors.Is(err, io.EOF) {
		return got, fmt.Errorf("%s decode error: %w", c.name, err)
	}
	if got == 0 || err != nil {
		c.eof = true
	}
	if got == 0 {
		return 0, io.EOF
	}
	return got, nil
}

func (c *intCodec) SeekFrame(frame int64) (int64, error) {
	if err := c.rewind(); err != nil {
		return 0, err
	}
	return skipFrames(c, frame)
}

// skipFrames discards frames frames from c and returns the position reached.
func skipFrames(c Codec, frames int64) (int64, error) {
	props := c.Properties()
	const chunk = 4096
	scratch := make([]byte, props.Bytes(chunk))
	var done int64
	for done < frames {
		n, err := c.ReadFrames(scratch, int(min(frames-done, chunk)))
		done += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return done, err
		}
		if n == 0 {
			break
		}
	}
	return done, nil
}
