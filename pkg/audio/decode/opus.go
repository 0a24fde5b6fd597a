// ABOUTME: Ogg Opus codec adapter
// ABOUTME: Decodes Opus files through libopusfile (hraban/opus) at 48kHz
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// libopusfile always decodes at 48kHz
const opusSampleRate = 48000

type opusCodec struct {
	src    source.Source
	stream *opus.Stream
	props  audio.Properties
	pcm    []int16
	eof    bool
}

// OpenOpus opens an Ogg stream whose first logical stream is Opus.
func OpenOpus(src source.Source) (Codec, error) {
	head, err := peek(src, 128)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(head, []byte("OggS")) {
		return nil, notMine("opus")
	}
	i := bytes.Index(head, []byte("OpusHead"))
	if i < 0 || i+9 >= len(head) {
		return nil, notMine("opus")
	}
	channels := int(head[i+9])
	if channels < 1 {
		return nil, fmt.Errorf("invalid opus channel count %d", channels)
	}

	c := &opusCodec{
		src: src,
		props: audio.Properties{
			Frequency:  opusSampleRate,
			Channels:   channels,
			SampleType: audio.SampleTypeS16,
		},
	}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *opusCodec) open() error {
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	if err := c.src.Reset(); err != nil {
		return fmt.Errorf("failed to rewind opus source: %w", err)
	}
	// hide io.Closer so closing the stream leaves the source open
	stream, err := opus.NewStream(struct{ io.Reader }{c.src})
	if err != nil {
		return fmt.Errorf("failed to create opus decoder: %w", err)
	}
	c.stream = stream
	c.eof = false
	return nil
}

func (c *opusCodec) Properties() audio.Properties { return c.props }

func (c *opusCodec) ReadFrames(dst []byte, frames int) (int, error) {
	if c.eof {
		return 0, io.EOF
	}

	ch := c.props.Channels
	if cap(c.pcm) < frames*ch {
		c.pcm = make([]int16, frames*ch)
	}
	c.pcm = c.pcm[:frames*ch]

	// Read returns samples per channel
	n, err := c.stream.Read(c.pcm)
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.eof = true
			return 0, io.EOF
		}
		return 0, fmt.Errorf("opus decode error: %w", err)
	}
	for i := 0; i < n*ch; i++ {
		audio.SetSampleValue(dst, i, int32(c.pcm[i]), audio.SampleTypeS16)
	}
	return n, nil
}

// SeekFrame reopens the stream and decodes forward; libopusfile seeking is
// not exposed by the binding.
func (c *opusCodec) SeekFrame(frame int64) (int64, error) {
	if err := c.open(); err != nil {
		return 0, err
	}
	return skipFrames(c, frame)
}

func (c *opusCodec) Length() int64 { return -1 }

func (c *opusCodec) Close() error {
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	return err
}
