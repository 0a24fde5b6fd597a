// ABOUTME: MP3 codec adapter
// ABOUTME: Decodes MPEG audio to 16-bit stereo PCM with go-mp3
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// go-mp3 always emits 16-bit little-endian stereo
const mp3FrameSize = 4

type mp3Codec struct {
	dec   *mp3.Decoder
	props audio.Properties
	eof   bool
}

// OpenMP3 opens an MPEG-1/2 layer III stream.
func OpenMP3(src source.Source) (Codec, error) {
	head, err := peek(src, 3)
	if err != nil {
		return nil, err
	}
	if !isMP3Header(head) {
		return nil, notMine("mp3")
	}

	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &mp3Codec{
		dec: dec,
		props: audio.Properties{
			Frequency:  dec.SampleRate(),
			Channels:   2,
			SampleType: audio.SampleTypeS16,
		},
	}, nil
}

func isMP3Header(b []byte) bool {
	if len(b) < 3 {
		return false
	}
	if string(b[:3]) == "ID3" {
		return true
	}
	// frame sync: 11 set bits, layer III
	return b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 == 0x02
}

func (c *mp3Codec) Properties() audio.Properties { return c.props }

func (c *mp3Codec) ReadFrames(dst []byte, frames int) (int, error) {
	if c.eof {
		return 0, io.EOF
	}
	n, err := io.ReadFull(c.dec, dst[:frames*mp3FrameSize])
	got := n / mp3FrameSize
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			c.eof = true
			if got == 0 {
				return 0, io.EOF
			}
			return got, nil
		}
		return got, fmt.Errorf("mp3 decode error: %w", err)
	}
	return got, nil
}

func (c *mp3Codec) SeekFrame(frame int64) (int64, error) {
	pos, err := c.dec.Seek(frame*mp3FrameSize, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("mp3 seek failed: %w", err)
	}
	c.eof = false
	return pos / mp3FrameSize, nil
}

func (c *mp3Codec) Length() int64 {
	if n := c.dec.Length(); n >= 0 {
		return n / mp3FrameSize
	}
	return -1
}

func (c *mp3Codec) Close() error { return nil }
