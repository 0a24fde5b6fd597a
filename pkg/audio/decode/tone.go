// ABOUTME: Sine test tone decoder
// ABOUTME: Generates a tone at whatever rate the sink asks for (tone://440?duration=5s)
package decode

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// RateAdapter is implemented by codecs with native frequency 0 that need to
// know the negotiated rate.
type RateAdapter interface {
	SetRate(rate int)
}

// ToneCodec generates a sine wave at half amplitude.
type ToneCodec struct {
	pitch    float64
	duration time.Duration
	rate     int
	index    int64
}

// NewToneCodec creates a tone generator. A zero duration plays forever.
func NewToneCodec(pitch float64, duration time.Duration) *ToneCodec {
	return &ToneCodec{pitch: pitch, duration: duration}
}

// Properties reports frequency 0: the tone adapts to any rate.
func (c *ToneCodec) Properties() audio.Properties {
	return audio.Properties{Frequency: 0, Channels: 1, SampleType: audio.SampleTypeS16}
}

func (c *ToneCodec) SetRate(rate int) {
	if rate != c.rate && c.rate > 0 && rate > 0 {
		// keep the playback time when the rate changes
		c.index = c.index * int64(rate) / int64(c.rate)
	}
	c.rate = rate
}

func (c *ToneCodec) ReadFrames(dst []byte, frames int) (int, error) {
	if c.rate <= 0 {
		return 0, fmt.Errorf("tone rate not negotiated")
	}
	if length := c.Length(); length >= 0 {
		frames = int(min(int64(frames), length-c.index))
		if frames <= 0 {
			return 0, io.EOF
		}
	}

	for i := 0; i < frames; i++ {
		t := float64(c.index+int64(i)) / float64(c.rate)
		v := math.Sin(2*math.Pi*c.pitch*t) * 0.5 * math.MaxInt16
		audio.SetSampleValue(dst, i, int32(v), audio.SampleTypeS16)
	}
	c.index += int64(frames)
	return frames, nil
}

func (c *ToneCodec) SeekFrame(frame int64) (int64, error) {
	c.index = frame
	return frame, nil
}

func (c *ToneCodec) Length() int64 {
	if c.duration <= 0 || c.rate <= 0 {
		return -1
	}
	return int64(c.duration.Seconds() * float64(c.rate))
}

func (c *ToneCodec) Metadata() Metadata {
	return Metadata{
		Title:    fmt.Sprintf("Test Tone %gHz", c.pitch),
		Artist:   "Resonate",
		Album:    "Test Signal",
		Duration: c.duration,
	}
}

func (c *ToneCodec) Close() error { return nil }

// ToneFactory creates tone decoders for tone:// URIs.
type ToneFactory struct{}

func (ToneFactory) Name() string { return "tone" }

func (ToneFactory) Create(src source.Source, meta Metadata, notify NotifyFunc, mimeHint string) (Decoder, error) {
	if source.Scheme(src.URI()) != "tone" {
		return nil, notMine("tone")
	}
	pitch, duration, err := ParseToneURI(src.URI())
	if err != nil {
		return nil, err
	}
	return NewStream(src.URI(), NewToneCodec(pitch, duration), src, meta, notify), nil
}

// ParseToneURI parses tone://<hz>[?duration=<go duration>].
func ParseToneURI(uri string) (float64, time.Duration, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tone uri: %w", err)
	}
	pitch := 440.0
	if u.Host != "" {
		pitch, err = strconv.ParseFloat(u.Host, 64)
		if err != nil || pitch <= 0 {
			return 0, 0, fmt.Errorf("invalid tone pitch %q", u.Host)
		}
	}
	var duration time.Duration
	if d := u.Query().Get("duration"); d != "" {
		duration, err = time.ParseDuration(d)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid tone duration: %w", err)
		}
	}
	return pitch, duration, nil
}
