// ABOUTME: Audio format descriptors
// ABOUTME: Defines decoder/playback properties and the integer volume range
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// MaxVolume is unity gain. Volume 0 is silence.
	MaxVolume = 1 << 16
)

// Properties describes the PCM format a decoder emits or a sink consumes.
// A frequency of 0 on a decoder means it adapts to whatever rate is requested.
type Properties struct {
	Frequency  int
	Channels   int
	SampleType SampleType
}

// FrameSize returns the number of bytes in one frame (one value per channel).
func (p Properties) FrameSize() int {
	return p.Channels * p.SampleType.Size()
}

// Bytes returns the byte length of frames frames.
func (p Properties) Bytes(frames int) int {
	return frames * p.FrameSize()
}

// IsValid reports whether every field is set.
func (p Properties) IsValid() bool {
	return p.Frequency > 0 && p.Channels > 0 && p.SampleType != SampleTypeUnknown
}

func (p Properties) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", p.Frequency, p.Channels, p.SampleType)
}

// PlaybackProperties is the fixed output format of a sink plus the size of
// one device period in frames.
type PlaybackProperties struct {
	Properties
	BufferSize int
}

// IsValid reports whether all four fields are non-zero and known.
func (p PlaybackProperties) IsValid() bool {
	return p.Properties.IsValid() && p.BufferSize > 0
}

func (p PlaybackProperties) String() string {
	return fmt.Sprintf("%s/%d", p.Properties, p.BufferSize)
}

// SampleToInt16 narrows a 24-bit sample to 16 bits
func SampleToInt16(sample int32) int16 {
	return int16(ConvertSample(sample, SampleTypeS24, SampleTypeS16))
}

// SampleFromInt16 widens a 16-bit sample to 24 bits
func SampleFromInt16(sample int16) int32 {
	return ConvertSample(int32(sample), SampleTypeS16, SampleTypeS24)
}

// Clamp24 limits v to the signed 24-bit range.
func Clamp24(v int64) int32 {
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}

// SampleTo24Bit packs the low 24 bits of sample little-endian
func SampleTo24Bit(sample int32) [3]byte {
	var b [3]byte
	SetSampleValue(b[:], 0, sample, SampleTypeS24)
	return b
}

// SampleFrom24Bit unpacks a little-endian 24-bit sample, sign-extended
func SampleFrom24Bit(b [3]byte) int32 {
	return SampleValue(b[:], 0, SampleTypeS24)
}
