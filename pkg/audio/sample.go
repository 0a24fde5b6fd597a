// ABOUTME: Sample type model and conversion primitives
// ABOUTME: The only place that decides how samples are laid out in bytes
package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// SampleType identifies the in-memory encoding of one PCM sample value.
// All encodings are signed little-endian.
type SampleType int

const (
	SampleTypeUnknown SampleType = iota
	// SampleTypeS16 is 16-bit signed, 2 bytes
	SampleTypeS16
	// SampleTypeS24 is 24-bit signed, 3 packed bytes
	SampleTypeS24
	// SampleTypeS24Padded is 24-bit signed stored in 4 bytes, sign-extended
	// into the high byte
	SampleTypeS24Padded
	// SampleTypeS32 is 32-bit signed, 4 bytes
	SampleTypeS32
)

// Size returns the number of bytes one sample value occupies.
func (t SampleType) Size() int {
	switch t {
	case SampleTypeS16:
		return 2
	case SampleTypeS24:
		return 3
	case SampleTypeS24Padded, SampleTypeS32:
		return 4
	default:
		return 0
	}
}

// Bits returns the significant bit depth of the type.
func (t SampleType) Bits() int {
	switch t {
	case SampleTypeS16:
		return 16
	case SampleTypeS24, SampleTypeS24Padded:
		return 24
	case SampleTypeS32:
		return 32
	default:
		return 0
	}
}

func (t SampleType) String() string {
	switch t {
	case SampleTypeS16:
		return "s16"
	case SampleTypeS24:
		return "s24"
	case SampleTypeS24Padded:
		return "s24_32"
	case SampleTypeS32:
		return "s32"
	default:
		return "unknown"
	}
}

// ParseSampleType parses the names produced by SampleType.String.
func ParseSampleType(s string) (SampleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s16", "16":
		return SampleTypeS16, nil
	case "s24", "24":
		return SampleTypeS24, nil
	case "s24_32", "s24padded":
		return SampleTypeS24Padded, nil
	case "s32", "32":
		return SampleTypeS32, nil
	}
	return SampleTypeUnknown, fmt.Errorf("unknown sample type: %q", s)
}

// SampleValue reads the index-th sample value (not byte) from buf.
func SampleValue(buf []byte, index int, t SampleType) int32 {
	switch t {
	case SampleTypeS16:
		return int32(int16(binary.LittleEndian.Uint16(buf[index*2:])))
	case SampleTypeS24:
		o := index * 3
		v := int32(buf[o]) | int32(buf[o+1])<<8 | int32(buf[o+2])<<16
		return signExtend24(v)
	case SampleTypeS24Padded:
		return signExtend24(int32(binary.LittleEndian.Uint32(buf[index*4:])))
	case SampleTypeS32:
		return int32(binary.LittleEndian.Uint32(buf[index*4:]))
	default:
		return 0
	}
}

// SetSampleValue writes v as the index-th sample value of buf.
// Values are truncated to the width of t.
func SetSampleValue(buf []byte, index int, v int32, t SampleType) {
	switch t {
	case SampleTypeS16:
		binary.LittleEndian.PutUint16(buf[index*2:], uint16(int16(v)))
	case SampleTypeS24:
		o := index * 3
		buf[o] = byte(v)
		buf[o+1] = byte(v >> 8)
		buf[o+2] = byte(v >> 16)
	case SampleTypeS24Padded:
		binary.LittleEndian.PutUint32(buf[index*4:], uint32(signExtend24(v)))
	case SampleTypeS32:
		binary.LittleEndian.PutUint32(buf[index*4:], uint32(v))
	}
}

// ConvertSample converts v from one sample type to another. Widening shifts
// left by the bit-depth difference and is lossless; narrowing shifts right
// arithmetically and truncates. Conversions involving SampleTypeUnknown
// return 0.
func ConvertSample(v int32, from, to SampleType) int32 {
	fb, tb := from.Bits(), to.Bits()
	if fb == 0 || tb == 0 {
		return 0
	}
	switch {
	case tb > fb:
		return v << (tb - fb)
	case tb < fb:
		return v >> (fb - tb)
	default:
		return v
	}
}

// ScaleSample applies an integer volume in [0, MaxVolume] to v.
func ScaleSample(v int32, volume int) int32 {
	if volume >= MaxVolume {
		return v
	}
	if volume <= 0 {
		return 0
	}
	return int32(int64(v) * int64(volume) / MaxVolume)
}

func signExtend24(v int32) int32 {
	v &= 0xFFFFFF
	if v&0x800000 != 0 {
		v |= ^0xFFFFFF
	}
	return v
}
