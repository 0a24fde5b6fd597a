// ABOUTME: Deterministic test signals shared by package tests
// ABOUTME: RampCodec emits start, start+1, ... so sample order is easy to check
package audiotest

import (
	"io"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

// RampCodec emits frame i as the value Start+i on every channel. Frames < 0
// means an endless ramp.
type RampCodec struct {
	Props  audio.Properties
	Frames int64
	Start  int32

	pos    int64
	Closed bool
}

// NewRamp creates a finite mono 16-bit ramp at rate.
func NewRamp(rate int, frames int64) *RampCodec {
	return &RampCodec{
		Props:  audio.Properties{Frequency: rate, Channels: 1, SampleType: audio.SampleTypeS16},
		Frames: frames,
	}
}

func (r *RampCodec) Properties() audio.Properties { return r.Props }

func (r *RampCodec) ReadFrames(dst []byte, frames int) (int, error) {
	if r.Frames >= 0 {
		frames = int(min(int64(frames), r.Frames-r.pos))
		if frames <= 0 {
			return 0, io.EOF
		}
	}
	ch := r.Props.Channels
	for i := 0; i < frames; i++ {
		v := r.Start + int32(r.pos) + int32(i)
		for c := 0; c < ch; c++ {
			audio.SetSampleValue(dst, i*ch+c, v, r.Props.SampleType)
		}
	}
	r.pos += int64(frames)
	return frames, nil
}

func (r *RampCodec) SeekFrame(frame int64) (int64, error) {
	r.pos = frame
	return frame, nil
}

func (r *RampCodec) Length() int64 { return r.Frames }

func (r *RampCodec) Close() error {
	r.Closed = true
	return nil
}

// Values decodes every sample value in buf.
func Values(buf []byte, t audio.SampleType) []int32 {
	out := make([]int32, len(buf)/t.Size())
	for i := range out {
		out[i] = audio.SampleValue(buf, i, t)
	}
	return out
}

// Ramp returns n values start, start+1, ...
func Ramp(start int32, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = start + int32(i)
	}
	return out
}
