// ABOUTME: Frame conversion with channel mixing and volume
// ABOUTME: Single pass over every output sample for type, channel and gain changes
package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMix is returned for channel count pairs that cannot be mixed.
var ErrUnsupportedMix = errors.New("unsupported channel mix")

// CanMix reports whether frames with from channels can be mixed into to
// channels. Supported: N->N, 1->2 and 2->1.
func CanMix(from, to int) bool {
	if from <= 0 || to <= 0 {
		return false
	}
	return from == to || (from == 1 && to == 2) || (from == 2 && to == 1)
}

// ConvertFrames converts frames frames from src (format sp) into dst (format
// dp), scaling every output sample by volume. Frequencies are ignored.
func ConvertFrames(dst []byte, dp Properties, src []byte, sp Properties, frames, volume int) error {
	if !CanMix(sp.Channels, dp.Channels) {
		return fmt.Errorf("%d to %d channels: %w", sp.Channels, dp.Channels, ErrUnsupportedMix)
	}
	if frames <= 0 {
		return nil
	}

	st, dt := sp.SampleType, dp.SampleType
	if st == dt && sp.Channels == dp.Channels && volume >= MaxVolume {
		copy(dst[:dp.Bytes(frames)], src[:sp.Bytes(frames)])
		return nil
	}

	switch {
	case sp.Channels == dp.Channels:
		for i := 0; i < frames*sp.Channels; i++ {
			v := ConvertSample(SampleValue(src, i, st), st, dt)
			SetSampleValue(dst, i, ScaleSample(v, volume), dt)
		}
	case sp.Channels == 1:
		for f := 0; f < frames; f++ {
			v := ScaleSample(ConvertSample(SampleValue(src, f, st), st, dt), volume)
			SetSampleValue(dst, 2*f, v, dt)
			SetSampleValue(dst, 2*f+1, v, dt)
		}
	default:
		for f := 0; f < frames; f++ {
			a := int64(ConvertSample(SampleValue(src, 2*f, st), st, dt))
			b := int64(ConvertSample(SampleValue(src, 2*f+1, st), st, dt))
			SetSampleValue(dst, f, ScaleSample(int32((a+b)/2), volume), dt)
		}
	}
	return nil
}
