// ABOUTME: Integer resampler for converting audio sample rates
// ABOUTME: Linear interpolation or nearest-sample hold with an exact rational phase
package resample

import (
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

var (
	// Linear interpolates between neighbouring input frames
	Linear Factory = phaseFactory{name: "linear", interpolate: true}
	// Nearest repeats or drops input frames (zero-order hold)
	Nearest Factory = phaseFactory{name: "nearest"}
)

type phaseFactory struct {
	name        string
	interpolate bool
}

func (f phaseFactory) Name() string { return f.name }

// SampleType works in the native type; only integer arithmetic is used.
func (f phaseFactory) SampleType(native audio.SampleType) audio.SampleType {
	return native
}

func (f phaseFactory) New(cfg Config) (Converter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return New(cfg, f.interpolate), nil
}

// Resampler converts between sample rates without floating point. Output
// frame j reads input position j*in/out, tracked as an integer frame index
// plus a remainder in units of 1/out, so N input frames always produce
// exactly ceil(N*out/in) output frames.
type Resampler struct {
	inputRate   int64
	outputRate  int64
	channels    int
	sampleType  audio.SampleType
	interpolate bool

	// next output position relative to the first unconsumed input frame
	index int64
	frac  int64
}

// New creates a new resampler
func New(cfg Config, interpolate bool) *Resampler {
	return &Resampler{
		inputRate:   int64(cfg.InputRate),
		outputRate:  int64(cfg.OutputRate),
		channels:    cfg.Channels,
		sampleType:  cfg.SampleType,
		interpolate: interpolate,
	}
}

func (r *Resampler) InputFrames(outFrames, buffered int) int {
	if outFrames <= 0 {
		return 0
	}
	last := r.index + (r.frac+int64(outFrames-1)*r.inputRate)/r.outputRate
	need := last + 1
	if r.interpolate {
		need++
	}
	return int(max(need-int64(buffered), 0))
}

func (r *Resampler) Process(dst, src []byte, frames int) ([]byte, int, error) {
	dst, consumed := r.run(dst, src, frames, false)
	return dst, consumed, nil
}

func (r *Resampler) Flush(dst, src []byte, frames int) ([]byte, error) {
	dst, _ = r.run(dst, src, frames, true)
	r.Reset()
	return dst, nil
}

func (r *Resampler) run(dst, src []byte, frames int, final bool) ([]byte, int) {
	ch := r.channels
	fs := ch * r.sampleType.Size()
	n := int64(frames)

	for r.index < n {
		i := r.index
		// interpolation needs the following frame unless this is the tail
		next := r.interpolate && i+1 < n
		if r.interpolate && !next && !final {
			break
		}

		var off int
		dst, off = growFrames(dst, 1, fs)
		out := dst[off:]
		for c := 0; c < ch; c++ {
			v := audio.SampleValue(src, int(i)*ch+c, r.sampleType)
			if next && r.frac != 0 {
				b := audio.SampleValue(src, int(i+1)*ch+c, r.sampleType)
				v += int32((int64(b) - int64(v)) * r.frac / r.outputRate)
			}
			audio.SetSampleValue(out, c, v, r.sampleType)
		}

		r.frac += r.inputRate
		r.index += r.frac / r.outputRate
		r.frac %= r.outputRate
	}

	consumed := min(r.index, n)
	r.index -= consumed
	return dst, int(consumed)
}

// SetOutputRate retunes the output rate, rescaling the pending phase.
func (r *Resampler) SetOutputRate(rate int) {
	if rate <= 0 || int64(rate) == r.outputRate {
		return
	}
	r.frac = r.frac * int64(rate) / r.outputRate
	r.outputRate = int64(rate)
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.index = 0
	r.frac = 0
}

func (r *Resampler) Close() error { return nil }
