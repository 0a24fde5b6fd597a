// ABOUTME: Frequency converter contract used by the stream transformer
// ABOUTME: Converter and Factory interfaces plus lookup by name
package resample

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

// ErrInvalidConfig is returned for rates or channel counts a converter
// cannot work with.
var ErrInvalidConfig = errors.New("invalid resampler configuration")

// Config describes one conversion context.
type Config struct {
	InputRate  int
	OutputRate int
	Channels   int
	SampleType audio.SampleType
}

func (c Config) validate() error {
	if c.InputRate <= 0 || c.OutputRate <= 0 || c.Channels <= 0 || c.SampleType.Size() == 0 {
		return fmt.Errorf("%d->%dHz/%dch/%s: %w", c.InputRate, c.OutputRate, c.Channels, c.SampleType, ErrInvalidConfig)
	}
	return nil
}

// Converter changes the frame rate of interleaved PCM. Input and output are
// byte buffers in Config.SampleType with Config.Channels channels.
type Converter interface {
	// InputFrames returns how many input frames are needed, beyond the
	// buffered frames already pending, to produce outFrames output frames.
	InputFrames(outFrames, buffered int) int
	// Process converts frames frames of src, appends the output to dst and
	// returns the number of input frames consumed. Unconsumed frames must be
	// passed again at the start of the next call.
	Process(dst, src []byte, frames int) ([]byte, int, error)
	// Flush converts src as the final input of the stream, appends the
	// output to dst and resets the conversion phase.
	Flush(dst, src []byte, frames int) ([]byte, error)
	// SetOutputRate retunes the running context.
	SetOutputRate(rate int)
	Close() error
}

// Factory creates converters.
type Factory interface {
	Name() string
	// SampleType returns the sample type converters work in for a stream
	// whose native type is native.
	SampleType(native audio.SampleType) audio.SampleType
	New(cfg Config) (Converter, error)
}

// Names lists the converters ByName knows.
func Names() []string {
	return []string{"nearest", "linear", "soxr", "soxr-quick"}
}

// ByName returns the converter factory called name.
func ByName(name string) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest":
		return Nearest, nil
	case "", "linear":
		return Linear, nil
	case "soxr":
		return Soxr, nil
	case "soxr-quick":
		return SoxrQuick, nil
	}
	return nil, fmt.Errorf("unknown resampler %q (available: %s)", name, strings.Join(Names(), ", "))
}

// growFrames extends dst by n frames of size fs and returns the new slice
// and the offset of the first added byte.
func growFrames(dst []byte, n, fs int) ([]byte, int) {
	off := len(dst)
	need := off + n*fs
	if cap(dst) < need {
		grown := make([]byte, off, max(need, 2*cap(dst)))
		copy(grown, dst)
		dst = grown
	}
	return dst[:need], off
}
