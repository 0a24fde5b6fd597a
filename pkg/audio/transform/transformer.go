// ABOUTME: Stream transformer from a decoder's native format to a sink format
// ABOUTME: Type conversion, channel mix, resampling with carry-over, then volume
package transform

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/resample"
)

var (
	// ErrUnsupportedChannels is returned for channel pairs other than N->N,
	// 1->2 and 2->1.
	ErrUnsupportedChannels = errors.New("unsupported channel conversion")
	// ErrInvalidProperties is returned for formats with unknown fields.
	ErrInvalidProperties = errors.New("invalid audio properties")
)

// SampleSource supplies native frames. A return of 0 means end of stream.
type SampleSource interface {
	RetrieveSamples(dst []byte, frames int) int
}

// SourceFunc adapts a function such as a decoder's Update to SampleSource.
type SourceFunc func(dst []byte, frames int) int

func (f SourceFunc) RetrieveSamples(dst []byte, frames int) int {
	return f(dst, frames)
}

// CanConvert reports whether frames in from can be transformed to to.
func CanConvert(from, to audio.Properties) bool {
	return from.SampleType.Size() > 0 && to.SampleType.Size() > 0 && audio.CanMix(from.Channels, to.Channels)
}

// Transformer converts frames pulled from a SampleSource into a fixed target
// format. Converted frames that do not fit the caller's buffer are kept and
// served first on the next call, so consecutive sources join without loss.
// A Transformer is not safe for concurrent use.
type Transformer struct {
	target  audio.Properties
	factory resample.Factory

	conv       resample.Converter
	convNative audio.Properties // native format the converter was built for
	convType   audio.SampleType

	// raw holds frames straight from the source
	raw []byte
	// pre holds staged converter input: target channels, convType
	pre       []byte
	preFrames int
	// post holds converter output not yet handed out: target channels, postType
	post     []byte
	postType audio.SampleType
}

// New creates a transformer for target. A nil factory uses resample.Linear.
func New(target audio.Properties, f resample.Factory) (*Transformer, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("target %s: %w", target, ErrInvalidProperties)
	}
	if f == nil {
		f = resample.Linear
	}
	return &Transformer{target: target, factory: f, postType: target.SampleType}, nil
}

// Target returns the output format.
func (t *Transformer) Target() audio.Properties {
	return t.target
}

// SetTarget changes the output format. A frequency-only change retunes the
// running converter and keeps buffered frames; any other change resets.
func (t *Transformer) SetTarget(target audio.Properties) error {
	if !target.IsValid() {
		return fmt.Errorf("target %s: %w", target, ErrInvalidProperties)
	}
	if target == t.target {
		return nil
	}
	if target.Channels != t.target.Channels || target.SampleType != t.target.SampleType {
		t.Reset()
		t.target = target
		t.postType = target.SampleType
		return nil
	}
	t.target = target
	if t.conv != nil {
		t.conv.SetOutputRate(target.Frequency)
	}
	return nil
}

// Reset drops the converter and every buffered frame.
func (t *Transformer) Reset() {
	if t.conv != nil {
		t.conv.Close()
		t.conv = nil
	}
	t.preFrames = 0
	t.pre = t.pre[:0]
	t.post = t.post[:0]
	t.postType = t.target.SampleType
}

// Buffered returns the number of converted frames waiting to be served.
func (t *Transformer) Buffered() int {
	return t.postFrames()
}

// Close releases the converter.
func (t *Transformer) Close() error {
	t.Reset()
	return nil
}

// Transform fills dst with up to frames frames in the target format, reading
// src whose frames are in native format, and scales them by volume. It
// returns fewer than frames only when src is exhausted and nothing is left
// buffered.
func (t *Transformer) Transform(dst []byte, frames int, src SampleSource, native audio.Properties, volume int) (int, error) {
	if frames <= 0 {
		return 0, nil
	}
	if !audio.CanMix(native.Channels, t.target.Channels) {
		return 0, fmt.Errorf("%d to %d channels: %w", native.Channels, t.target.Channels, ErrUnsupportedChannels)
	}
	if native.SampleType.Size() == 0 {
		return 0, fmt.Errorf("native %s: %w", native, ErrInvalidProperties)
	}
	if native.Frequency <= 0 {
		native.Frequency = t.target.Frequency
	}
	if err := t.prepare(native); err != nil {
		return 0, err
	}

	done := t.drain(dst, 0, frames, volume)
	if done == frames {
		return done, nil
	}

	if t.conv == nil {
		return t.passthrough(dst, done, frames, src, native, volume)
	}

	staged := audio.Properties{Frequency: native.Frequency, Channels: t.target.Channels, SampleType: t.convType}
	for {
		if t.preFrames > 0 {
			var consumed int
			var err error
			t.post, consumed, err = t.conv.Process(t.post, t.pre, t.preFrames)
			if err != nil {
				return done, err
			}
			t.consumePre(consumed, staged.FrameSize())
		}
		done += t.drain(dst, done, frames-done, volume)
		if done == frames {
			return done, nil
		}

		need := max(t.conv.InputFrames(frames-done, t.preFrames), 1)
		n := t.pull(src, native, need)
		if n == 0 {
			if err := t.flush(); err != nil {
				return done, err
			}
			return done + t.drain(dst, done, frames-done, volume), nil
		}

		fs := staged.FrameSize()
		t.pre = grow(t.pre, (t.preFrames+n)*fs)
		if err := audio.ConvertFrames(t.pre[t.preFrames*fs:], staged, t.raw, native, n, audio.MaxVolume); err != nil {
			return done, err
		}
		t.preFrames += n
	}
}

// passthrough converts type, channels and volume in one pass when no
// resampling is needed.
func (t *Transformer) passthrough(dst []byte, done, frames int, src SampleSource, native audio.Properties, volume int) (int, error) {
	fs := t.target.FrameSize()
	for done < frames {
		n := t.pull(src, native, frames-done)
		if n == 0 {
			break
		}
		if err := audio.ConvertFrames(dst[done*fs:], t.target, t.raw, native, n, volume); err != nil {
			return done, err
		}
		done += n
	}
	return done, nil
}

// prepare makes sure the converter matches native. A converter built for a
// different native rate or type is flushed first so nothing it holds is lost.
func (t *Transformer) prepare(native audio.Properties) error {
	needConv := native.Frequency != t.target.Frequency
	key := audio.Properties{Frequency: native.Frequency, SampleType: native.SampleType}

	if t.conv != nil && (!needConv || key != t.convNative) {
		if err := t.flush(); err != nil {
			return err
		}
		t.conv.Close()
		t.conv = nil
	}
	if !needConv || t.conv != nil {
		return nil
	}

	ct := t.factory.SampleType(native.SampleType)
	conv, err := t.factory.New(resample.Config{
		InputRate:  native.Frequency,
		OutputRate: t.target.Frequency,
		Channels:   t.target.Channels,
		SampleType: ct,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s resampler: %w", t.factory.Name(), err)
	}
	t.conv = conv
	t.convNative = key
	t.convType = ct
	t.retypePost(ct)
	return nil
}

// flush pushes staged input through the converter as the end of a stream.
func (t *Transformer) flush() error {
	var err error
	t.post, err = t.conv.Flush(t.post, t.pre, t.preFrames)
	t.preFrames = 0
	t.pre = t.pre[:0]
	return err
}

func (t *Transformer) pull(src SampleSource, native audio.Properties, frames int) int {
	t.raw = grow(t.raw, native.Bytes(frames))
	n := src.RetrieveSamples(t.raw, frames)
	return max(min(n, frames), 0)
}

func (t *Transformer) consumePre(frames, fs int) {
	if frames <= 0 {
		return
	}
	frames = min(frames, t.preFrames)
	copy(t.pre, t.pre[frames*fs:t.preFrames*fs])
	t.preFrames -= frames
	t.pre = t.pre[:t.preFrames*fs]
}

func (t *Transformer) postProps() audio.Properties {
	return audio.Properties{Frequency: t.target.Frequency, Channels: t.target.Channels, SampleType: t.postType}
}

func (t *Transformer) postFrames() int {
	return len(t.post) / t.postProps().FrameSize()
}

// drain copies up to frames buffered frames into dst starting at frame off,
// applying volume on the way out.
func (t *Transformer) drain(dst []byte, off, frames, volume int) int {
	pp := t.postProps()
	n := min(t.postFrames(), frames)
	if n <= 0 {
		return 0
	}
	// channel counts match, so this cannot fail
	_ = audio.ConvertFrames(dst[off*t.target.FrameSize():], t.target, t.post, pp, n, volume)
	rest := copy(t.post, t.post[pp.Bytes(n):])
	t.post = t.post[:rest]
	return n
}

// retypePost converts buffered output to a new converter sample type.
func (t *Transformer) retypePost(st audio.SampleType) {
	if st == t.postType {
		return
	}
	from := t.postProps()
	to := audio.Properties{Frequency: from.Frequency, Channels: from.Channels, SampleType: st}
	n := t.postFrames()
	if n > 0 {
		out := make([]byte, to.Bytes(n))
		_ = audio.ConvertFrames(out, to, t.post, from, n, audio.MaxVolume)
		t.post = out
	}
	t.postType = st
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		nb := make([]byte, len(b), n)
		copy(nb, b)
		b = nb
	}
	return b[:n]
}
