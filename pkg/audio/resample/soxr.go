// ABOUTME: High quality resampler backed by a pure Go soxr port
// ABOUTME: Wraps go-audio-resampling and works on 32-bit samples
package resample

import (
	"fmt"
	"log"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

var (
	// Soxr uses the high quality preset
	Soxr Factory = soxrFactory{name: "soxr", quality: resampling.QualitySpec{Preset: resampling.QualityHigh}}
	// SoxrQuick trades quality for CPU
	SoxrQuick Factory = soxrFactory{name: "soxr-quick", quality: resampling.QualitySpec{Preset: resampling.QualityQuick}}
)

const s32Scale = 1 << 31

type soxrFactory struct {
	name    string
	quality resampling.QualitySpec
}

func (f soxrFactory) Name() string { return f.name }

// SampleType is always s32; the filter runs in float64 internally.
func (f soxrFactory) SampleType(audio.SampleType) audio.SampleType {
	return audio.SampleTypeS32
}

func (f soxrFactory) New(cfg Config) (Converter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SampleType != audio.SampleTypeS32 {
		return nil, fmt.Errorf("soxr needs s32 input, got %s: %w", cfg.SampleType, ErrInvalidConfig)
	}
	c := &soxrConverter{cfg: cfg, quality: f.quality}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

type soxrConverter struct {
	cfg       Config
	quality   resampling.QualitySpec
	resampler resampling.Resampler
	in        []float64
	// pending holds output flushed from a retuned filter
	pending []float64
}

func (c *soxrConverter) open() error {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(c.cfg.InputRate),
		OutputRate: float64(c.cfg.OutputRate),
		Channels:   c.cfg.Channels,
		Quality:    c.quality,
	})
	if err != nil {
		return fmt.Errorf("failed to create resampler: %w", err)
	}
	c.resampler = r
	return nil
}

// InputFrames estimates from the rate ratio; the filter delay is absorbed
// by the caller asking again.
func (c *soxrConverter) InputFrames(outFrames, buffered int) int {
	if outFrames <= 0 {
		return 0
	}
	need := (int64(outFrames)*int64(c.cfg.InputRate) + int64(c.cfg.OutputRate) - 1) / int64(c.cfg.OutputRate)
	return int(max(need-int64(buffered), 0))
}

func (c *soxrConverter) Process(dst, src []byte, frames int) ([]byte, int, error) {
	if len(c.pending) > 0 {
		dst = c.appendOutput(dst, c.pending)
		c.pending = c.pending[:0]
	}
	if frames <= 0 {
		return dst, 0, nil
	}
	n := frames * c.cfg.Channels
	if cap(c.in) < n {
		c.in = make([]float64, n)
	}
	c.in = c.in[:n]
	for i := range c.in {
		c.in[i] = float64(audio.SampleValue(src, i, audio.SampleTypeS32)) / s32Scale
	}

	out, err := c.resampler.Process(c.in)
	if err != nil {
		return dst, 0, fmt.Errorf("resample error: %w", err)
	}
	return c.appendOutput(dst, out), frames, nil
}

func (c *soxrConverter) Flush(dst, src []byte, frames int) ([]byte, error) {
	dst, _, err := c.Process(dst, src, frames)
	if err != nil {
		return dst, err
	}
	tail, err := c.resampler.Flush()
	if err != nil {
		return dst, fmt.Errorf("resample flush error: %w", err)
	}
	dst = c.appendOutput(dst, tail)
	// a flushed filter cannot continue; start a fresh one
	return dst, c.open()
}

func (c *soxrConverter) appendOutput(dst []byte, out []float64) []byte {
	frames := len(out) / c.cfg.Channels
	dst, off := growFrames(dst, frames, c.cfg.Channels*4)
	buf := dst[off:]
	for i := 0; i < frames*c.cfg.Channels; i++ {
		v := math.Round(out[i] * s32Scale)
		v = math.Max(math.Min(v, math.MaxInt32), math.MinInt32)
		audio.SetSampleValue(buf, i, int32(v), audio.SampleTypeS32)
	}
	return dst
}

// SetOutputRate restarts the filter at the new rate. The old filter's
// delay line is flushed and emitted ahead of the next output. If the new
// filter cannot be created the old rate stays in effect.
func (c *soxrConverter) SetOutputRate(rate int) {
	if rate <= 0 || rate == c.cfg.OutputRate {
		return
	}
	prev, old := c.cfg.OutputRate, c.resampler
	c.cfg.OutputRate = rate
	if err := c.open(); err != nil {
		log.Printf("Resampler: keeping %dHz output: %v", prev, err)
		c.cfg.OutputRate = prev
		return
	}
	if old == nil {
		return
	}
	tail, err := old.Flush()
	if err != nil {
		log.Printf("Resampler: dropped delay line on retune: %v", err)
		return
	}
	c.pending = append(c.pending, tail...)
}

func (c *soxrConverter) Close() error {
	c.resampler = nil
	return nil
}
