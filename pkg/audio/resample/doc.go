// ABOUTME: Audio resampling package with pluggable converters
// ABOUTME: Integer nearest/linear converters and a soxr-quality converter
// Package resample provides the frequency converters used by the stream
// transformer.
//
// Nearest and Linear are exact integer converters: N input frames at rate a
// always become ceil(N*b/a) frames at rate b, independent of how the input
// is split across calls. Soxr wraps a pure Go port of libsoxr for high
// quality conversion.
//
// Example:
//
//	conv, err := resample.Linear.New(resample.Config{InputRate: 44100, OutputRate: 48000, Channels: 2, SampleType: audio.SampleTypeS16})
//	out, consumed, err := conv.Process(nil, in, frames)
package resample
