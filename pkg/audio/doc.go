// ABOUTME: Audio fundamentals package providing the sample model
// ABOUTME: Defines sample types, format descriptors and conversion primitives
// Package audio provides the sample model shared by every part of the engine.
//
// The package defines:
//   - SampleType: the byte encoding of a sample value (s16, s24, s24_32, s32)
//   - Properties: frequency, channel count and sample type of a PCM stream
//   - PlaybackProperties: Properties plus the device period in frames
//
// SampleValue, SetSampleValue and ConvertSample are the only functions that
// know about byte layout. Everything else counts in samples or frames.
//
// Example:
//
//	props := audio.Properties{Frequency: 48000, Channels: 2, SampleType: audio.SampleTypeS16}
//	buf := make([]byte, props.Bytes(1024))
//	audio.SetSampleValue(buf, 0, audio.ConvertSample(v32, audio.SampleTypeS32, audio.SampleTypeS16), audio.SampleTypeS16)
package audio
