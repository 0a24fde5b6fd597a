// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides the Decoder contract, shared handles and codec adapters
// Package decode defines the Decoder contract and the codec adapters that
// satisfy it.
//
// Supports: WAV, AIFF, FLAC, MP3, Ogg Vorbis, Ogg Opus and a generated
// sine tone (tone://440?duration=3s).
//
// Adapters implement the small Codec interface and are wrapped in a Stream,
// which adds locking, loop mode, seeking and channel/sample-type
// negotiation. Decoders are shared through reference-counted Handles; the
// last Release hands the decoder to a Reaper that closes it off the
// playback goroutine.
//
// Example:
//
//	src, _ := source.OpenFile("song.flac")
//	dec, err := decode.NewCodecFactory("flac", nil, decode.OpenFLAC).Create(src, decode.Metadata{}, nil, "")
//	dec.SetPlaybackProperties(audio.Properties{Frequency: 48000, Channels: 2, SampleType: audio.SampleTypeS16})
//	n := dec.Update(buf, 1024)
package decode
