// ABOUTME: Tests for codec adapters and factory probing
// ABOUTME: Tests WAV decoding through go-audio, magic-byte rejection and the tone generator
package decode

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-engine/internal/audiotest"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// writeRampWAV writes frames frames of a 16-bit ramp to a temporary file.
func writeRampWAV(t *testing.T, rate, channels, frames int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ramp.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := make([]int, frames*channels)
	for i := range data {
		data[i] = i / channels
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize wav: %v", err)
	}
	return path
}

func TestWAVDecoder(t *testing.T) {
	path := writeRampWAV(t, 8000, 1, 1000)
	src, err := source.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}

	dec, err := NewCodecFactory("wav", nil, OpenWAV).Create(src, Metadata{}, nil, "audio/wav")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer dec.Close()

	if props := dec.DecoderProperties(); props != monoS16 {
		t.Fatalf("expected native %s, got %s", monoS16, props)
	}
	if dec.Metadata().Title != "ramp" {
		t.Errorf("expected title from file name, got %q", dec.Metadata().Title)
	}

	dec.SetPlaybackProperties(monoS16)
	got := drain(dec, 256, 2000)
	if !slices.Equal(got, audiotest.Ramp(0, 1000)) {
		t.Fatalf("decoded samples differ from ramp (got %d samples)", len(got))
	}

	if pos := dec.SetCurrentPosition(500); pos != 500 {
		t.Fatalf("expected seek to 500, got %d", pos)
	}
	if got := drain(dec, 4, 4); !slices.Equal(got, []int32{500, 501, 502, 503}) {
		t.Errorf("expected ramp from 500 after seek, got %v", got)
	}
}

func TestWAVDecoderStereoToMono(t *testing.T) {
	path := writeRampWAV(t, 44100, 2, 64)
	src, err := source.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}

	dec, err := NewCodecFactory("wav", nil, OpenWAV).Create(src, Metadata{}, nil, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer dec.Close()

	dec.SetPlaybackProperties(audio.Properties{Frequency: 44100, Channels: 1, SampleType: audio.SampleTypeS16})
	if got := drain(dec, 64, 64); !slices.Equal(got, audiotest.Ramp(0, 64)) {
		t.Errorf("expected averaged ramp, got %v", got)
	}
}

func TestPCMLengthCountsOnlyAudioFrames(t *testing.T) {
	writeRampAIFF := func(t *testing.T, rate, frames int) string {
		path := filepath.Join(t.TempDir(), "ramp.aiff")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		enc := aiff.NewEncoder(f, rate, 16, 1)
		buf := &goaudio.IntBuffer{
			Data:           rampInts(frames),
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
			SourceBitDepth: 16,
		}
		if err := enc.Write(buf); err != nil {
			t.Fatalf("failed to write aiff: %v", err)
		}
		if err := enc.Close(); err != nil {
			t.Fatalf("failed to finalize aiff: %v", err)
		}
		return path
	}

	tests := []struct {
		name   string
		frames int
		write  func(t *testing.T) string
		open   OpenFunc
	}{
		{"wav short", 100, func(t *testing.T) string { return writeRampWAV(t, 8000, 1, 100) }, OpenWAV},
		{"wav stereo", 80000, func(t *testing.T) string { return writeRampWAV(t, 8000, 2, 80000) }, OpenWAV},
		{"aiff", 4000, func(t *testing.T) string { return writeRampAIFF(t, 8000, 4000) }, OpenAIFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := source.OpenFile(tt.write(t))
			if err != nil {
				t.Fatal(err)
			}
			dec, err := NewCodecFactory(tt.name, nil, tt.open).Create(src, Metadata{}, nil, "")
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			defer dec.Close()

			if got := dec.Length(); got != int64(tt.frames) {
				t.Errorf("expected length %d, got %d", tt.frames, got)
			}
			want := time.Duration(tt.frames) * time.Second / 8000
			if got := dec.Metadata().Duration; got != want {
				t.Errorf("expected duration %s, got %s", want, got)
			}
		})
	}

	// seeking to the end lands exactly on the last frame boundary
	src, err := source.OpenFile(writeRampWAV(t, 8000, 1, 100))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewCodecFactory("wav", nil, OpenWAV).Create(src, Metadata{}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	dec.SetPlaybackProperties(monoS16)
	if pos := dec.SetCurrentPosition(dec.Length()); pos != 100 {
		t.Errorf("expected seek to 100, got %d", pos)
	}
	if n := dec.Update(make([]byte, 64), 32); n != 0 {
		t.Errorf("expected end of stream after seeking to the end, got %d frames", n)
	}
}

func rampInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestFactoriesRejectForeignFormats(t *testing.T) {
	garbage := []byte("this is definitely not audio, just text padding it out to size....................................................................")

	for _, f := range Builtin() {
		t.Run(f.Name(), func(t *testing.T) {
			src := source.NewMemorySource("mem://garbage", garbage)
			_, err := f.Create(src, Metadata{}, nil, "")
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestProbingPicksWAV(t *testing.T) {
	path := writeRampWAV(t, 8000, 1, 16)
	src, err := source.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	var accepted []string
	for _, f := range Builtin() {
		if err := src.Reset(); err != nil {
			t.Fatal(err)
		}
		dec, err := f.Create(src, Metadata{}, nil, "")
		if err != nil {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("%s: unexpected hard failure: %v", f.Name(), err)
			}
			continue
		}
		accepted = append(accepted, f.Name())
		_ = dec
	}

	if !slices.Equal(accepted, []string{"wav"}) {
		t.Errorf("expected only wav to accept, got %v", accepted)
	}
}

func TestCodecFactoryMIMEHint(t *testing.T) {
	f := NewCodecFactory("mp3", []string{"audio/mpeg"}, OpenMP3)

	tests := []struct {
		hint   string
		accept bool
	}{
		{"", true},
		{"application/octet-stream", true},
		{"audio/mpeg", true},
		{"Audio/MPEG; charset=binary", true},
		{"audio/flac", false},
	}
	for _, tt := range tests {
		if got := f.Accepts(tt.hint); got != tt.accept {
			t.Errorf("hint %q: expected %v, got %v", tt.hint, tt.accept, got)
		}
	}

	src := source.NewMemorySource("mem://x", []byte("ID3"))
	if _, err := f.Create(src, Metadata{}, nil, "audio/flac"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected hint mismatch to be unsupported, got %v", err)
	}
}

func TestToneDecoder(t *testing.T) {
	src := source.NewMemorySource("tone://1000?duration=10ms", nil)
	dec, err := ToneFactory{}.Create(src, Metadata{}, nil, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer dec.Close()

	if dec.DecoderProperties().Frequency != 0 {
		t.Errorf("expected adaptive frequency 0, got %d", dec.DecoderProperties().Frequency)
	}

	dec.SetPlaybackProperties(audio.Properties{Frequency: 8000, Channels: 2, SampleType: audio.SampleTypeS16})
	if dec.TicksPerSecond() != 8000 {
		t.Errorf("expected 8000 ticks per second, got %d", dec.TicksPerSecond())
	}
	if dec.Length() != 80 {
		t.Errorf("expected 80 frames, got %d", dec.Length())
	}

	got := drain(dec, 32, 1000)
	if len(got) != 160 {
		t.Fatalf("expected 80 stereo frames, got %d values", len(got))
	}
	for i := 0; i < len(got); i += 2 {
		if got[i] != got[i+1] {
			t.Fatalf("frame %d: channels differ", i/2)
		}
	}
	if dec.Metadata().Artist != "Resonate" {
		t.Errorf("unexpected metadata %+v", dec.Metadata())
	}

	if _, err := (ToneFactory{}).Create(source.NewMemorySource("mem://x", nil), Metadata{}, nil, ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected non-tone uri to be rejected, got %v", err)
	}
}

func TestParseToneURI(t *testing.T) {
	tests := []struct {
		uri     string
		pitch   float64
		wantErr bool
	}{
		{"tone://440", 440, false},
		{"tone://", 440, false},
		{"tone://261.6?duration=2s", 261.6, false},
		{"tone://abc", 0, true},
		{"tone://440?duration=forever", 0, true},
	}
	for _, tt := range tests {
		pitch, _, err := ParseToneURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error %v", tt.uri, err)
			continue
		}
		if !tt.wantErr && pitch != tt.pitch {
			t.Errorf("%s: expected pitch %g, got %g", tt.uri, tt.pitch, pitch)
		}
	}
}
