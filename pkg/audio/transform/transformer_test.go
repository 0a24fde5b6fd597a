// ABOUTME: Tests for the stream transformer
// ABOUTME: Covers channel mixing, exact resampled counts, carry-over and source changes
package transform

import (
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/Resonate-Protocol/resonate-engine/internal/audiotest"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/resample"
)

// rampSource serves a RampCodec as a SampleSource.
type rampSource struct {
	codec *audiotest.RampCodec
	// maxChunk limits frames per call to exercise short reads
	maxChunk int
}

func newRampSource(props audio.Properties, frames int64, start int32) *rampSource {
	return &rampSource{codec: &audiotest.RampCodec{Props: props, Frames: frames, Start: start}}
}

func (s *rampSource) RetrieveSamples(dst []byte, frames int) int {
	if s.maxChunk > 0 {
		frames = min(frames, s.maxChunk)
	}
	n, err := s.codec.ReadFrames(dst, frames)
	if err == io.EOF {
		return 0
	}
	return n
}

var (
	mono8k   = audio.Properties{Frequency: 8000, Channels: 1, SampleType: audio.SampleTypeS16}
	stereo8k = audio.Properties{Frequency: 8000, Channels: 2, SampleType: audio.SampleTypeS16}
	mono16k  = audio.Properties{Frequency: 16000, Channels: 1, SampleType: audio.SampleTypeS16}
)

// collect runs Transform in chunks of chunk frames until it returns 0.
func collect(t *testing.T, tr *Transformer, src SampleSource, native audio.Properties, chunk int) []int32 {
	t.Helper()

	target := tr.Target()
	buf := make([]byte, target.Bytes(chunk))
	var out []int32
	for i := 0; i < 100000; i++ {
		n, err := tr.Transform(buf, chunk, src, native, audio.MaxVolume)
		if err != nil {
			t.Fatalf("transform failed: %v", err)
		}
		if n > chunk {
			t.Fatalf("returned %d frames for a request of %d", n, chunk)
		}
		out = append(out, audiotest.Values(buf[:target.Bytes(n)], target.SampleType)...)
		if n == 0 {
			return out
		}
	}
	t.Fatal("transform never reached end of stream")
	return nil
}

func TestMonoToStereo(t *testing.T) {
	tr, err := New(stereo8k, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, tr, newRampSource(mono8k, 50, 0), mono8k, 16)
	want := make([]int32, 0, 100)
	for i := int32(0); i < 50; i++ {
		want = append(want, i, i)
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestResampleDoublesRamp(t *testing.T) {
	for _, f := range []resample.Factory{resample.Nearest, resample.Linear} {
		t.Run(f.Name(), func(t *testing.T) {
			tr, err := New(mono16k, f)
			if err != nil {
				t.Fatal(err)
			}

			got := collect(t, tr, newRampSource(mono8k, 1000, 0), mono8k, 96)
			if len(got) != 2000 {
				t.Fatalf("expected exactly 2000 frames, got %d", len(got))
			}
			for i, v := range got {
				if v != int32(i/2) {
					t.Fatalf("frame %d: expected %d, got %d", i, i/2, v)
				}
			}
		})
	}
}

func TestSampleCountLaw(t *testing.T) {
	tests := []struct {
		name   string
		native audio.Properties
		target audio.Properties
	}{
		{"passthrough", stereo8k, stereo8k},
		{"upmix", mono8k, stereo8k},
		{"44100 to 48000", audio.Properties{Frequency: 44100, Channels: 2, SampleType: audio.SampleTypeS16}, audio.Properties{Frequency: 48000, Channels: 2, SampleType: audio.SampleTypeS24}},
		{"48000 to 22050 downmix", audio.Properties{Frequency: 48000, Channels: 2, SampleType: audio.SampleTypeS32}, audio.Properties{Frequency: 22050, Channels: 1, SampleType: audio.SampleTypeS16}},
	}
	requests := []int{1, 17, 256, 3, 1024, 64}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := New(tt.target, nil)
			src := newRampSource(tt.native, 5000, 0)
			src.maxChunk = 100

			buf := make([]byte, tt.target.Bytes(1024))
			short := false
			last := -1
			for i := 0; i < 1000; i++ {
				want := requests[i%len(requests)]
				n, err := tr.Transform(buf, want, src, tt.native, audio.MaxVolume)
				if err != nil {
					t.Fatal(err)
				}
				if n > want {
					t.Fatalf("got %d frames for request of %d", n, want)
				}
				if short {
					if n != 0 && n >= last {
						t.Fatalf("after exhaustion expected decreasing counts, got %d after %d", n, last)
					}
				} else if n < want {
					short = true
				}
				last = n
				if n == 0 {
					return
				}
			}
			t.Fatal("never reached end of stream")
		})
	}
}

func TestCarryOverAcrossSources(t *testing.T) {
	// two sources back to back lose nothing at the join
	target := audio.Properties{Frequency: 48000, Channels: 2, SampleType: audio.SampleTypeS16}
	native := audio.Properties{Frequency: 44100, Channels: 2, SampleType: audio.SampleTypeS16}

	joined, _ := New(target, resample.Linear)
	a := newRampSource(native, 700, 0)
	b := newRampSource(native, 500, 700)
	got := collect(t, joined, a, native, 128)
	got = append(got, collect(t, joined, b, native, 50)...)

	if joined.Buffered() != 0 {
		t.Errorf("expected nothing buffered at end, got %d", joined.Buffered())
	}

	// 700 and 500 frames each flush separately, so lengths add per source
	want := 2 * (((700*48000 + 44099) / 44100) + ((500*48000 + 44099) / 44100))
	if len(got) != want {
		t.Errorf("expected %d values, got %d", want, len(got))
	}
}

func TestCarryOverServedFirst(t *testing.T) {
	tr, _ := New(mono16k, resample.Nearest)
	src := newRampSource(mono8k, -1, 0)

	// an odd request leaves one converted frame in the carry-over buffer
	buf := make([]byte, mono16k.Bytes(64))
	n, err := tr.Transform(buf, 3, src, mono8k, audio.MaxVolume)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 frames, got %d (%v)", n, err)
	}
	if tr.Buffered() != 1 {
		t.Fatalf("expected 1 buffered frame, got %d", tr.Buffered())
	}

	n, _ = tr.Transform(buf, 1, src, mono8k, audio.MaxVolume)
	if n != 1 || audio.SampleValue(buf, 0, audio.SampleTypeS16) != 1 {
		t.Errorf("expected carried frame value 1, got %d frames value %d", n, audio.SampleValue(buf, 0, audio.SampleTypeS16))
	}
}

func TestAdaptiveFrequencySkipsResampling(t *testing.T) {
	tr, _ := New(mono16k, resample.Linear)
	adaptive := audio.Properties{Frequency: 0, Channels: 1, SampleType: audio.SampleTypeS16}

	got := collect(t, tr, newRampSource(adaptive, 100, 0), adaptive, 32)
	if !slices.Equal(got, audiotest.Ramp(0, 100)) {
		t.Errorf("expected untouched ramp, got %d values", len(got))
	}
	if tr.conv != nil {
		t.Error("expected no converter for adaptive frequency")
	}
}

func TestVolumeApplied(t *testing.T) {
	target := audio.Properties{Frequency: 8000, Channels: 1, SampleType: audio.SampleTypeS16}
	tr, _ := New(target, nil)
	src := newRampSource(target, 10, 100)

	buf := make([]byte, target.Bytes(10))
	n, err := tr.Transform(buf, 10, src, target, audio.MaxVolume/2)
	if err != nil || n != 10 {
		t.Fatalf("expected 10 frames, got %d (%v)", n, err)
	}
	got := audiotest.Values(buf, audio.SampleTypeS16)
	for i, v := range got {
		if want := int32(100+i) / 2; v != want {
			t.Errorf("frame %d: expected %d, got %d", i, want, v)
		}
	}

	tr2, _ := New(mono16k, resample.Nearest)
	n, _ = tr2.Transform(buf, 4, newRampSource(mono8k, 10, 1000), mono8k, 0)
	if n != 4 || !slices.Equal(audiotest.Values(buf[:8], audio.SampleTypeS16), []int32{0, 0, 0, 0}) {
		t.Errorf("expected silence at volume 0")
	}
}

func TestTypeConversion(t *testing.T) {
	target := audio.Properties{Frequency: 8000, Channels: 2, SampleType: audio.SampleTypeS32}
	tr, _ := New(target, nil)

	got := collect(t, tr, newRampSource(mono8k, 3, 1), mono8k, 8)
	want := []int32{1 << 16, 1 << 16, 2 << 16, 2 << 16, 3 << 16, 3 << 16}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestUnsupportedChannels(t *testing.T) {
	tr, _ := New(stereo8k, nil)
	six := audio.Properties{Frequency: 8000, Channels: 6, SampleType: audio.SampleTypeS16}

	buf := make([]byte, stereo8k.Bytes(8))
	_, err := tr.Transform(buf, 8, newRampSource(six, 8, 0), six, audio.MaxVolume)
	if !errors.Is(err, ErrUnsupportedChannels) {
		t.Errorf("expected ErrUnsupportedChannels, got %v", err)
	}
	if CanConvert(six, stereo8k) {
		t.Error("CanConvert should reject 6 to 2 channels")
	}
	if !CanConvert(mono8k, stereo8k) || !CanConvert(stereo8k, mono16k) {
		t.Error("CanConvert should accept 1<->2 channels")
	}
}

func TestNewRejectsInvalidTarget(t *testing.T) {
	if _, err := New(audio.Properties{Frequency: 0, Channels: 2, SampleType: audio.SampleTypeS16}, nil); !errors.Is(err, ErrInvalidProperties) {
		t.Errorf("expected ErrInvalidProperties, got %v", err)
	}
}

func TestSetTarget(t *testing.T) {
	tr, _ := New(mono16k, resample.Nearest)
	src := newRampSource(mono8k, -1, 0)
	buf := make([]byte, 4096)

	if n, _ := tr.Transform(buf, 3, src, mono8k, audio.MaxVolume); n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}

	// frequency-only change keeps the carry-over
	if err := tr.SetTarget(audio.Properties{Frequency: 24000, Channels: 1, SampleType: audio.SampleTypeS16}); err != nil {
		t.Fatal(err)
	}
	if tr.Buffered() != 1 {
		t.Errorf("expected carry-over kept, got %d", tr.Buffered())
	}
	if n, _ := tr.Transform(buf, 6, src, mono8k, audio.MaxVolume); n != 6 {
		t.Errorf("expected 6 frames after retune, got %d", n)
	}

	// channel change resets
	if err := tr.SetTarget(audio.Properties{Frequency: 24000, Channels: 2, SampleType: audio.SampleTypeS16}); err != nil {
		t.Fatal(err)
	}
	if tr.Buffered() != 0 || tr.conv != nil {
		t.Error("expected reset after channel change")
	}
}

func TestNativeRateChangeFlushesConverter(t *testing.T) {
	tr, _ := New(mono16k, resample.Linear)
	buf := make([]byte, mono16k.Bytes(64))

	// linear holds back the last frame until it sees the next one
	a := newRampSource(mono8k, 10, 0)
	n, _ := tr.Transform(buf, 17, a, mono8k, audio.MaxVolume)
	if n != 17 {
		t.Fatalf("expected 17 frames, got %d", n)
	}

	// switching to a source already at the target rate flushes what was held
	b := newRampSource(mono16k, 4, 100)
	got := collect(t, tr, b, mono16k, 64)
	want := []int32{8, 9, 9, 100, 101, 102, 103}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
