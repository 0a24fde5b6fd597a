// ABOUTME: Tests for the generic Stream decoder
// ABOUTME: Tests negotiation, sticky end of stream, loop mode and seeking
package decode

import (
	"slices"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/resonate-engine/internal/audiotest"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

var monoS16 = audio.Properties{Frequency: 8000, Channels: 1, SampleType: audio.SampleTypeS16}

func newRampStream(frames int64) (*Stream, *audiotest.RampCodec) {
	codec := audiotest.NewRamp(8000, frames)
	s := NewStream("mem://ramp", codec, nil, Metadata{}, nil)
	s.SetPlaybackProperties(monoS16)
	return s, codec
}

// drain reads in chunks until Update returns 0 or limit frames were read.
func drain(d Decoder, chunk, limit int) []int32 {
	props := d.DecoderProperties()
	buf := make([]byte, props.Bytes(chunk))
	var out []int32
	for len(out) < limit*props.Channels {
		n := d.Update(buf, chunk)
		if n == 0 {
			break
		}
		out = append(out, audiotest.Values(buf[:props.Bytes(n)], props.SampleType)...)
	}
	return out
}

func TestStreamNegotiation(t *testing.T) {
	codec := audiotest.NewRamp(8000, 4)
	s := NewStream("mem://ramp", codec, nil, Metadata{}, nil)

	if !s.IsInitialized() {
		t.Fatal("expected initialized stream")
	}
	if s.CanPlayback() {
		t.Error("expected CanPlayback false before negotiation")
	}
	if n := s.Update(make([]byte, 64), 4); n != 0 {
		t.Errorf("expected no output before negotiation, got %d", n)
	}

	s.SetPlaybackProperties(audio.Properties{Frequency: 48000, Channels: 2, SampleType: audio.SampleTypeS32})
	if !s.CanPlayback() {
		t.Fatal("expected CanPlayback after negotiation")
	}

	props := s.DecoderProperties()
	want := audio.Properties{Frequency: 8000, Channels: 2, SampleType: audio.SampleTypeS32}
	if props != want {
		t.Fatalf("expected %s, got %s", want, props)
	}

	got := drain(s, 16, 16)
	expected := []int32{0, 0, 1 << 16, 1 << 16, 2 << 16, 2 << 16, 3 << 16, 3 << 16}
	if !slices.Equal(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	s.SetPlaybackProperties(audio.Properties{Frequency: 48000, Channels: 6, SampleType: audio.SampleTypeS16})
	if s.CanPlayback() {
		t.Error("expected CanPlayback false for 1 to 6 channels")
	}
}

func TestStreamStickyEndOfStream(t *testing.T) {
	s, _ := newRampStream(10)
	buf := make([]byte, monoS16.Bytes(4))

	for i, want := range []int{4, 4, 2, 0, 0, 0} {
		if n := s.Update(buf, 4); n != want {
			t.Fatalf("call %d: expected %d frames, got %d", i, want, n)
		}
	}

	if pos := s.SetCurrentPosition(0); pos != 0 {
		t.Fatalf("expected seek to 0, got %d", pos)
	}
	if n := s.Update(buf, 4); n != 4 {
		t.Errorf("expected playback to resume after seek, got %d", n)
	}
}

func TestStreamLoopMode(t *testing.T) {
	tests := []struct {
		name     string
		mode     int
		expected int // total frames before end of stream
	}{
		{"no loop", 0, 10},
		{"loop once", 1, 20},
		{"loop three times", 3, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newRampStream(10)
			s.SetLoopMode(tt.mode)

			got := drain(s, 3, 1000)
			if len(got) != tt.expected {
				t.Fatalf("expected %d frames, got %d", tt.expected, len(got))
			}
			for i, v := range got {
				if v != int32(i%10) {
					t.Fatalf("frame %d: expected %d, got %d", i, i%10, v)
				}
			}
			if n := s.Update(make([]byte, 8), 4); n != 0 {
				t.Errorf("expected sticky end of stream, got %d", n)
			}
		})
	}
}

func TestStreamInfiniteLoop(t *testing.T) {
	s, _ := newRampStream(7)
	s.SetLoopMode(-1)

	if got := drain(s, 5, 700); len(got) != 700 {
		t.Fatalf("expected infinite loop to keep producing, got %d frames", len(got))
	}

	s.SetLoopMode(0)
	rest := drain(s, 5, 100)
	if len(rest) >= 7 {
		t.Errorf("expected stream to end within one pass, got %d frames", len(rest))
	}
	if n := s.Update(make([]byte, 8), 4); n != 0 {
		t.Errorf("expected end of stream after disabling loop, got %d", n)
	}
}

func TestStreamSetLoopModeResetsCounter(t *testing.T) {
	s, _ := newRampStream(4)
	s.SetLoopMode(1)

	// consume the single wrap
	if got := drain(s, 2, 6); len(got) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(got))
	}

	s.SetLoopMode(1)
	// 2 frames left in this pass plus one fresh wrap of 4
	if got := drain(s, 2, 100); len(got) != 6 {
		t.Errorf("expected 6 more frames after resetting the loop counter, got %d", len(got))
	}
}

func TestStreamSetCurrentPosition(t *testing.T) {
	s, _ := newRampStream(10)

	tests := []struct {
		name     string
		ticks    int64
		expected int64
	}{
		{"middle", 5, 5},
		{"end", 10, 10},
		{"past end", 11, InvalidPosition},
		{"negative", -1, InvalidPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.CurrentPosition()
			got := s.SetCurrentPosition(tt.ticks)
			if got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
			if got == InvalidPosition && s.CurrentPosition() != before {
				t.Errorf("rejected seek moved position from %d to %d", before, s.CurrentPosition())
			}
		})
	}

	s.SetCurrentPosition(7)
	if got := drain(s, 8, 8); !slices.Equal(got, []int32{7, 8, 9}) {
		t.Errorf("expected [7 8 9] after seek, got %v", got)
	}
	if s.TicksPerSecond() != 8000 {
		t.Errorf("expected 8000 ticks per second, got %d", s.TicksPerSecond())
	}
}

func TestStreamVolumeClamp(t *testing.T) {
	s, _ := newRampStream(1)

	if s.CurrentVolume() != audio.MaxVolume {
		t.Errorf("expected unity default volume, got %d", s.CurrentVolume())
	}
	s.SetCurrentVolume(-10)
	if s.CurrentVolume() != 0 {
		t.Errorf("expected clamp to 0, got %d", s.CurrentVolume())
	}
	s.SetCurrentVolume(audio.MaxVolume * 3)
	if s.CurrentVolume() != audio.MaxVolume {
		t.Errorf("expected clamp to max, got %d", s.CurrentVolume())
	}
}

func TestStreamLoopEvents(t *testing.T) {
	var events []Event
	codec := audiotest.NewRamp(8000, 3)
	s := NewStream("mem://ramp", codec, nil, Metadata{}, func(ev Event) {
		events = append(events, ev)
	})
	s.SetPlaybackProperties(monoS16)
	s.SetLoopMode(2)

	drain(s, 4, 100)

	if len(events) != 2 {
		t.Fatalf("expected 2 loop events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Kind != EventLooped || ev.Resource != "mem://ramp" {
			t.Errorf("unexpected event %+v", ev)
		}
	}
}

func TestStreamConcurrentAccess(t *testing.T) {
	s, _ := newRampStream(-1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		buf := make([]byte, monoS16.Bytes(64))
		for i := 0; i < 200; i++ {
			s.Update(buf, 64)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.SetCurrentVolume(i)
			_ = s.CurrentPosition()
			_ = s.Metadata()
			s.SetCurrentPosition(int64(i))
		}
	}()
	wg.Wait()
}

func TestStreamClose(t *testing.T) {
	s, codec := newRampStream(10)

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !codec.Closed {
		t.Error("expected codec to be closed")
	}
	if s.IsInitialized() || s.CanPlayback() {
		t.Error("expected closed stream to be unusable")
	}
	if n := s.Update(make([]byte, 8), 4); n != 0 {
		t.Errorf("expected no output after close, got %d", n)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}
