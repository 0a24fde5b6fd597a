// ABOUTME: Audio output tests
// ABOUTME: Verifies the ring buffer, registry and the wav and null backends
package output

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

func TestBackendsImplementDevice(t *testing.T) {
	var _ Device = (*Oto)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*WAVFile)(nil)
	var _ Device = (*Null)(nil)
	var _ Recoverer = (*Malgo)(nil)
}

func TestLookup(t *testing.T) {
	if !slices.Equal(Names(), []string{"malgo", "null", "oto", "wav"}) {
		t.Errorf("unexpected backends %v", Names())
	}
	if _, err := Lookup("NULL"); err != nil {
		t.Errorf("expected case-insensitive lookup, got %v", err)
	}
	if _, err := Lookup("alsa"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(8)

	if n, err := rb.Write([]byte{1, 2, 3, 4, 5, 6}); n != 6 || err != nil {
		t.Fatalf("write: %d %v", n, err)
	}
	out := make([]byte, 4)
	rb.Read(out)
	if !slices.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected read %v", out)
	}

	rb.Write([]byte{7, 8, 9, 10, 11, 12})
	if rb.Available() != 8 || rb.Free() != 0 {
		t.Fatalf("expected full buffer, available %d free %d", rb.Available(), rb.Free())
	}

	out = make([]byte, 10)
	if n := rb.Read(out); n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}
	if !slices.Equal(out, []byte{5, 6, 7, 8, 9, 10, 11, 12, 0, 0}) {
		t.Errorf("unexpected read %v", out)
	}
	if !rb.TakeUnderrun() {
		t.Error("short read after data should be an underrun")
	}
	if rb.TakeUnderrun() {
		t.Error("underrun flag should clear")
	}
}

func TestRingBufferNoUnderrunBeforeData(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Read(make([]byte, 4))
	if rb.TakeUnderrun() {
		t.Error("silence before the first write is not an underrun")
	}
}

func TestRingBufferWriteBlocksUntilRead(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{1, 2, 3, 4})

	done := make(chan error, 1)
	go func() {
		_, err := rb.Write([]byte{5, 6})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("write should block on a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	rb.Read(make([]byte, 2))
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("write did not resume after read")
	}
}

func TestRingBufferCloseWakesWriter(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Write([]byte{1, 2})

	done := make(chan error, 1)
	go func() {
		_, err := rb.Write([]byte{3})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	rb.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrDeviceClosed) {
			t.Errorf("expected ErrDeviceClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake writer")
	}
}

func TestNullDevice(t *testing.T) {
	dev, err := NewNull(Config{BufferFrames: 256})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Render(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if err := dev.Initialize(44100); err != nil {
		t.Fatal(err)
	}
	props := dev.Properties()
	want := audio.PlaybackProperties{
		Properties: audio.Properties{Frequency: 44100, Channels: 2, SampleType: audio.SampleTypeS16},
		BufferSize: 256,
	}
	if props != want {
		t.Errorf("expected %s, got %s", want, props)
	}
	if len(dev.Buffer()) != 256*4 {
		t.Errorf("expected 1024 byte buffer, got %d", len(dev.Buffer()))
	}

	dev.Render(256)
	dev.Render(10)
	if got := dev.(*Null).Rendered(); got != 266 {
		t.Errorf("expected 266 rendered frames, got %d", got)
	}
}

func TestWAVFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.wav")
	dev, err := NewWAVFile(Config{Channels: 1, SampleType: audio.SampleTypeS16, BufferFrames: 4, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Initialize(8000); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		buf := dev.Buffer()
		for j := 0; j < 4; j++ {
			audio.SetSampleValue(buf, j, int32(i*4+j), audio.SampleTypeS16)
		}
		if err := dev.Render(4); err != nil {
			t.Fatalf("render failed: %v", err)
		}
	}
	dev.Shutdown()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to read back wav: %v", err)
	}
	if dec.SampleRate != 8000 || dec.NumChans != 1 {
		t.Errorf("unexpected format %dHz/%dch", dec.SampleRate, dec.NumChans)
	}
	want := make([]int, 12)
	for i := range want {
		want[i] = i
	}
	if !slices.Equal(buf.Data, want) {
		t.Errorf("expected %v, got %v", want, buf.Data)
	}
}

func TestWAVFileSegmentsOnRateChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	dev, _ := NewWAVFile(Config{Path: path})
	w := dev.(*WAVFile)

	if err := w.Initialize(44100); err != nil {
		t.Fatal(err)
	}
	if err := w.Reinitialize(44100); err != nil || w.Path() != path {
		t.Fatalf("same rate should keep the file, got %s (%v)", w.Path(), err)
	}
	if err := w.Reinitialize(48000); err != nil {
		t.Fatal(err)
	}
	w.Shutdown()

	if filepath.Base(w.Path()) != "out-2.wav" {
		t.Errorf("expected second segment, got %s", w.Path())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("first segment missing: %v", err)
	}
}
