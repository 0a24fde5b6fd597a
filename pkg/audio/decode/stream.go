// ABOUTME: Generic decoder built on a native PCM codec
// ABOUTME: Handles locking, looping, seeking, volume and format negotiation
package decode

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

// Codec reads native PCM frames from an encoded stream. Codecs are not
// safe for concurrent use; Stream serializes access.
type Codec interface {
	// Properties returns the native format written by ReadFrames
	Properties() audio.Properties
	// ReadFrames decodes up to frames frames into dst and returns io.EOF
	// once the stream is exhausted
	ReadFrames(dst []byte, frames int) (int, error)
	// SeekFrame repositions to frame and returns the frame actually reached
	SeekFrame(frame int64) (int64, error)
	// Length returns the total number of frames or -1
	Length() int64
	Close() error
}

// MetadataReader is implemented by codecs that carry tags.
type MetadataReader interface {
	Metadata() Metadata
}

// Stream implements Decoder on top of a Codec.
type Stream struct {
	mu sync.Mutex

	uri    string
	codec  Codec
	src    io.Closer
	notify NotifyFunc
	meta   Metadata

	native audio.Properties
	out    audio.Properties
	ready  bool
	closed bool

	pos       int64
	ended     bool
	volume    int
	loopMode  int
	loopsLeft int

	scratch []byte
}

// NewStream wraps codec. src is closed together with the codec and may be nil.
func NewStream(uri string, codec Codec, src io.Closer, meta Metadata, notify NotifyFunc) *Stream {
	s := &Stream{
		uri:    uri,
		codec:  codec,
		src:    src,
		notify: notify,
		meta:   meta,
		native: codec.Properties(),
		volume: audio.MaxVolume,
	}
	if mr, ok := codec.(MetadataReader); ok {
		s.meta = mergeMetadata(meta, mr.Metadata())
	}
	if s.meta.Duration == 0 && s.native.Frequency > 0 {
		if n := codec.Length(); n > 0 {
			s.meta.Duration = framesToDuration(n, s.native.Frequency)
		}
	}
	return s
}

func (s *Stream) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Stream) CanPlayback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.ready
}

func (s *Stream) DecoderProperties() audio.Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted()
}

// emitted returns the format Update writes. Caller holds mu.
func (s *Stream) emitted() audio.Properties {
	if !s.ready {
		return s.native
	}
	return audio.Properties{
		Frequency:  s.native.Frequency,
		Channels:   s.out.Channels,
		SampleType: s.out.SampleType,
	}
}

func (s *Stream) SetPlaybackProperties(props audio.Properties) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out = props
	if ra, ok := s.codec.(RateAdapter); ok && s.native.Frequency == 0 && props.Frequency > 0 {
		ra.SetRate(props.Frequency)
	}
	s.ready = props.SampleType != audio.SampleTypeUnknown &&
		s.native.SampleType != audio.SampleTypeUnknown &&
		audio.CanMix(s.native.Channels, props.Channels)
	if !s.ready {
		log.Printf("Decoder %s cannot play %s as %s", s.uri, s.native, props)
	}
}

func (s *Stream) CurrentPosition() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Stream) SetCurrentPosition(ticks int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ticks < 0 {
		return InvalidPosition
	}
	if length := s.codec.Length(); length >= 0 && ticks > length {
		return InvalidPosition
	}

	actual, err := s.codec.SeekFrame(ticks)
	if err != nil {
		log.Printf("Decoder %s: seek to %d failed: %v", s.uri, ticks, err)
		return InvalidPosition
	}
	s.pos = actual
	s.ended = false
	return actual
}

func (s *Stream) Length() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1
	}
	return s.codec.Length()
}

// TicksPerSecond is the native frame rate, or the negotiated rate for
// codecs that adapt to any frequency.
func (s *Stream) TicksPerSecond() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.native.Frequency > 0 {
		return int64(s.native.Frequency)
	}
	return int64(s.out.Frequency)
}

func (s *Stream) CurrentVolume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Stream) SetCurrentVolume(volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = min(max(volume, 0), audio.MaxVolume)
}

func (s *Stream) LoopMode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopMode
}

func (s *Stream) SetLoopMode(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopMode = n
	s.loopsLeft = n
}

func (s *Stream) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

func (s *Stream) Update(dst []byte, frames int) int {
	n, events := s.update(dst, frames)
	if s.notify != nil {
		for _, ev := range events {
			s.notify(ev)
		}
	}
	return n
}

func (s *Stream) update(dst []byte, frames int) (int, []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.ended || !s.ready || frames <= 0 {
		return 0, nil
	}

	var events []Event
	out := s.emitted()
	done := 0
	// a wrap that yields nothing means the stream is empty
	wrapped := false

	for done < frames {
		want := frames - done
		if need := s.native.Bytes(want); len(s.scratch) < need {
			s.scratch = make([]byte, need)
		}

		n, err := s.codec.ReadFrames(s.scratch, want)
		n = min(n, want)
		if n > 0 {
			if cerr := audio.ConvertFrames(dst[out.Bytes(done):], out, s.scratch, s.native, n, audio.MaxVolume); cerr != nil {
				events = append(events, Event{Kind: EventError, Resource: s.uri, Err: cerr})
				s.ended = true
				break
			}
			done += n
			s.pos += int64(n)
			wrapped = false
			continue
		}

		if err != nil && !errors.Is(err, io.EOF) {
			log.Printf("Decoder %s: %v", s.uri, err)
			events = append(events, Event{Kind: EventError, Resource: s.uri, Err: err})
			s.ended = true
			break
		}
		if wrapped || !s.wrap() {
			s.ended = true
			break
		}
		wrapped = true
		events = append(events, Event{Kind: EventLooped, Resource: s.uri})
	}

	return done, events
}

// wrap rewinds for the next loop iteration. Caller holds mu.
func (s *Stream) wrap() bool {
	if s.loopMode == 0 || (s.loopMode > 0 && s.loopsLeft == 0) {
		return false
	}
	if _, err := s.codec.SeekFrame(0); err != nil {
		log.Printf("Decoder %s: cannot rewind for loop: %v", s.uri, err)
		return false
	}
	if s.loopMode > 0 {
		s.loopsLeft--
	}
	s.pos = 0
	return true
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.codec.Close()
	if s.src != nil {
		if serr := s.src.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close decoder %s: %w", s.uri, err)
	}
	return nil
}

func mergeMetadata(base, tags Metadata) Metadata {
	if tags.Title != "" {
		base.Title = tags.Title
	}
	if tags.Artist != "" {
		base.Artist = tags.Artist
	}
	if tags.Album != "" {
		base.Album = tags.Album
	}
	if tags.Duration != 0 {
		base.Duration = tags.Duration
	}
	return base
}
