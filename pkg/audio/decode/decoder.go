// ABOUTME: Decoder capability contract
// ABOUTME: Interface every codec adapter implements, plus factory and event types
package decode

import (
	"time"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// InvalidPosition is returned by SetCurrentPosition for rejected seeks.
const InvalidPosition int64 = -1

// Decoder produces PCM from an audio resource. Every method is safe for
// concurrent use; Update may run on a playback goroutine while another
// goroutine queries position or volume.
type Decoder interface {
	// IsInitialized reports whether the decoder has a usable stream
	IsInitialized() bool
	// CanPlayback reports whether the decoder can emit the properties last
	// passed to SetPlaybackProperties. It implies IsInitialized.
	CanPlayback() bool

	// DecoderProperties returns the format Update writes. Frequency may
	// differ from the negotiated one; 0 means any rate.
	DecoderProperties() audio.Properties
	// SetPlaybackProperties negotiates channels and sample type. The
	// frequency may be ignored. Volume and loop state are unaffected.
	SetPlaybackProperties(props audio.Properties)

	// CurrentPosition returns the position in ticks
	CurrentPosition() int64
	// SetCurrentPosition seeks and returns the actual position, or
	// InvalidPosition without changing state if the request is rejected
	SetCurrentPosition(ticks int64) int64
	// Length returns the length in ticks or -1 if unknown
	Length() int64
	// TicksPerSecond converts ticks to seconds
	TicksPerSecond() int64

	// CurrentVolume returns the volume in [0, audio.MaxVolume]
	CurrentVolume() int
	SetCurrentVolume(volume int)

	// LoopMode returns n<0 for infinite looping, 0 for none, k>0 for k wraps
	LoopMode() int
	// SetLoopMode sets the loop mode and resets the wrap counter
	SetLoopMode(n int)

	Metadata() Metadata

	// Update writes up to frames frames into dst and returns the number
	// written. A return of 0 marks the end of the stream and repeats until
	// a successful seek.
	Update(dst []byte, frames int) int

	// Close releases the codec and its source
	Close() error
}

// Metadata describes a resource
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// EventKind identifies a decoder event
type EventKind int

const (
	// EventLooped fires when the stream wraps around in loop mode
	EventLooped EventKind = iota
	// EventError fires when the codec fails mid-stream; the stream then ends
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLooped:
		return "looped"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to a NotifyFunc outside of the decoder's lock.
type Event struct {
	Kind     EventKind
	Resource string
	Err      error
}

// NotifyFunc receives decoder events.
type NotifyFunc func(Event)

// Factory creates decoders for one family of formats.
type Factory interface {
	// Name is the decoder type used for hints and listings
	Name() string
	// Create builds a decoder reading from src. It returns an error
	// wrapping ErrUnsupportedFormat when src is not in its format; other
	// errors are hard failures. On success the decoder owns src.
	Create(src source.Source, meta Metadata, notify NotifyFunc, mimeHint string) (Decoder, error)
}
