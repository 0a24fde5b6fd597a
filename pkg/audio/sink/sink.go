// ABOUTME: Sink contract, playback states and notifications
// ABOUTME: Shared by the generic engine and the backend orchestrator
package sink

import (
	"errors"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/decode"
)

var (
	// ErrNoDecoder is returned by Start without any decoder
	ErrNoDecoder = errors.New("no decoder to play")
	// ErrCannotPlayback is returned for decoders that reject the sink format
	ErrCannotPlayback = errors.New("decoder cannot play sink format")
	// ErrStopped is returned by SetNext on a stopped sink
	ErrStopped = errors.New("sink is stopped")
	// ErrStopping is returned by Start while a Stop or a failure shutdown
	// is in progress
	ErrStopping = errors.New("sink is stopping")
)

// State is the playback state of a sink
type State int

const (
	Stopped State = iota
	Started
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// EventKind identifies a sink notification
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventPaused
	EventResumed
	// EventTransition fires when the next decoder took over gaplessly
	EventTransition
	// EventResourceFinished fires when the current decoder ended with no
	// next decoder queued
	EventResourceFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventTransition:
		return "transition"
	case EventResourceFinished:
		return "resource_finished"
	default:
		return "unknown"
	}
}

// Event is one sink notification. Resource is the resource now playing for
// started and transition, and the one that ended for stopped and
// resource_finished. Err is set when the sink stopped on a failure.
type Event struct {
	Kind     EventKind
	Sink     string
	Resource string
	Err      error
}

// Listener receives events. It is never called with a sink lock held, but
// it may run on the playback goroutine and must not call Stop or Close.
type Listener func(Event)

// Sink owns a playback goroutine and an output device.
type Sink interface {
	Name() string
	State() State
	// Start begins playing cur with next queued behind it, or swaps the pair
	// on a running sink. On success the sink owns both references; on error
	// the caller keeps them.
	Start(cur, next *decode.Handle) error
	Stop(notify bool)
	Pause(notify bool)
	Resume(notify bool)
	// SetNext queues h to follow the current decoder. The sink owns h on
	// success.
	SetNext(h *decode.Handle) error
	ClearNext()
	// Handles returns retained references the caller must release
	Handles() (cur, next *decode.Handle)
	Close() error
}
