// ABOUTME: Generic sink engine driving an output device
// ABOUTME: Playback goroutine with gapless decoder handover and zero-filled periods
package sink

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/transform"
)

// Config configures an Engine
type Config struct {
	// Name defaults to the device name
	Name string
	// Frequency is used when the decoder has no native rate; defaults to
	// the device's configured rate
	Frequency int
	Resampler resample.Factory
	// FollowDecoderRate reinitializes the device at the native rate of
	// every decoder passed to Start
	FollowDecoderRate bool

	Listener Listener
	// OnResourceFinished is called on the playback goroutine, without the
	// lock, each time a decoder ends. The sink releases finished afterwards.
	OnResourceFinished func(finished *decode.Handle)
}

// Engine implements Sink over an output.Device. All shared state is guarded
// by mu; the device renders outside it.
type Engine struct {
	id  string
	cfg Config
	dev output.Device

	mu        sync.Mutex
	state     State
	cur, next *decode.Handle
	props     audio.PlaybackProperties
	tr        *transform.Transformer
	quit      bool
	// stopEvent makes the playback goroutine announce its own stop
	stopEvent bool
	stopErr   error
	reinit    int
	last      string
	done      chan struct{}
}

// New creates a stopped engine rendering into dev.
func New(dev output.Device, cfg Config) *Engine {
	if cfg.Name == "" {
		cfg.Name = dev.Name()
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = dev.Properties().Frequency
	}
	if cfg.Resampler == nil {
		cfg.Resampler = resample.Linear
	}
	return &Engine{id: uuid.NewString(), cfg: cfg, dev: dev}
}

func (e *Engine) Name() string { return e.cfg.Name }

// ID returns the instance id.
func (e *Engine) ID() string { return e.id }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Properties returns the device format while started.
func (e *Engine) Properties() audio.PlaybackProperties {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.props
}

func (e *Engine) Start(cur, next *decode.Handle) error {
	// a goroutine that stopped on its own may still be exiting
	e.mu.Lock()
	if e.state == Stopped && e.done != nil {
		done := e.done
		e.mu.Unlock()
		<-done
		e.mu.Lock()
	}

	// next without current should not happen; play it as current
	if cur == nil && next != nil {
		log.Printf("Sink %s: promoting next decoder %s with no current decoder", e.cfg.Name, next.Resource())
		cur, next = next, nil
	}
	if cur == nil {
		e.mu.Unlock()
		return ErrNoDecoder
	}

	if e.quit && e.state != Stopped {
		if !e.stopEvent || e.stopErr != nil {
			e.mu.Unlock()
			return ErrStopping
		}
		// drained with nothing queued; the new pair cancels the self-stop
		e.quit, e.stopEvent = false, false
	}

	var err error
	var old []*decode.Handle
	if e.state == Stopped {
		err = e.startLocked(cur, next)
	} else {
		old, err = e.swapLocked(cur, next)
	}
	e.mu.Unlock()

	for _, h := range old {
		h.Release()
	}
	if err != nil {
		return err
	}
	e.emit(Event{Kind: EventStarted, Resource: cur.Resource()})
	return nil
}

// startLocked initializes the device and spawns the playback goroutine.
func (e *Engine) startLocked(cur, next *decode.Handle) error {
	freq := cur.DecoderProperties().Frequency
	if freq <= 0 {
		freq = e.cfg.Frequency
	}
	if !e.dev.IsInitialized() {
		if err := e.dev.Initialize(freq); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", e.dev.Name(), err)
		}
	}
	props := e.dev.Properties()

	if err := negotiate(props.Properties, cur, next); err != nil {
		e.dev.Shutdown()
		return err
	}

	if e.tr == nil {
		tr, err := transform.New(props.Properties, e.cfg.Resampler)
		if err != nil {
			e.dev.Shutdown()
			return err
		}
		e.tr = tr
	} else if err := e.tr.SetTarget(props.Properties); err != nil {
		e.dev.Shutdown()
		return err
	}
	e.tr.Reset()

	e.props = props
	e.cur, e.next = cur, next
	e.last = cur.Resource()
	e.state = Started
	e.quit, e.stopEvent, e.stopErr, e.reinit = false, false, nil, 0
	e.done = make(chan struct{})

	log.Printf("Sink %s started: %s", e.cfg.Name, props)
	go e.run(e.done)
	return nil
}

// swapLocked replaces the decoder pair of a running sink and unpauses it.
// It returns the replaced handles for release.
func (e *Engine) swapLocked(cur, next *decode.Handle) ([]*decode.Handle, error) {
	if err := negotiate(e.props.Properties, cur, next); err != nil {
		return nil, err
	}

	var old []*decode.Handle
	for _, h := range []*decode.Handle{e.cur, e.next} {
		if h != nil {
			old = append(old, h)
		}
	}
	e.cur, e.next = cur, next
	e.last = cur.Resource()
	e.tr.Reset()
	e.state = Started

	if e.cfg.FollowDecoderRate {
		if f := cur.DecoderProperties().Frequency; f > 0 && f != e.props.Frequency {
			e.reinit = f
		}
	}
	return old, nil
}

// negotiate pushes props to every decoder and checks they accept them.
func negotiate(props audio.Properties, hs ...*decode.Handle) error {
	for _, h := range hs {
		if h == nil {
			continue
		}
		h.SetPlaybackProperties(props)
		if !h.CanPlayback() {
			return fmt.Errorf("%s as %s: %w", h.Resource(), props, ErrCannotPlayback)
		}
	}
	return nil
}

// Stop ends playback, waits for the playback goroutine and shuts the
// device down.
func (e *Engine) Stop(notify bool) {
	e.mu.Lock()
	done := e.done
	wasRunning := e.state != Stopped
	if wasRunning {
		e.quit = true
		e.stopEvent = false
	}
	e.mu.Unlock()

	if done != nil {
		<-done
	}
	if !wasRunning {
		return
	}

	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	if notify {
		e.emit(Event{Kind: EventStopped, Resource: last})
	}
}

func (e *Engine) Pause(notify bool) {
	e.mu.Lock()
	if e.state != Started {
		e.mu.Unlock()
		return
	}
	e.state = Paused
	e.mu.Unlock()

	if notify {
		e.emit(Event{Kind: EventPaused})
	}
}

func (e *Engine) Resume(notify bool) {
	e.mu.Lock()
	if e.state != Paused {
		e.mu.Unlock()
		return
	}
	e.state = Started
	e.mu.Unlock()

	if notify {
		e.emit(Event{Kind: EventResumed})
	}
}

func (e *Engine) SetNext(h *decode.Handle) error {
	if h == nil {
		e.ClearNext()
		return nil
	}

	e.mu.Lock()
	if e.state == Stopped || e.quit {
		e.mu.Unlock()
		return ErrStopped
	}
	if err := negotiate(e.props.Properties, h); err != nil {
		e.mu.Unlock()
		return err
	}
	old := e.next
	e.next = h
	if e.cur == nil {
		e.cur, e.next = e.next, nil
		e.last = e.cur.Resource()
	}
	e.mu.Unlock()

	old.Release()
	return nil
}

func (e *Engine) ClearNext() {
	e.mu.Lock()
	old := e.next
	e.next = nil
	e.mu.Unlock()

	old.Release()
}

func (e *Engine) Handles() (cur, next *decode.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur.Retain(), e.next.Retain()
}

// Close stops the engine without notification.
func (e *Engine) Close() error {
	e.Stop(false)
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.cfg.Listener == nil {
		return
	}
	ev.Sink = e.cfg.Name
	e.cfg.Listener(ev)
}

// period is the result of filling one device buffer.
type period struct {
	frames   int
	exit     bool
	drained  bool
	finished []*decode.Handle
	release  []*decode.Handle
	events   []Event
}

func (e *Engine) run(done chan struct{}) {
	defer close(done)

	for {
		p := e.fill()

		for _, h := range p.finished {
			if e.cfg.OnResourceFinished != nil {
				e.cfg.OnResourceFinished(h)
			}
			h.Release()
		}
		for _, h := range p.release {
			h.Release()
		}
		if p.drained {
			// nothing was queued in time; stop after this period
			e.mu.Lock()
			if e.cur == nil && !e.quit {
				e.quit, e.stopEvent = true, true
			}
			e.mu.Unlock()
		}
		for _, ev := range p.events {
			e.emit(ev)
		}
		if p.exit {
			return
		}

		if err := e.render(p.frames); err != nil {
			log.Printf("Sink %s: render failed, stopping: %v", e.cfg.Name, err)
			e.mu.Lock()
			e.quit = true
			e.stopEvent = true
			e.stopErr = err
			e.mu.Unlock()
		}
	}
}

// render plays a period, recovering from transient underruns when the
// device can.
func (e *Engine) render(frames int) error {
	err := e.dev.Render(frames)
	if !errors.Is(err, output.ErrUnderrun) {
		return err
	}
	r, ok := e.dev.(output.Recoverer)
	if !ok {
		return err
	}
	if rerr := r.Recover(); rerr != nil {
		return fmt.Errorf("%w: recover failed: %v", err, rerr)
	}
	log.Printf("Sink %s: recovered from underrun", e.cfg.Name)
	return nil
}

// fill prepares the next device period under the lock.
func (e *Engine) fill() (p period) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.quit {
		return e.shutdownLocked()
	}
	if e.reinit > 0 {
		e.reinitLocked()
	}

	buf := e.dev.Buffer()
	frames := e.dev.BufferFrames()
	fs := e.props.FrameSize()
	off := 0

	for e.state == Started && e.cur != nil && off < frames {
		n, err := e.transform(buf[off*fs:], frames-off)
		if err != nil {
			log.Printf("Sink %s: %s: %v", e.cfg.Name, e.cur.Resource(), err)
			p.release = append(p.release, e.cur)
			p.release = append(p.release, e.next)
			e.cur, e.next = nil, nil
			e.quit, e.stopEvent, e.stopErr = true, true, err
			break
		}
		off += n
		if n > 0 {
			continue
		}

		// current decoder is exhausted; its converted tail stays in the
		// transformer and is served ahead of the next decoder
		finished := e.cur
		e.cur, e.next = e.next, nil
		p.finished = append(p.finished, finished)
		if e.cur != nil {
			e.last = e.cur.Resource()
			p.events = append(p.events, Event{Kind: EventTransition, Resource: e.cur.Resource()})
		} else {
			p.events = append(p.events, Event{Kind: EventResourceFinished, Resource: finished.Resource()})
			p.drained = true
		}
	}

	clear(buf[off*fs : frames*fs])
	p.frames = frames
	return p
}

// transform pulls from the current decoder. A panic inside a decoder ends
// the stream instead of the process.
func (e *Engine) transform(dst []byte, frames int) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("decoder panic: %v", r)
		}
	}()
	cur := e.cur
	return e.tr.Transform(dst, frames, transform.SourceFunc(cur.Update), cur.DecoderProperties(), cur.CurrentVolume())
}

func (e *Engine) reinitLocked() {
	freq := e.reinit
	e.reinit = 0
	if err := e.dev.Reinitialize(freq); err != nil {
		log.Printf("Sink %s: failed to reinitialize at %dHz: %v", e.cfg.Name, freq, err)
	}
	props := e.dev.Properties()
	if props == e.props {
		return
	}
	e.props = props
	if err := e.tr.SetTarget(props.Properties); err != nil {
		log.Printf("Sink %s: %v", e.cfg.Name, err)
	}
	for _, h := range []*decode.Handle{e.cur, e.next} {
		if h != nil {
			h.SetPlaybackProperties(props.Properties)
		}
	}
	log.Printf("Sink %s reinitialized: %s", e.cfg.Name, props)
}

// shutdownLocked tears the device down and marks the sink stopped.
func (e *Engine) shutdownLocked() period {
	p := period{exit: true}
	e.dev.Shutdown()
	e.tr.Reset()
	for _, h := range []*decode.Handle{e.cur, e.next} {
		if h != nil {
			p.release = append(p.release, h)
		}
	}
	e.cur, e.next = nil, nil
	e.state = Stopped
	if e.stopEvent {
		p.events = append(p.events, Event{Kind: EventStopped, Resource: e.last, Err: e.stopErr})
	}
	log.Printf("Sink %s stopped", e.cfg.Name)
	return p
}
