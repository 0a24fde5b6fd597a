// ABOUTME: Backend orchestrator tying sources, decoders and sinks together
// ABOUTME: Registries, decoder resolution, playback commands and sink handover
package backend

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/sink"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

var (
	// ErrNoDecoder is returned when no registered decoder accepts a resource
	ErrNoDecoder = errors.New("no decoder for resource")
	// ErrUnknownSink is returned for unregistered sink names
	ErrUnknownSink = errors.New("unknown sink")
	// ErrUnknownScheme is returned for URIs without a source factory
	ErrUnknownScheme = errors.New("unknown source scheme")
	// ErrNotPlaying is returned by commands that need an active sink
	ErrNotPlaying = errors.New("nothing is playing")
)

// genericMIME is what the sniffer reports for unrecognized binary data
const genericMIME = "application/octet-stream"

// SinkFactory creates a sink wired to the backend's notification hooks.
// name is the name the factory was registered under; the sink reports it
// in its events.
type SinkFactory func(name string, listener sink.Listener, onFinished func(*decode.Handle)) (sink.Sink, error)

// NextResourceFunc returns the resource to queue after current, if any.
type NextResourceFunc func(current string) (uri, hint string, ok bool)

// Config configures a Backend
type Config struct {
	// Volume seeds every new decoder, in [0, audio.MaxVolume]
	Volume   int
	LoopMode int
	// Sink is the sink used until SwitchSink; defaults to the first
	// registered sink
	Sink string

	Listener     sink.Listener
	NextResource NextResourceFunc
	// OnDecoderEvent receives loop and error events from decoders
	OnDecoderEvent decode.NotifyFunc
}

// DefaultConfig returns full volume, no looping.
func DefaultConfig() Config {
	return Config{Volume: audio.MaxVolume}
}

// Backend resolves resources to decoders and drives the active sink.
type Backend struct {
	cfg Config

	mu        sync.Mutex
	sources   map[string]source.Factory
	decoders  []decode.Factory
	sinks     map[string]SinkFactory
	sinkOrder []string
	sinkName  string
	active    sink.Sink
	volume    int
	loopMode  int

	sniffer *Sniffer
	reaper  *decode.Reaper
	memory  *source.MemoryStore
	// pending tracks background queueing started on transitions
	pending sync.WaitGroup
}

// New creates a backend with empty registries. Use RegisterDefaults for
// the bundled sources, decoders and devices.
func New(cfg Config) *Backend {
	if cfg.Volume < 0 || cfg.Volume > audio.MaxVolume {
		cfg.Volume = audio.MaxVolume
	}
	return &Backend{
		cfg:      cfg,
		sources:  make(map[string]source.Factory),
		sinks:    make(map[string]SinkFactory),
		sinkName: cfg.Sink,
		volume:   cfg.Volume,
		loopMode: cfg.LoopMode,
		sniffer:  NewSniffer(),
		reaper:   decode.NewReaper(),
		memory:   source.NewMemoryStore(),
	}
}

// Memory returns the store behind mem:// URIs.
func (b *Backend) Memory() *source.MemoryStore { return b.memory }

// RegisterSource makes f open URIs with scheme.
func (b *Backend) RegisterSource(scheme string, f source.Factory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[scheme] = f
}

// RegisterDecoder appends f to the probing order.
func (b *Backend) RegisterDecoder(f decode.Factory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decoders = append(b.decoders, f)
}

// RegisterSink adds a sink implementation under name.
func (b *Backend) RegisterSink(name string, f SinkFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sinks[name]; !ok {
		b.sinkOrder = append(b.sinkOrder, name)
	}
	b.sinks[name] = f
	if b.sinkName == "" {
		b.sinkName = name
	}
}

// Decoders lists decoder names in probing order.
func (b *Backend) Decoders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.decoders))
	for i, f := range b.decoders {
		names[i] = f.Name()
	}
	return names
}

// Sinks lists sink names in registration order.
func (b *Backend) Sinks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sinkOrder...)
}

// Sources lists the registered URI schemes.
func (b *Backend) Sources() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	schemes := make([]string, 0, len(b.sources))
	for s := range b.sources {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// OpenDecoder builds a decoder for uri. hint names a decoder to try first.
// The decoder is seeded with the current volume and loop mode.
func (b *Backend) OpenDecoder(uri, hint string) (*decode.Handle, error) {
	b.mu.Lock()
	sf, ok := b.sources[source.Scheme(uri)]
	decoders := append([]decode.Factory(nil), b.decoders...)
	volume, loop := b.volume, b.loopMode
	b.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", source.Scheme(uri), ErrUnknownScheme)
	}
	src, err := sf.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}

	mime, err := b.sniffer.Sniff(src)
	if err != nil {
		log.Printf("Failed to sniff %s: %v", uri, err)
	}

	dec, err := b.probe(src, decoders, hint, mime)
	if errors.Is(err, ErrNoDecoder) && mime != "" && mime != genericMIME {
		// the sniffer can be wrong; let the decoders judge on content alone
		dec, err = b.probe(src, decoders, hint, "")
	}
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%s (%s): %w", uri, mime, err)
	}

	dec.SetCurrentVolume(volume)
	dec.SetLoopMode(loop)
	return decode.NewHandle(dec, uri, b.reaper), nil
}

// probe tries the hinted factory first, then every factory in registration
// order, rewinding src before each attempt.
func (b *Backend) probe(src source.Source, decoders []decode.Factory, hint, mime string) (decode.Decoder, error) {
	ordered := make([]decode.Factory, 0, len(decoders))
	for _, f := range decoders {
		if hint != "" && f.Name() == hint {
			ordered = append([]decode.Factory{f}, ordered...)
			continue
		}
		ordered = append(ordered, f)
	}

	for _, f := range ordered {
		if err := src.Reset(); err != nil {
			return nil, fmt.Errorf("failed to rewind %s: %w", src.URI(), err)
		}
		dec, err := f.Create(src, decode.Metadata{}, b.cfg.OnDecoderEvent, mime)
		if err == nil {
			log.Printf("Opened %s with %s decoder", src.URI(), f.Name())
			return dec, nil
		}
		if !errors.Is(err, decode.ErrUnsupportedFormat) {
			log.Printf("Decoder %s failed on %s: %v", f.Name(), src.URI(), err)
		}
	}
	return nil, ErrNoDecoder
}

// currentSink returns the active sink, creating the selected one if needed.
func (b *Backend) currentSink() (sink.Sink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active != nil {
		return b.active, nil
	}
	s, err := b.createSinkLocked(b.sinkName)
	if err != nil {
		return nil, err
	}
	b.active = s
	return s, nil
}

func (b *Backend) createSinkLocked(name string) (sink.Sink, error) {
	f, ok := b.sinks[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSink)
	}
	var s sink.Sink
	s, err := f(name, b.cfg.Listener, func(h *decode.Handle) { b.resourceFinished(s, h) })
	if err != nil {
		return nil, fmt.Errorf("failed to create sink %s: %w", name, err)
	}
	return s, nil
}

// playing returns the active sink if it is not stopped.
func (b *Backend) playing() (sink.Sink, error) {
	b.mu.Lock()
	s := b.active
	b.mu.Unlock()
	if s == nil || s.State() == sink.Stopped {
		return nil, ErrNotPlaying
	}
	return s, nil
}

// Play starts uri on the active sink, replacing whatever plays, and queues
// the following resource from the NextResource provider.
func (b *Backend) Play(uri, hint string) error {
	h, err := b.OpenDecoder(uri, hint)
	if err != nil {
		return err
	}
	s, err := b.currentSink()
	if err != nil {
		h.Release()
		return err
	}
	if err := s.Start(h, nil); err != nil {
		h.Release()
		return err
	}
	b.queueNext(s, uri)
	return nil
}

// resourceFinished runs on the playback goroutine of s when a decoder ends.
// If the queued decoder already took over, the provider is asked for the
// one after it.
func (b *Backend) resourceFinished(s sink.Sink, finished *decode.Handle) {
	cur, next := s.Handles()
	defer cur.Release()
	defer next.Release()
	if next != nil {
		return
	}
	if cur == nil {
		// drained: the sink stops unless something is queued right now
		b.queueNext(s, finished.Resource())
		return
	}

	// the queued decoder is playing; opening the following one may
	// download, so it must not hold up the playback goroutine
	after := cur.Resource()
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		b.queueAfter(after)
	}()
}

// queueAfter opens the resource following current and queues it on the
// active sink, provided current is still playing there with nothing
// queued behind it.
func (b *Backend) queueAfter(current string) {
	if b.cfg.NextResource == nil {
		return
	}
	uri, hint, ok := b.cfg.NextResource(current)
	if !ok {
		return
	}
	h, err := b.OpenDecoder(uri, hint)
	if err != nil {
		log.Printf("Failed to queue %s: %v", uri, err)
		return
	}

	b.mu.Lock()
	s := b.active
	b.mu.Unlock()
	if s == nil {
		h.Release()
		return
	}
	cur, next := s.Handles()
	stale := cur == nil || cur.Resource() != current || next != nil
	cur.Release()
	next.Release()
	if stale {
		log.Printf("Dropping %s: %s is no longer the last queued resource", uri, current)
		h.Release()
		return
	}
	if err := s.SetNext(h); err != nil {
		log.Printf("Failed to queue %s: %v", uri, err)
		h.Release()
	}
}

// queueNext asks the provider for the resource after current and queues it
// on s.
func (b *Backend) queueNext(s sink.Sink, current string) {
	if b.cfg.NextResource == nil {
		return
	}
	uri, hint, ok := b.cfg.NextResource(current)
	if !ok {
		return
	}
	if err := b.setNext(s, uri, hint); err != nil {
		log.Printf("Failed to queue %s: %v", uri, err)
	}
}

// Stop stops the active sink.
func (b *Backend) Stop() error {
	s, err := b.playing()
	if err != nil {
		return err
	}
	s.Stop(true)
	return nil
}

func (b *Backend) Pause() error {
	s, err := b.playing()
	if err != nil {
		return err
	}
	s.Pause(true)
	return nil
}

func (b *Backend) Resume() error {
	s, err := b.playing()
	if err != nil {
		return err
	}
	s.Resume(true)
	return nil
}

// SetNextResource queues uri behind the current resource.
func (b *Backend) SetNextResource(uri, hint string) error {
	s, err := b.playing()
	if err != nil {
		return err
	}
	return b.setNext(s, uri, hint)
}

func (b *Backend) setNext(s sink.Sink, uri, hint string) error {
	h, err := b.OpenDecoder(uri, hint)
	if err != nil {
		return err
	}
	if err := s.SetNext(h); err != nil {
		h.Release()
		return err
	}
	return nil
}

func (b *Backend) ClearNextResource() error {
	s, err := b.playing()
	if err != nil {
		return err
	}
	s.ClearNext()
	return nil
}

// SetCurrentPosition seeks the current decoder and returns the position
// reached.
func (b *Backend) SetCurrentPosition(ticks int64) (int64, error) {
	s, err := b.playing()
	if err != nil {
		return decode.InvalidPosition, err
	}
	cur, next := s.Handles()
	defer cur.Release()
	defer next.Release()
	if cur == nil {
		return decode.InvalidPosition, ErrNotPlaying
	}
	pos := cur.SetCurrentPosition(ticks)
	if pos == decode.InvalidPosition {
		return pos, fmt.Errorf("cannot seek %s to %d: %w", cur.Resource(), ticks, decode.ErrNotSeekable)
	}
	return pos, nil
}

// SetCurrentVolume sets the global volume and applies it to the playing
// decoders.
func (b *Backend) SetCurrentVolume(volume int) {
	volume = max(0, min(volume, audio.MaxVolume))
	b.mu.Lock()
	b.volume = volume
	s := b.active
	b.mu.Unlock()

	b.eachHandle(s, func(h *decode.Handle) { h.SetCurrentVolume(volume) })
}

// SetLoopMode sets the global loop mode and applies it to the playing
// decoders.
func (b *Backend) SetLoopMode(n int) {
	b.mu.Lock()
	b.loopMode = n
	s := b.active
	b.mu.Unlock()

	b.eachHandle(s, func(h *decode.Handle) { h.SetLoopMode(n) })
}

func (b *Backend) eachHandle(s sink.Sink, fn func(*decode.Handle)) {
	if s == nil {
		return
	}
	cur, next := s.Handles()
	for _, h := range []*decode.Handle{cur, next} {
		if h != nil {
			fn(h)
			h.Release()
		}
	}
}

// SwitchSink hands playback over to the sink called name. The old sink is
// paused silently, its decoders move to the new sink without losing their
// position, and the old sink is stopped silently.
func (b *Backend) SwitchSink(name string) error {
	b.mu.Lock()
	if name == b.sinkName && b.active != nil {
		b.mu.Unlock()
		return nil
	}
	if _, ok := b.sinks[name]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("%q: %w", name, ErrUnknownSink)
	}
	old := b.active
	if old == nil || old.State() == sink.Stopped {
		if old != nil {
			old.Close()
		}
		b.active = nil
		b.sinkName = name
		b.mu.Unlock()
		return nil
	}
	next, err := b.createSinkLocked(name)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	wasPaused := old.State() == sink.Paused
	old.Pause(false)
	cur, queued := old.Handles()
	if err := next.Start(cur, queued); err != nil {
		cur.Release()
		queued.Release()
		if !wasPaused {
			old.Resume(false)
		}
		next.Close()
		return fmt.Errorf("failed to hand over to %s: %w", name, err)
	}
	if wasPaused {
		next.Pause(false)
	}
	old.Stop(false)
	old.Close()

	b.mu.Lock()
	b.active = next
	b.sinkName = name
	b.mu.Unlock()

	log.Printf("Switched playback to sink %s", name)
	return nil
}

// Status is a snapshot of the backend.
type Status struct {
	Sink           string
	State          sink.State
	Resource       string
	Next           string
	Position       int64
	Length         int64
	TicksPerSecond int64
	Volume         int
	LoopMode       int
	Metadata       decode.Metadata
}

// Status returns the current playback state.
func (b *Backend) Status() Status {
	b.mu.Lock()
	st := Status{Sink: b.sinkName, Volume: b.volume, LoopMode: b.loopMode}
	s := b.active
	b.mu.Unlock()

	if s == nil {
		return st
	}
	st.State = s.State()
	cur, next := s.Handles()
	defer cur.Release()
	defer next.Release()
	if cur != nil {
		st.Resource = cur.Resource()
		st.Position = cur.CurrentPosition()
		st.Length = cur.Length()
		st.TicksPerSecond = cur.TicksPerSecond()
		st.Metadata = cur.Metadata()
	}
	st.Next = next.Resource()
	return st
}

// Close stops the active sink and releases the sniffer and the reaper.
func (b *Backend) Close() error {
	b.mu.Lock()
	s := b.active
	b.active = nil
	b.mu.Unlock()

	if s != nil {
		s.Stop(false)
		s.Close()
	}
	b.pending.Wait()
	err := b.sniffer.Close()
	b.reaper.Close()
	return err
}
