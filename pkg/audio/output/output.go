// ABOUTME: Audio device contract definition
// ABOUTME: Common interface for playback backends driven by the sink engine
package output

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

var (
	// ErrNotInitialized is returned by Render before Initialize succeeds
	ErrNotInitialized = errors.New("output not initialized")
	// ErrUnderrun marks a transient render failure a Recoverer may fix
	ErrUnderrun = errors.New("output underrun")
	// ErrDeviceClosed is returned when the device was shut down mid-render
	ErrDeviceClosed = errors.New("output device closed")
	// ErrUnknownDevice is returned by Lookup for unregistered backends
	ErrUnknownDevice = errors.New("unknown output device")
)

// Device is a concrete output backend. The sink engine calls Initialize,
// Reinitialize and Shutdown with its lock held and Render without it, always
// from one goroutine at a time. Buffer returns the period buffer Render plays;
// it holds BufferFrames frames in Properties format.
type Device interface {
	Name() string
	IsInitialized() bool
	// Initialize opens the device at frequency. The device may choose a
	// different rate; Properties reports the one in effect.
	Initialize(frequency int) error
	// Reinitialize reopens an initialized device at a new frequency
	Reinitialize(frequency int) error
	Shutdown()
	// Render plays the first frames frames of Buffer
	Render(frames int) error
	Buffer() []byte
	BufferFrames() int
	Properties() audio.PlaybackProperties
}

// Recoverer is implemented by devices that can recover from ErrUnderrun.
type Recoverer interface {
	Recover() error
}

// Config holds the settings shared by every backend.
type Config struct {
	// Frequency is used when a decoder has no native rate
	Frequency    int
	Channels     int
	SampleType   audio.SampleType
	BufferFrames int

	// Path is the output file of the wav backend
	Path string
	// Realtime paces the null backend at the playback rate
	Realtime bool
}

// DefaultConfig returns 48kHz stereo 16-bit with 1024-frame periods.
func DefaultConfig() Config {
	return Config{
		Frequency:    48000,
		Channels:     2,
		SampleType:   audio.SampleTypeS16,
		BufferFrames: 1024,
		Path:         "out.wav",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Frequency <= 0 {
		c.Frequency = d.Frequency
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.SampleType == audio.SampleTypeUnknown {
		c.SampleType = d.SampleType
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = d.BufferFrames
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	return c
}

// Factory creates a device from cfg.
type Factory func(cfg Config) (Device, error)

var factories = map[string]Factory{
	"oto":   NewOto,
	"malgo": NewMalgo,
	"wav":   NewWAVFile,
	"null":  NewNull,
}

// Names lists the registered backends.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the factory for name.
func Lookup(name string) (Factory, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%q (available: %s): %w", name, strings.Join(Names(), ", "), ErrUnknownDevice)
	}
	return f, nil
}

// period holds the buffer and format every backend exposes.
type period struct {
	props audio.PlaybackProperties
	buf   []byte
}

func newPeriod(cfg Config) period {
	return period{props: audio.PlaybackProperties{
		Properties: audio.Properties{Frequency: cfg.Frequency, Channels: cfg.Channels, SampleType: cfg.SampleType},
		BufferSize: cfg.BufferFrames,
	}}
}

// setup sizes the buffer for frequency.
func (p *period) setup(frequency int) {
	p.props.Frequency = frequency
	if n := p.props.Bytes(p.props.BufferSize); len(p.buf) != n {
		p.buf = make([]byte, n)
	}
}

func (p *period) Buffer() []byte                       { return p.buf }
func (p *period) BufferFrames() int                    { return p.props.BufferSize }
func (p *period) Properties() audio.PlaybackProperties { return p.props }

func (p *period) slice(n int) []byte {
	n = max(min(n, p.props.BufferSize), 0)
	return p.buf[:p.props.Bytes(n)]
}
