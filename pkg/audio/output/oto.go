// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM periods through a pipe into a persistent oto player
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

// oto allows one context per process, so every Oto device shares it
var (
	otoMu       sync.Mutex
	otoCtx      *oto.Context
	otoRate     int
	otoChannels int
)

// Oto output implementation using oto library
type Oto struct {
	period
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	ready      bool
}

// NewOto creates a new Oto output. Only 16-bit output is supported.
func NewOto(cfg Config) (Device, error) {
	cfg = cfg.withDefaults()
	if cfg.SampleType != audio.SampleTypeS16 {
		log.Printf("Warning: oto only supports 16-bit output, ignoring requested %s", cfg.SampleType)
		cfg.SampleType = audio.SampleTypeS16
	}
	return &Oto{period: newPeriod(cfg)}, nil
}

func (o *Oto) Name() string { return "oto" }

func (o *Oto) IsInitialized() bool { return o.ready }

// Initialize opens the shared context on first use. A later request for a
// different format keeps the existing context and reports its rate.
func (o *Oto) Initialize(frequency int) error {
	if o.ready {
		return nil
	}

	otoMu.Lock()
	if otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   frequency,
			ChannelCount: o.props.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(o.props.BufferSize) * time.Second / time.Duration(frequency),
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoMu.Unlock()
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan
		otoCtx, otoRate, otoChannels = ctx, frequency, o.props.Channels
	} else if otoRate != frequency || otoChannels != o.props.Channels {
		log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
			otoRate, otoChannels, frequency, o.props.Channels)
	}
	ctx := otoCtx
	frequency, o.props.Channels = otoRate, otoChannels
	otoMu.Unlock()

	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	o.setup(frequency)
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels", frequency, o.props.Channels)
	return nil
}

func (o *Oto) Reinitialize(frequency int) error {
	o.Shutdown()
	return o.Initialize(frequency)
}

// Render writes to the pipe feeding the player; it blocks until the player
// has taken the data.
func (o *Oto) Render(frames int) error {
	if !o.ready {
		return ErrNotInitialized
	}
	if _, err := o.pipeWriter.Write(o.slice(frames)); err != nil {
		if err == io.ErrClosedPipe {
			return ErrDeviceClosed
		}
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

func (o *Oto) Shutdown() {
	if !o.ready {
		return
	}
	o.pipeWriter.Close()
	if err := o.player.Close(); err != nil {
		log.Printf("Warning: oto player close error: %v", err)
	}
	o.pipeReader.Close()
	o.player, o.pipeReader, o.pipeWriter = nil, nil, nil

	otoMu.Lock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	otoMu.Unlock()
	o.ready = false
}
