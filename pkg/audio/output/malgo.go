// ABOUTME: Malgo-based audio output implementation with 24-bit support
// ABOUTME: Uses miniaudio library via malgo for true hi-res audio playback
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	period
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   malgo.FormatType

	// Ring buffer for callback-based playback
	ringBuffer *RingBuffer
}

// NewMalgo creates a new Malgo output. 24-bit padded output is played as
// 32-bit.
func NewMalgo(cfg Config) (Device, error) {
	cfg = cfg.withDefaults()
	var format malgo.FormatType
	switch cfg.SampleType {
	case audio.SampleTypeS16:
		format = malgo.FormatS16
	case audio.SampleTypeS24:
		format = malgo.FormatS24
	case audio.SampleTypeS24Padded, audio.SampleTypeS32:
		cfg.SampleType = audio.SampleTypeS32
		format = malgo.FormatS32
	default:
		return nil, fmt.Errorf("unsupported sample type: %s (supported: s16, s24, s32)", cfg.SampleType)
	}
	return &Malgo{period: newPeriod(cfg), format: format}, nil
}

func (m *Malgo) Name() string { return "malgo" }

func (m *Malgo) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device != nil
}

// Initialize opens and starts the playback device
func (m *Malgo) Initialize(frequency int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.setup(frequency)

	// Ring buffer holds four periods
	ring := NewRingBuffer(4 * len(m.buf))

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = m.format
	deviceConfig.Playback.Channels = uint32(m.props.Channels)
	deviceConfig.SampleRate = uint32(frequency)
	deviceConfig.PeriodSizeInFrames = uint32(m.props.BufferSize)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			ring.Read(pOutputSample)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.ringBuffer = ring

	log.Printf("Audio output initialized: %dHz, %d channels, %s (malgo/%s)",
		frequency, m.props.Channels, m.props.SampleType, formatName(m.format))
	return nil
}

// Reinitialize restarts the device when the frequency changes
func (m *Malgo) Reinitialize(frequency int) error {
	m.mu.Lock()
	same := m.device != nil && m.props.Frequency == frequency
	m.mu.Unlock()
	if same {
		return nil
	}

	log.Printf("Format change detected (%dHz -> %dHz), reinitializing device", m.props.Frequency, frequency)
	m.mu.Lock()
	m.closeDevice()
	m.mu.Unlock()
	return m.Initialize(frequency)
}

// Render queues a period, blocking while the ring buffer is full
func (m *Malgo) Render(frames int) error {
	m.mu.Lock()
	ring := m.ringBuffer
	m.mu.Unlock()
	if ring == nil {
		return ErrNotInitialized
	}

	if _, err := ring.Write(m.slice(frames)); err != nil {
		return err
	}
	if ring.TakeUnderrun() {
		return ErrUnderrun
	}
	return nil
}

// Recover restarts a device that stopped after an underrun
func (m *Malgo) Recover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotInitialized
	}
	if !m.device.IsStarted() {
		if err := m.device.Start(); err != nil {
			return fmt.Errorf("failed to restart device: %w", err)
		}
	}
	return nil
}

// Shutdown releases the device and context
func (m *Malgo) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.ringBuffer != nil {
		m.ringBuffer.Close()
		m.ringBuffer = nil
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
