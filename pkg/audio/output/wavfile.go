// ABOUTME: WAV file output for offline rendering
// ABOUTME: Writes every rendered period to a RIFF file via go-audio/wav
package output

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

// WAVFile renders into a WAV file. A frequency change finishes the current
// file and continues in a numbered sibling (out.wav, out-2.wav, ...).
type WAVFile struct {
	period
	path    string
	segment int

	file    *os.File
	encoder *wav.Encoder
	ibuf    *goaudio.IntBuffer
	written int64
}

// NewWAVFile creates a WAV file output writing to cfg.Path.
func NewWAVFile(cfg Config) (Device, error) {
	cfg = cfg.withDefaults()
	if cfg.SampleType == audio.SampleTypeS24Padded {
		cfg.SampleType = audio.SampleTypeS24
	}
	return &WAVFile{period: newPeriod(cfg), path: cfg.Path}, nil
}

func (w *WAVFile) Name() string { return "wav" }

func (w *WAVFile) IsInitialized() bool { return w.encoder != nil }

// Path returns the file currently written.
func (w *WAVFile) Path() string {
	if w.segment <= 1 {
		return w.path
	}
	ext := filepath.Ext(w.path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(w.path, ext), w.segment, ext)
}

func (w *WAVFile) Initialize(frequency int) error {
	if w.encoder != nil {
		return nil
	}
	w.segment++
	f, err := os.Create(w.Path())
	if err != nil {
		return fmt.Errorf("failed to create wav output: %w", err)
	}

	w.setup(frequency)
	w.file = f
	w.encoder = wav.NewEncoder(f, frequency, w.props.SampleType.Bits(), w.props.Channels, 1)
	w.ibuf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.props.Channels, SampleRate: frequency},
		SourceBitDepth: w.props.SampleType.Bits(),
		Data:           make([]int, w.props.BufferSize*w.props.Channels),
	}
	w.written = 0

	log.Printf("Audio output initialized: %dHz, %d channels, %s (wav %s)", frequency, w.props.Channels, w.props.SampleType, w.Path())
	return nil
}

func (w *WAVFile) Reinitialize(frequency int) error {
	if w.encoder != nil && frequency == w.props.Frequency {
		return nil
	}
	w.Shutdown()
	return w.Initialize(frequency)
}

func (w *WAVFile) Render(frames int) error {
	if w.encoder == nil {
		return ErrNotInitialized
	}
	buf := w.slice(frames)
	n := len(buf) / w.props.SampleType.Size()
	data := w.ibuf.Data[:n]
	for i := range data {
		data[i] = int(audio.SampleValue(buf, i, w.props.SampleType))
	}
	w.ibuf.Data = data
	if err := w.encoder.Write(w.ibuf); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	w.ibuf.Data = w.ibuf.Data[:cap(w.ibuf.Data)]
	w.written += int64(n / w.props.Channels)
	return nil
}

// FramesWritten returns the frames rendered into the current file.
func (w *WAVFile) FramesWritten() int64 { return w.written }

// Shutdown finalizes the file header.
func (w *WAVFile) Shutdown() {
	if w.encoder == nil {
		return
	}
	if err := w.encoder.Close(); err != nil {
		log.Printf("Warning: failed to finalize %s: %v", w.Path(), err)
	}
	if err := w.file.Close(); err != nil {
		log.Printf("Warning: failed to close %s: %v", w.Path(), err)
	}
	w.encoder, w.file = nil, nil
}
