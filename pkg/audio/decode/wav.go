// ABOUTME: WAV and AIFF codec adapters
// ABOUTME: Probes RIFF/WAVE and FORM/AIFF headers and reads integer PCM
package decode

import (
	"fmt"

	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// OpenWAV opens a RIFF/WAVE stream.
func OpenWAV(src source.Source) (Codec, error) {
	head, err := peek(src, 12)
	if err != nil {
		return nil, err
	}
	if len(head) < 12 || string(head[:4]) != "RIFF" || string(head[8:12]) != "WAVE" {
		return nil, notMine("wav")
	}

	return newIntCodec("wav", src, func(src source.Source) (intReader, pcmLayout, error) {
		dec := wav.NewDecoder(src)
		if !dec.IsValidFile() {
			return nil, pcmLayout{}, fmt.Errorf("invalid wav file")
		}
		dec.ReadInfo()
		if err := dec.FwdToPCM(); err != nil {
			return nil, pcmLayout{}, fmt.Errorf("failed to locate wav data: %w", err)
		}
		layout := pcmLayout{depth: int(dec.BitDepth), frames: -1}
		// the data chunk size, not the file size, bounds the audio
		if frameSize := int64(dec.NumChans) * int64((dec.BitDepth+7)/8); frameSize > 0 && dec.PCMLen() > 0 {
			layout.frames = dec.PCMLen() / frameSize
		}
		return dec, layout, nil
	})
}

// OpenAIFF opens a FORM/AIFF or FORM/AIFC stream.
func OpenAIFF(src source.Source) (Codec, error) {
	head, err := peek(src, 12)
	if err != nil {
		return nil, err
	}
	if len(head) < 12 || string(head[:4]) != "FORM" || (string(head[8:12]) != "AIFF" && string(head[8:12]) != "AIFC") {
		return nil, notMine("aiff")
	}

	return newIntCodec("aiff", src, func(src source.Source) (intReader, pcmLayout, error) {
		dec := aiff.NewDecoder(src)
		if !dec.IsValidFile() {
			return nil, pcmLayout{}, fmt.Errorf("invalid aiff file")
		}
		dec.ReadInfo()
		layout := pcmLayout{depth: int(dec.BitDepth), frames: -1}
		if dec.NumSampleFrames > 0 {
			layout.frames = int64(dec.NumSampleFrames)
		}
		return dec, layout, nil
	})
}
