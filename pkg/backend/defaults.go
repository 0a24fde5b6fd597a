// ABOUTME: Registration of the bundled sources, decoders and output sinks
// ABOUTME: Wires every output device behind the generic sink engine
package backend

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/sink"
	"github.com/Resonate-Protocol/resonate-engine/pkg/source"
)

// Options configures RegisterDefaults.
type Options struct {
	// CacheDir holds downloaded http(s) resources; empty uses the temp dir
	CacheDir string
	Output   output.Config
	// Resampler names a resample converter; empty selects linear
	Resampler         string
	FollowDecoderRate bool
}

// RegisterDefaults registers the file, http(s), mem and tone sources, the
// bundled decoders in probing order and one sink per output backend.
func RegisterDefaults(b *Backend, opts Options) error {
	rs, err := resample.ByName(opts.Resampler)
	if err != nil {
		return err
	}
	cache, err := source.NewHTTPCache(opts.CacheDir, nil)
	if err != nil {
		return err
	}

	b.RegisterSource("file", source.FactoryFunc(source.OpenFile))
	b.RegisterSource("http", cache)
	b.RegisterSource("https", cache)
	b.RegisterSource("mem", b.Memory())
	b.RegisterSource("tone", source.FactoryFunc(func(uri string) (source.Source, error) {
		return source.NewMemorySource(uri, nil), nil
	}))

	for _, f := range decode.Builtin() {
		b.RegisterDecoder(f)
	}

	for _, name := range output.Names() {
		b.RegisterSink(name, DeviceSink(name, opts.Output, rs, opts.FollowDecoderRate))
	}
	return nil
}

// DeviceSink returns a SinkFactory that opens the given output backend and
// drives it with a sink engine named after its registration.
func DeviceSink(device string, cfg output.Config, rs resample.Factory, followRate bool) SinkFactory {
	return func(name string, listener sink.Listener, onFinished func(*decode.Handle)) (sink.Sink, error) {
		open, err := output.Lookup(device)
		if err != nil {
			return nil, err
		}
		dev, err := open(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s output: %w", device, err)
		}
		return sink.New(dev, sink.Config{
			Name:               name,
			Resampler:          rs,
			FollowDecoderRate:  followRate,
			Listener:           listener,
			OnResourceFinished: onFinished,
		}), nil
	}
}
