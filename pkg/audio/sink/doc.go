// ABOUTME: Sink package for driving output devices
// ABOUTME: Provides the Sink contract and the generic playback Engine
// Package sink plays decoders through an output device.
//
// An Engine runs one playback goroutine per sink. Each iteration fills one
// device period from the current decoder through a stream transformer,
// promoting the queued next decoder the moment the current one ends so the
// two join without a gap, and zero-fills whatever is left. The device
// renders outside the engine's lock.
//
// Example:
//
//	dev, _ := output.NewOto(output.DefaultConfig())
//	s := sink.New(dev, sink.Config{Listener: func(ev sink.Event) { log.Println(ev.Kind) }})
//	err := s.Start(current, next)
package sink
