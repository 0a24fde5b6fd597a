// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device contract and oto, malgo, wav and null backends
// Package output provides the devices a sink engine renders into.
//
// A Device exposes one period buffer in a fixed format. The engine fills it
// and calls Render, which plays it or blocks until the hardware can take it.
//
// Example:
//
//	dev, err := output.NewMalgo(output.DefaultConfig())
//	err = dev.Initialize(44100)
//	copy(dev.Buffer(), pcm)
//	err = dev.Render(dev.BufferFrames())
package output
