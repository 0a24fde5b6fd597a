// resonate-play plays audio files through the pluggable playback engine.
//
// Usage:
//
//	resonate-play play a.flac b.mp3          # play files gaplessly with the TUI
//	resonate-play play --no-tui tone://440   # stream logs, control on stdin
//	resonate-play play --control :8928 --mdns
//	resonate-play remote pause               # control a running player
//	resonate-play decoders                   # list decoders in probing order
//	resonate-play sinks                      # list output sinks
//
// Configuration is read from ~/.resonate/config.yaml
package main

import (
	"os"

	"github.com/Resonate-Protocol/resonate-engine/cmd/resonate-play/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
