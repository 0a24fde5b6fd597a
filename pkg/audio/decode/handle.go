// ABOUTME: Reference-counted decoder ownership
// ABOUTME: Shares a decoder between the backend and a sink and defers its teardown
package decode

import (
	"log"
	"sync/atomic"
)

// Handle is a shared reference to a Decoder. The decoder is handed to the
// Reaper when the last reference is released, so Release never blocks on
// codec teardown.
type Handle struct {
	Decoder
	resource string
	refs     *atomic.Int32
	reaper   *Reaper
}

// NewHandle wraps d with a reference count of one. A nil reaper closes the
// decoder synchronously on final release.
func NewHandle(d Decoder, resource string, reaper *Reaper) *Handle {
	refs := new(atomic.Int32)
	refs.Store(1)
	return &Handle{Decoder: d, resource: resource, refs: refs, reaper: reaper}
}

// Resource returns the URI the decoder was opened from.
func (h *Handle) Resource() string {
	if h == nil {
		return ""
	}
	return h.resource
}

// Retain adds a reference and returns h. Retain on nil returns nil.
func (h *Handle) Retain() *Handle {
	if h == nil {
		return nil
	}
	h.refs.Add(1)
	return h
}

// Release drops a reference. Release on nil is a no-op.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	switch n := h.refs.Add(-1); {
	case n > 0:
		return
	case n < 0:
		log.Printf("Decoder handle %s released too many times", h.resource)
		return
	}

	if h.reaper != nil {
		h.reaper.Dispose(h.Decoder, h.resource)
		return
	}
	if err := h.Decoder.Close(); err != nil {
		log.Printf("Error closing decoder %s: %v", h.resource, err)
	}
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	return int(h.refs.Load())
}
