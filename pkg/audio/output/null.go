// ABOUTME: Null audio output that discards rendered periods
// ABOUTME: Optionally paces Render at the playback rate to stand in for hardware
package output

import (
	"sync/atomic"
	"time"
)

// Null discards everything it renders.
type Null struct {
	period
	realtime bool
	ready    bool
	next     time.Time
	rendered atomic.Int64
}

// NewNull creates a null output.
func NewNull(cfg Config) (Device, error) {
	cfg = cfg.withDefaults()
	return &Null{period: newPeriod(cfg), realtime: cfg.Realtime}, nil
}

func (n *Null) Name() string { return "null" }

func (n *Null) IsInitialized() bool { return n.ready }

func (n *Null) Initialize(frequency int) error {
	n.setup(frequency)
	n.ready = true
	n.next = time.Now()
	return nil
}

func (n *Null) Reinitialize(frequency int) error {
	return n.Initialize(frequency)
}

func (n *Null) Render(frames int) error {
	if !n.ready {
		return ErrNotInitialized
	}
	n.rendered.Add(int64(frames))
	if n.realtime {
		n.next = n.next.Add(time.Duration(frames) * time.Second / time.Duration(n.props.Frequency))
		time.Sleep(time.Until(n.next))
	}
	return nil
}

// Rendered returns the total frames rendered.
func (n *Null) Rendered() int64 { return n.rendered.Load() }

func (n *Null) Shutdown() { n.ready = false }
