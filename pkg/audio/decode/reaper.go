// ABOUTME: Deferred decoder destruction queue
// ABOUTME: Closes released decoders on a background goroutine, off the playback path
package decode

import (
	"io"
	"log"
	"sync"
)

type reapItem struct {
	c    io.Closer
	name string
}

// Reaper closes decoders asynchronously. Dispose never blocks.
type Reaper struct {
	mu      sync.Mutex
	queue   []reapItem
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	onClose func(name string)
}

// NewReaper starts a reaper goroutine.
func NewReaper() *Reaper {
	r := &Reaper{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

// Dispose queues c for closing. After Close, c is closed synchronously.
func (r *Reaper) Dispose(c io.Closer, name string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.closeOne(reapItem{c: c, name: name})
		return
	}
	r.queue = append(r.queue, reapItem{c: c, name: name})
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued decoders.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Reaper) run() {
	defer close(r.done)
	for {
		<-r.wake

		r.mu.Lock()
		items := r.queue
		r.queue = nil
		closed := r.closed
		r.mu.Unlock()

		for _, it := range items {
			r.closeOne(it)
		}
		if closed {
			return
		}
	}
}

func (r *Reaper) closeOne(it reapItem) {
	if err := it.c.Close(); err != nil {
		log.Printf("Error closing decoder %s: %v", it.name, err)
	}
	if r.onClose != nil {
		r.onClose(it.name)
	}
}

// Close drains the queue and waits for the goroutine to exit.
func (r *Reaper) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	<-r.done
}
