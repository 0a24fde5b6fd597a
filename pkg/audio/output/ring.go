// ABOUTME: Byte ring buffer between the render goroutine and a device callback
// ABOUTME: Writes block until space frees; reads never block and zero-fill
package output

import (
	"sync"
)

// RingBuffer provides thread-safe circular buffer for audio bytes
type RingBuffer struct {
	mu       sync.Mutex
	space    *sync.Cond
	buffer   []byte
	readPos  int
	count    int // Number of bytes currently in buffer
	closed   bool
	primed   bool
	underrun bool
}

// NewRingBuffer creates a ring buffer with given capacity (in bytes)
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buffer: make([]byte, capacity)}
	rb.space = sync.NewCond(&rb.mu)
	return rb
}

// Write adds p to the ring buffer, waiting for the reader when full. It
// returns ErrDeviceClosed if the buffer is closed first.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(p) {
		if rb.closed {
			return written, ErrDeviceClosed
		}
		free := len(rb.buffer) - rb.count
		if free == 0 {
			rb.space.Wait()
			continue
		}
		w := (rb.readPos + rb.count) % len(rb.buffer)
		n := min(free, len(p)-written, len(rb.buffer)-w)
		copy(rb.buffer[w:w+n], p[written:written+n])
		rb.count += n
		written += n
	}
	rb.primed = true
	return written, nil
}

// Read fills p from the ring buffer and zero-fills what is missing. A short
// read after data has flowed is recorded as an underrun.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(p) && rb.count > 0 {
		n := min(rb.count, len(p)-read, len(rb.buffer)-rb.readPos)
		copy(p[read:read+n], rb.buffer[rb.readPos:rb.readPos+n])
		rb.readPos = (rb.readPos + n) % len(rb.buffer)
		rb.count -= n
		read += n
	}
	clear(p[read:])

	if read < len(p) && rb.primed && !rb.closed {
		rb.underrun = true
	}
	if read > 0 {
		rb.space.Broadcast()
	}
	return read
}

// TakeUnderrun reports and clears the underrun flag.
func (rb *RingBuffer) TakeUnderrun() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	u := rb.underrun
	rb.underrun = false
	return u
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free bytes in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.count
}

// Close wakes any blocked writer.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
	rb.space.Broadcast()
}
