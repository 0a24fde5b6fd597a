// ABOUTME: Control protocol over a reader and writer pair
// ABOUTME: Serves commands typed on stdin and prints notifications to stdout
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Console runs the line protocol over plain streams.
type Console struct {
	ctl Controller

	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console writing replies and notifications to w.
func NewConsole(ctl Controller, w io.Writer) *Console {
	return &Console{ctl: ctl, w: w}
}

// Notify writes a notification line.
func (c *Console) Notify(line string) {
	c.writeLine(line)
}

func (c *Console) writeLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Serve executes every line read from r until EOF or ctx is done. The
// read itself is not interruptible; Serve returns on cancellation while a
// blocked read is abandoned.
func (c *Console) Serve(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if reply := Handle(c.ctl, line); reply != "" {
				c.writeLine(reply)
			}
		}
	}
}
