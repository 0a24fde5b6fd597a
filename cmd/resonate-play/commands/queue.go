// ABOUTME: Play queue built from the command line arguments
// ABOUTME: Feeds the backend's next-resource provider and the skip key
package commands

import (
	"errors"
	"sync"
)

// errEndOfQueue is returned by skip after the last resource
var errEndOfQueue = errors.New("end of queue")

// queue is an ordered list of resources played once each.
type queue struct {
	mu    sync.Mutex
	items []string
	// pos is the index of the resource last looked up
	pos int
}

func newQueue(items []string) *queue {
	return &queue{items: items}
}

// next returns the resource following current. Lookups start at the last
// match so repeated entries advance through the queue.
func (q *queue) next(current string) (uri, hint string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexFrom(q.pos, current)
	if i < 0 {
		i = q.indexFrom(0, current)
	}
	if i < 0 || i+1 >= len(q.items) {
		return "", "", false
	}
	q.pos = i + 1
	return q.items[i+1], "", true
}

func (q *queue) indexFrom(start int, uri string) int {
	for i := start; i < len(q.items); i++ {
		if q.items[i] == uri {
			return i
		}
	}
	return -1
}

// player is the part of the backend skip needs
type player interface {
	CurrentResource() string
	Play(uri, hint string) error
}

// skip starts the resource after the one playing.
func (q *queue) skip(p player) error {
	uri, hint, ok := q.next(p.CurrentResource())
	if !ok {
		return errEndOfQueue
	}
	return p.Play(uri, hint)
}
