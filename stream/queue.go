package stream

import (
	"context"
	"sync"
)

// queue is the unbounded hand-off between one producer and one consumer.
// Pushes never block. The consumer parks on ready, a one-slot wakeup that the
// producer fills after every push and on close.
type queue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	err    error
	ready  chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) push(fragment string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, fragment)
	q.mu.Unlock()
	q.wake()
}

// close marks the end of production. Only the first call has any effect.
func (q *queue) close(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.err = err
	q.mu.Unlock()
	q.wake()
}

func (q *queue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop returns the oldest fragment, waiting for one if the queue is empty.
// ok is false once the queue is closed and drained, or when ctx ends first.
func (q *queue) pop(ctx context.Context) (fragment string, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			fragment = q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			q.mu.Unlock()
			return fragment, true
		}
		if q.closed {
			q.mu.Unlock()
			return "", false
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return "", false
		}
	}
}

func (q *queue) result() (closed bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed, q.err
}
