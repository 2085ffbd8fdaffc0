package p2p

import "sync"

// queue is an unbounded FIFO connecting the engine loop to the application.
// Pushes never block, matching the reference behavior of unbounded channels;
// the cost is unbounded memory growth if the consumer stops draining.
//
// A one-slot wake channel lets the engine loop select on command arrival
// without the queue itself ever blocking a producer.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	closed bool
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{wake: make(chan struct{}, 1)}
}

// push appends item and signals the wake channel. Returns false if the queue
// has been closed.
func (q *queue[T]) push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

// pop removes and returns the oldest item, if any.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// drain removes and returns every queued item in push order.
func (q *queue[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	items := q.items
	q.items = nil

	return items
}

// close marks the queue closed. Subsequent pushes fail; queued items remain
// drainable.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}
