package registry

import (
	"sync"

	"roomhub/pkg/types"
)

// Queue is one connection's bounded outbound buffer. When it is full
// the oldest pending frame is dropped to make room: a consumer that
// cannot keep up loses stale updates rather than blocking the
// dispatcher or growing without bound. Backpressure never crosses
// connections.
type Queue struct {
	mu      sync.Mutex
	ch      chan *types.Frame
	closed  bool
	dropped uint64
}

func newQueue(depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	return &Queue{
		ch: make(chan *types.Frame, depth),
	}
}

// Enqueue appends a frame, evicting the oldest entry if the queue is
// full. It reports false once the queue has been closed; a closed queue
// accepts nothing, which is what makes post-removal delivery
// impossible.
func (q *Queue) Enqueue(frame *types.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	for {
		select {
		case q.ch <- frame:
			return true
		default:
		}
		// Full: evict the oldest frame and retry. The consumer may have
		// drained concurrently, in which case the retry simply succeeds.
		select {
		case <-q.ch:
			q.dropped++
		default:
		}
	}
}

// Frames exposes the drain side for the connection's write pump. The
// channel is closed by Close, which is how the pump learns to exit.
func (q *Queue) Frames() <-chan *types.Frame {
	return q.ch
}

// Close seals the queue. Idempotent; pending frames remain readable so
// the write pump can finish draining before it observes the close.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len reports the number of pending frames.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped reports how many frames have been evicted for this consumer.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
