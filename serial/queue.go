package serial

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrEmpty is returned by Pop when no line arrived before the timeout.
var ErrEmpty = errors.New("no line available")

// LineQueue is an unbounded FIFO of raw response lines. The read loop
// pushes, a single consumer pops; every line is delivered exactly once.
type LineQueue struct {
	mu     sync.Mutex
	items  []string
	signal chan struct{}
}

func NewLineQueue() *LineQueue {
	return &LineQueue{signal: make(chan struct{}, 1)}
}

// Push appends a line and wakes a waiting consumer.
func (q *LineQueue) Push(line string) {
	q.mu.Lock()
	q.items = append(q.items, line)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop blocks until a line is available, the timeout elapses (ErrEmpty) or
// ctx is done.
func (q *LineQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if line, ok := q.take(); ok {
			return line, nil
		}
		select {
		case <-q.signal:
		case <-timer.C:
			return "", ErrEmpty
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Len reports the number of queued lines.
func (q *LineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *LineQueue) take() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	line := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return line, true
}

// Drain discards every queued line and reports how many were dropped.
func (q *LineQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
