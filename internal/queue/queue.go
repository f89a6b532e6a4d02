// Package queue buffers overlay updates between the engine and its consumer.
package queue

import (
	"sync"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Updates is a thread-safe bounded FIFO of overlay updates. When the buffer
// is full the oldest update is dropped; a consumer that fell behind only
// cares about recent overlays anyway.
type Updates struct {
	mu      sync.Mutex
	items   []core.OverlayUpdate
	limit   int
	dropped uint64
}

// DefaultLimit bounds the buffer when no explicit limit is given.
const DefaultLimit = 256

// New creates an empty update queue holding at most limit entries.
// Non-positive limits fall back to DefaultLimit.
func New(limit int) *Updates {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Updates{
		items: make([]core.OverlayUpdate, 0, limit),
		limit: limit,
	}
}

// Push appends an update, evicting the oldest entry if the buffer is full.
func (q *Updates) Push(u core.OverlayUpdate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.limit {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, u)
}

// Drain returns all buffered updates in arrival order and empties the queue.
func (q *Updates) Drain() []core.OverlayUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]core.OverlayUpdate, 0, q.limit)
	return result
}

// Len returns the number of buffered updates.
func (q *Updates) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many updates were evicted because the buffer was full.
func (q *Updates) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear removes all buffered updates.
func (q *Updates) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
