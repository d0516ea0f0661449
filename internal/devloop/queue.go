package devloop

import (
	"sort"
	"sync"

	"github.com/magic-framework/magic/internal/watcher"
)

// signalQueue holds the coalesced signals the loop has not handled yet, at
// most one per root. Push never blocks, so it can be called from the
// Debouncer goroutine.
type signalQueue struct {
	mu      sync.Mutex
	pending map[watcher.RootID]watcher.Signal
	ready   chan struct{}
}

func newSignalQueue() *signalQueue {
	return &signalQueue{
		pending: make(map[watcher.RootID]watcher.Signal),
		ready:   make(chan struct{}, 1),
	}
}

// Push queues a batch. A root that is already queued keeps its entry; the
// duplicate only adds to its event count.
func (q *signalQueue) Push(batch []watcher.Signal) {
	if len(batch) == 0 {
		return
	}

	q.mu.Lock()
	for _, s := range batch {
		if queued, ok := q.pending[s.Root]; ok {
			queued.Count += s.Count
			if s.LastEventTime.After(queued.LastEventTime) {
				queued.LastEventTime = s.LastEventTime
			}
			q.pending[s.Root] = queued
			continue
		}
		q.pending[s.Root] = s
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after every Push. It may fire when the queue has
// already been drained.
func (q *signalQueue) Ready() <-chan struct{} {
	return q.ready
}

// Take removes and returns every queued signal ordered by root.
func (q *signalQueue) Take() []watcher.Signal {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := make([]watcher.Signal, 0, len(q.pending))
	for _, s := range q.pending {
		batch = append(batch, s)
	}
	clear(q.pending)

	sort.Slice(batch, func(i, j int) bool { return batch[i].Root < batch[j].Root })
	return batch
}

// Clear drops every queued signal.
func (q *signalQueue) Clear() {
	q.mu.Lock()
	clear(q.pending)
	q.mu.Unlock()

	select {
	case <-q.ready:
	default:
	}
}

// Len returns the number of queued roots.
func (q *signalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
