package watcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/magic-framework/magic/internal/clock"
	"github.com/magic-framework/magic/internal/logging"
)

const (
	// TickInterval is how often pending changes are checked.
	TickInterval = 50 * time.Millisecond
	// QuietWindow is how long a root must stay silent before it fires.
	QuietWindow = 300 * time.Millisecond

	inboxSize = 256
)

// coalescer holds the pending changes of every root. It is not safe for
// concurrent use; the Debouncer goroutine is its only user.
type coalescer struct {
	quiet   time.Duration
	pending map[RootID]*PendingChange
}

func newCoalescer(quiet time.Duration) *coalescer {
	return &coalescer{
		quiet:   quiet,
		pending: make(map[RootID]*PendingChange),
	}
}

// add records an event for root at the given time, extending its window.
func (c *coalescer) add(root RootID, at time.Time) {
	p, ok := c.pending[root]
	if !ok {
		c.pending[root] = &PendingChange{Root: root, LastEventTime: at, Count: 1}
		return
	}
	p.Count++
	if at.After(p.LastEventTime) {
		p.LastEventTime = at
	}
}

// due removes and returns the signals of every root that has been quiet for
// at least the quiet window, ordered by root.
func (c *coalescer) due(now time.Time) []Signal {
	var batch []Signal
	for root, p := range c.pending {
		if now.Sub(p.LastEventTime) < c.quiet {
			continue
		}
		batch = append(batch, Signal{Root: root, Count: p.Count, LastEventTime: p.LastEventTime})
		delete(c.pending, root)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Root < batch[j].Root })
	return batch
}

func (c *coalescer) reset() {
	clear(c.pending)
}

func (c *coalescer) size() int {
	return len(c.pending)
}

type message struct {
	event  RawEvent
	forget bool
	ack    chan struct{}
}

// DebouncerOptions configure a Debouncer.
type DebouncerOptions struct {
	Tick   time.Duration
	Quiet  time.Duration
	Clock  clock.Clock
	Logger logging.Logger
}

// Debouncer converts bursts of raw events into one coalesced signal per
// root. All pending state is owned by a single goroutine fed through one
// inbox, so events for a root are seen in the order they were posted.
type Debouncer struct {
	opts  DebouncerOptions
	emit  func([]Signal)
	inbox chan message

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewDebouncer creates a Debouncer that calls emit with every batch of roots
// whose quiet window elapsed in the same tick. emit runs on the Debouncer
// goroutine and must not block.
func NewDebouncer(opts DebouncerOptions, emit func([]Signal)) *Debouncer {
	if opts.Tick <= 0 {
		opts.Tick = TickInterval
	}
	if opts.Quiet <= 0 {
		opts.Quiet = QuietWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	return &Debouncer{
		opts:  opts,
		emit:  emit,
		inbox: make(chan message, inboxSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the Debouncer until ctx is cancelled or Stop is called.
func (d *Debouncer) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Stop terminates the Debouncer and waits for its goroutine to exit.
// Pending changes are discarded.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.startOnce.Do(func() { close(d.done) })
	<-d.done
}

// Post enqueues a raw event. It blocks while the inbox is full and returns
// immediately once the Debouncer has stopped.
func (d *Debouncer) Post(event RawEvent) {
	select {
	case d.inbox <- message{event: event}:
	case <-d.done:
	}
}

// Forget drops every pending change. Events posted before Forget are
// dropped too; Forget returns once they have been discarded, so no signal
// for them is emitted afterwards.
func (d *Debouncer) Forget() {
	d.barrier(true)
}

// flush waits until every event posted before it has been recorded.
func (d *Debouncer) flush() {
	d.barrier(false)
}

func (d *Debouncer) barrier(forget bool) {
	ack := make(chan struct{})
	select {
	case d.inbox <- message{forget: forget, ack: ack}:
	case <-d.done:
		return
	}
	select {
	case <-ack:
	case <-d.done:
	}
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.done)

	ticker := d.opts.Clock.NewTicker(d.opts.Tick)
	defer ticker.Stop()

	pending := newCoalescer(d.opts.Quiet)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case msg := <-d.inbox:
			switch {
			case msg.ack != nil:
				if msg.forget {
					if n := pending.size(); n > 0 {
						d.opts.Logger.Debug(ctx, "Dropping pending changes", "roots", n)
					}
					pending.reset()
				}
				close(msg.ack)
			default:
				at := msg.event.Time
				if at.IsZero() {
					at = d.opts.Clock.Now()
				}
				pending.add(msg.event.Root, at)
			}
		case <-ticker.C():
			if batch := pending.due(d.opts.Clock.Now()); len(batch) > 0 {
				d.emit(batch)
			}
		}
	}
}
