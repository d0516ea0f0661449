package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// It is safe for concurrent use.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	tickers        []*fakeTicker
	tickersChanged *sync.Cond
}

type fakeTicker struct {
	clock    *FakeClock
	c        chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

// NewFake creates a FakeClock set to the given time.
func NewFake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.tickersChanged = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker registers a ticker that fires each time the clock is advanced
// past its next deadline. Panics if d <= 0, like time.NewTicker.
func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{
		clock:    c,
		c:        make(chan time.Time, 1),
		interval: d,
		next:     c.current.Add(d),
	}
	c.tickers = append(c.tickers, t)
	c.tickersChanged.Broadcast()
	return t
}

// Advance moves the clock forward by d. Every ticker whose deadline falls
// inside the advanced span receives a tick; ticks that do not fit in the
// channel buffer are dropped, matching time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(c.current) {
			select {
			case t.c <- t.next:
			default:
			}
			t.next = t.next.Add(t.interval)
		}
	}
}

// Set moves the clock to an absolute time without firing tickers.
func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = now
}

// WaitForTickers blocks until at least n active tickers are registered. It
// closes the race between a goroutine creating its ticker and a test
// advancing the clock.
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.tickersChanged.Wait()
	}
}

// ActiveTickers returns the number of tickers that have not been stopped.
func (c *FakeClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
	t.clock.tickersChanged.Broadcast()
}
