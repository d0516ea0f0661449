//go:build property

package watcher

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// simulate feeds events separated by gaps (in ms) into a coalescer while
// scanning it on every tick, then keeps ticking until the last event is well
// past the quiet window. It returns every signal fired.
func simulate(quiet, tick time.Duration, roots []RootID, gaps []int) []Signal {
	c := newCoalescer(quiet)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var fired []Signal
	now := start
	nextTick := start.Add(tick)
	advanceTo := func(t time.Time) {
		for !nextTick.After(t) {
			fired = append(fired, c.due(nextTick)...)
			nextTick = nextTick.Add(tick)
		}
		now = t
	}

	for i, gap := range gaps {
		advanceTo(now.Add(time.Duration(gap) * time.Millisecond))
		c.add(roots[i%len(roots)], now)
	}
	advanceTo(now.Add(quiet + 2*tick))

	return fired
}

// TestDebounceProperties validates the coalescing guarantees of the debouncer
func TestDebounceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Property: any burst on one root within the quiet window fires once
	properties.Property("burst coalescing", prop.ForAll(
		func(gaps []int) bool {
			if len(gaps) == 0 {
				return true
			}
			fired := simulate(QuietWindow, TickInterval, []RootID{SourceRoot}, gaps)
			return len(fired) == 1 && fired[0].Count == len(gaps)
		},
		gen.SliceOf(gen.IntRange(0, 299)),
	))

	// Property: events separated by more than the quiet window plus one tick
	// fire separately
	properties.Property("separated events fire separately", prop.ForAll(
		func(count int) bool {
			gaps := make([]int, count)
			for i := range gaps {
				gaps[i] = 400
			}
			fired := simulate(QuietWindow, TickInterval, []RootID{AssetsRoot}, gaps)
			return len(fired) == count
		},
		gen.IntRange(1, 20),
	))

	// Property: every event is accounted for exactly once, whatever the
	// interleaving of roots
	properties.Property("no event lost or duplicated", prop.ForAll(
		func(gaps []int) bool {
			if len(gaps) == 0 {
				return true
			}
			fired := simulate(QuietWindow, TickInterval, []RootID{AssetsRoot, SourceRoot, ConfigFile}, gaps)
			total := 0
			for _, s := range fired {
				total += s.Count
			}
			return total == len(gaps)
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	// Property: at most one pending entry per root at any time
	properties.Property("one pending change per root", prop.ForAll(
		func(roots []int) bool {
			c := newCoalescer(QuietWindow)
			at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			seen := make(map[RootID]bool)
			for _, r := range roots {
				id := RootID(r)
				c.add(id, at)
				seen[id] = true
			}
			return c.size() == len(seen)
		},
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
