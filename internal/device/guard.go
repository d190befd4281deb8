package device

import (
	"sync/atomic"

	"github.com/cornelk/hashmap"
)

// SubscriptionGuard holds one reusable latch per (service, characteristic) that
// keeps a second notification (un)subscribe request from starting while one is
// outstanding. Latches are created on first use and never removed; the
// hashmap is keyed by the rendered Key since it only accepts scalar keys.
type SubscriptionGuard struct {
	latches *hashmap.Map[string, *atomic.Bool]
}

// NewSubscriptionGuard creates an empty guard
func NewSubscriptionGuard() *SubscriptionGuard {
	return &SubscriptionGuard{
		latches: hashmap.New[string, *atomic.Bool](),
	}
}

// TryAcquire sets the latch for key and returns true, or returns false if it is already held.
func (g *SubscriptionGuard) TryAcquire(key Key) bool {
	latch, _ := g.latches.GetOrInsert(key.String(), &atomic.Bool{})
	return latch.CompareAndSwap(false, true)
}

// Release clears the latch for key. Releasing a free or unknown latch has no effect.
func (g *SubscriptionGuard) Release(key Key) {
	if latch, ok := g.latches.Get(key.String()); ok {
		latch.Store(false)
	}
}

// Held reports whether the latch for key is currently set
func (g *SubscriptionGuard) Held(key Key) bool {
	latch, ok := g.latches.Get(key.String())
	return ok && latch.Load()
}

// ReleaseAll clears every latch. Returns the number of latches that were held.
func (g *SubscriptionGuard) ReleaseAll() int {
	released := 0
	g.latches.Range(func(_ string, latch *atomic.Bool) bool {
		if latch.Swap(false) {
			released++
		}
		return true
	})
	return released
}
