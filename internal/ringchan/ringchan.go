// Package ringchan provides a bounded channel that overwrites its oldest
// element instead of blocking the producer.
package ringchan

import (
	"context"
	"sync"
	"sync/atomic"
)

// RingChannel is a bounded buffer with overwrite-oldest semantics. Producers
// never block; when the buffer is full the oldest element is discarded.
//
// It is used to decouple notification callbacks, which run on the event loop,
// from slow consumers such as terminal output.
//
//	rc := ringchan.New[string](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send(strconv.Itoa(i))
//	}
//	// only "7", "8" and "9" remain
type RingChannel[T any] struct {
	ch        chan T
	mu        sync.Mutex // serializes producers so drop-then-send cannot block
	closeOnce sync.Once
	closed    atomic.Bool

	written     atomic.Int64
	overwritten atomic.Int64
	received    atomic.Int64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Reads through C are not counted in Stats.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest element if the buffer is full.
// It reports whether an element was discarded. Sending after Close is a no-op.
func (rc *RingChannel[T]) Send(v T) (dropped bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed.Load() {
		return false
	}

	for {
		select {
		case rc.ch <- v:
			rc.written.Add(1)
			return dropped
		default:
		}
		select {
		case <-rc.ch:
			rc.overwritten.Add(1)
			dropped = true
		default:
		}
	}
}

// Receive blocks until a value is available, the channel is closed, or ctx is done.
func (rc *RingChannel[T]) Receive(ctx context.Context) (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		if ok {
			rc.received.Add(1)
		}
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the channel. Buffered elements stay readable. Safe to call more than once.
func (rc *RingChannel[T]) Close() {
	rc.closeOnce.Do(func() {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		rc.closed.Store(true)
		close(rc.ch)
	})
}

// Stats is a snapshot of RingChannel counters
type Stats struct {
	Written     int64
	Overwritten int64
	Received    int64
}

// Stats returns the current counters
func (rc *RingChannel[T]) Stats() Stats {
	return Stats{
		Written:     rc.written.Load(),
		Overwritten: rc.overwritten.Load(),
		Received:    rc.received.Load(),
	}
}
