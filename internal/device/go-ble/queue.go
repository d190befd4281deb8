package goble

import (
	"sync"

	list "github.com/bahlo/generic-list-go"
)

// commandQueue is an unbounded FIFO of radio commands. push never blocks:
// the event loop issues commands while the worker may be waiting to hand it an event.
type commandQueue struct {
	mu    sync.Mutex
	items *list.List[func()]
	ready chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		items: list.New[func()](),
		ready: make(chan struct{}, 1),
	}
}

func (q *commandQueue) push(cmd func()) {
	q.mu.Lock()
	q.items.PushBack(cmd)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *commandQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	return q.items.Remove(front), true
}

// Ready is signalled after a push
func (q *commandQueue) Ready() <-chan struct{} {
	return q.ready
}

func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
