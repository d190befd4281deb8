package device

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// pendingOp is one outstanding completion. The timer is a cancellable
// reference only; the table owns the entry.
type pendingOp struct {
	id       uint64
	callback Callback
	timer    Timer
}

// PendingTable maps correlation keys to outstanding completions and to the
// persistent notification delivery handlers.
//
// Completions are invoked exactly once: an entry is removed under the lock
// before its callback runs, so of a racing timeout and event only the first
// one to remove the entry delivers a result. Callbacks never run while the
// lock is held.
type PendingTable struct {
	mu        sync.Mutex
	ops       map[Key]*pendingOp
	notifiers map[Key]NotifyHandler
	nextID    uint64
	clock     Clock
	logger    *logrus.Logger
}

// NewPendingTable creates an empty table. A nil clock selects SystemClock.
func NewPendingTable(clock Clock, logger *logrus.Logger) *PendingTable {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PendingTable{
		ops:       make(map[Key]*pendingOp),
		notifiers: make(map[Key]NotifyHandler),
		clock:     clock,
		logger:    logger,
	}
}

// Register installs cb as the completion for key and arms a deadline when timeout > 0.
// An unresolved entry already registered under key is superseded: its timer is
// cancelled and its callback is rejected with ErrSuperseded.
func (t *PendingTable) Register(key Key, cb Callback, timeout time.Duration) {
	t.mu.Lock()
	t.nextID++
	op := &pendingOp{id: t.nextID, callback: cb}
	prev := t.ops[key]
	t.ops[key] = op
	if timeout > 0 {
		id := op.id
		op.timer = t.clock.AfterFunc(timeout, func() {
			t.expire(key, id)
		})
	}
	t.mu.Unlock()

	if prev != nil {
		if prev.timer != nil {
			prev.timer.Stop()
		}
		t.logger.WithField("key", key.String()).Debug("Superseding pending operation")
		prev.callback(rejected(newError(Superseded, key, msgSuperseded)))
	}
}

// Resolve completes key successfully with value. Returns false if nothing was pending.
func (t *PendingTable) Resolve(key Key, value string) bool {
	return t.Complete(key, resolved(value))
}

// Reject completes key with err. Returns false if nothing was pending.
func (t *PendingTable) Reject(key Key, err error) bool {
	return t.Complete(key, rejected(err))
}

// Complete removes the entry for key, cancels its deadline and invokes its callback.
// Completing a key with no entry is a silent no-op (late or duplicate event).
func (t *PendingTable) Complete(key Key, res Result) bool {
	t.mu.Lock()
	op, ok := t.ops[key]
	if ok {
		delete(t.ops, key)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	t.finish(key, op, res)
	return true
}

// expire fires the timeout for the entry registered with id. A newer entry
// under the same key is left untouched.
func (t *PendingTable) expire(key Key, id uint64) {
	t.mu.Lock()
	op, ok := t.ops[key]
	if !ok || op.id != id {
		t.mu.Unlock()
		return
	}
	delete(t.ops, key)
	t.mu.Unlock()

	t.finish(key, op, rejected(timeoutError(key)))
}

func (t *PendingTable) finish(key Key, op *pendingOp, res Result) {
	if op.timer != nil {
		op.timer.Stop()
	}
	if res.Success() {
		t.logger.WithFields(logrus.Fields{
			"key":   key.String(),
			"value": res.Value,
		}).Debug("Resolve")
	} else {
		t.logger.WithFields(logrus.Fields{
			"key":   key.String(),
			"error": res.Err,
		}).Debug("Reject")
	}
	op.callback(res)
}

// IsPending reports whether an unresolved entry exists for key
func (t *PendingTable) IsPending(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ops[key]
	return ok
}

// Len returns the number of unresolved entries
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// RejectAll completes every unresolved entry with an error produced by errFor.
func (t *PendingTable) RejectAll(errFor func(Key) error) int {
	t.mu.Lock()
	ops := t.ops
	t.ops = make(map[Key]*pendingOp)
	t.mu.Unlock()

	for key, op := range ops {
		t.finish(key, op, rejected(errFor(key)))
	}
	return len(ops)
}

// SetNotifier installs the persistent delivery handler for key, replacing any previous one.
func (t *PendingTable) SetNotifier(key Key, h NotifyHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifiers[key] = h
}

// RemoveNotifier drops the delivery handler for key
func (t *PendingTable) RemoveNotifier(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.notifiers, key)
}

// Notify delivers res to the handler registered under key without removing it.
// Returns false if no handler is registered.
func (t *PendingTable) Notify(key Key, res Result) bool {
	t.mu.Lock()
	h, ok := t.notifiers[key]
	t.mu.Unlock()

	if !ok || h == nil {
		return false
	}
	h(res)
	return true
}
