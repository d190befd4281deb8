package device

import "time"

// Timer is a cancellable handle to a scheduled function.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock schedules deadline callbacks. The default implementation runs them on
// the Go runtime timer goroutines; tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the Clock backed by time.AfterFunc
var SystemClock Clock = realClock{}
