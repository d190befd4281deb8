package device

import "context"

// Result is the single completion of an asynchronous operation.
// Success is carried by Value, failure by Err.
type Result struct {
	Value string
	Err   error
}

// Callback receives the completion of an operation exactly once.
type Callback func(Result)

// NotifyHandler receives every value delivered for a subscribed characteristic.
type NotifyHandler func(Result)

// Success reports whether the operation succeeded
func (r Result) Success() bool {
	return r.Err == nil
}

// Message returns the value on success and the error text on failure.
func (r Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Value
}

func resolved(value string) Result {
	return Result{Value: value}
}

func rejected(err error) Result {
	return Result{Err: err}
}

// Await issues an asynchronous operation and blocks until it completes or ctx is done.
//
// Example:
//
//	res := device.Await(ctx, func(cb device.Callback) {
//	    dev.Read("180f", "2a19", 5*time.Second, cb)
//	})
func Await(ctx context.Context, op func(Callback)) Result {
	ch := make(chan Result, 1)
	op(func(r Result) {
		ch <- r
	})

	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return rejected(ctx.Err())
	}
}
