package exchange

import "time"

//
// Cursor is an opaque, exchange-provided token that points at the next page of a paginated
// collection. An empty cursor means there is nothing further to fetch.
//
type Cursor string

//
// CallOptions holds the per-call settings accepted by every Client operation.
//
type CallOptions struct {
	Timeout    time.Duration
	BestEffort bool
}

type CallOption func(*CallOptions)

//
// Timeout bounds the duration of each HTTP request made on behalf of the call. Requests that
// exceed it fail with a TimeoutError (wrapped in a TransientError).
//
func Timeout(d time.Duration) CallOption {
	return func(o *CallOptions) {
		o.Timeout = d
	}
}

//
// BestEffort makes a paginated fetch return the records gathered before a failure alongside the
// error, instead of discarding them.
//
func BestEffort() CallOption {
	return func(o *CallOptions) {
		o.BestEffort = true
	}
}

//
// ApplyCallOptions folds the provided options over the defaults.
//
func ApplyCallOptions(defaults CallOptions, opts ...CallOption) CallOptions {
	for _, opt := range opts {
		opt(&defaults)
	}

	return defaults
}
