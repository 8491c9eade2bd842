package exchange

import (
	"errors"
	"fmt"
	"time"
)

//
// InvalidCredentialsError indicates that the provided API key set cannot be used to sign requests.
//
type InvalidCredentialsError struct {
	Reason string
	Err    error
}

func (o *InvalidCredentialsError) Error() string {
	if o.Err != nil {
		return fmt.Sprintf("invalid credentials: %s: %s", o.Reason, o.Err)
	}

	return fmt.Sprintf("invalid credentials: %s", o.Reason)
}

func (o *InvalidCredentialsError) Unwrap() error {
	return o.Err
}

//
// TimeoutError indicates that an operation did not complete within its allotted time. It always
// arrives wrapped in a TransientError.
//
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (o *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", o.Op, o.After)
}

//
// TransientError wraps failures that may succeed if retried: rate limiting, server errors,
// network failures, and timeouts. RetryAfter holds the wait suggested by the exchange (zero if it
// did not suggest one).
//
type TransientError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (o *TransientError) Error() string {
	if o.StatusCode != 0 {
		return fmt.Sprintf("transient failure (status %d): %s", o.StatusCode, o.Err)
	}

	return fmt.Sprintf("transient failure: %s", o.Err)
}

func (o *TransientError) Unwrap() error {
	return o.Err
}

//
// PermanentError wraps failures that will not succeed if retried as-is: client errors other than
// rate limiting and malformed requests or responses.
//
type PermanentError struct {
	StatusCode int
	Err        error
}

func (o *PermanentError) Error() string {
	if o.StatusCode != 0 {
		return fmt.Sprintf("permanent failure (status %d): %s", o.StatusCode, o.Err)
	}

	return fmt.Sprintf("permanent failure: %s", o.Err)
}

func (o *PermanentError) Unwrap() error {
	return o.Err
}

//
// PageError identifies the page of a paginated fetch that failed.
//
type PageError struct {
	Resource string
	Page     int
	Err      error
}

func (o *PageError) Error() string {
	return fmt.Sprintf("failed to fetch page %d of %s: %s", o.Page, o.Resource, o.Err)
}

func (o *PageError) Unwrap() error {
	return o.Err
}

//
// PaginationLoopError indicates that the exchange handed back the same cursor on two consecutive
// pages.
//
type PaginationLoopError struct {
	Resource string
	Page     int
	Cursor   Cursor
}

func (o *PaginationLoopError) Error() string {
	return fmt.Sprintf(
		"pagination of %s looped: page %d repeated cursor %q",
		o.Resource, o.Page, string(o.Cursor),
	)
}

//
// SubRangeError identifies the sub-range of a time-range fetch that failed. Fetched holds the
// candles of the sub-ranges that completed before it, and Remaining spans from the failed sub-range
// through the end of the whole query, so that a caller can resume instead of starting over.
//
type SubRangeError struct {
	Index     int
	Count     int
	Range     TimeRange
	Remaining TimeRange
	Fetched   []Candle
	Err       error
}

func (o *SubRangeError) Error() string {
	return fmt.Sprintf("failed to fetch sub-range %d of %d (%s): %s", o.Index+1, o.Count, o.Range, o.Err)
}

func (o *SubRangeError) Unwrap() error {
	return o.Err
}

//
// IsTransient returns whether or not the error chain contains a TransientError.
//
func IsTransient(err error) bool {
	var transient *TransientError

	return errors.As(err, &transient)
}

//
// IsPermanent returns whether or not the error chain contains a PermanentError.
//
func IsPermanent(err error) bool {
	var permanent *PermanentError

	return errors.As(err, &permanent)
}

//
// RetryAfter returns the wait suggested by the exchange, if the error chain carries one.
//
func RetryAfter(err error) (time.Duration, bool) {
	var transient *TransientError

	if errors.As(err, &transient) && transient.RetryAfter > 0 {
		return transient.RetryAfter, true
	}

	return 0, false
}
