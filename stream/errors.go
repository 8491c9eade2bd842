package stream

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

//
// ErrTerminated is returned when starting a consumer that has been killed.
//
var ErrTerminated = errors.New("stream has been terminated and cannot be restarted")

//
// AlreadyRunningError is returned when starting a consumer that is not idle (or faulted). The
// existing connection is left untouched.
//
type AlreadyRunningError struct {
	Name  string
	State State
}

func (o *AlreadyRunningError) Error() string {
	return fmt.Sprintf("stream %q is already running (state: %s)", o.Name, o.State)
}

//
// ConnectError is returned when a connection to the feed could not be established or its
// subscriptions were not acknowledged.
//
type ConnectError struct {
	URL    string
	Reason string
	Err    error
}

func (o *ConnectError) Error() string {
	if o.Err != nil {
		return fmt.Sprintf("failed to connect to %s: %s: %s", o.URL, o.Reason, o.Err)
	}

	return fmt.Sprintf("failed to connect to %s: %s", o.URL, o.Reason)
}

func (o *ConnectError) Unwrap() error {
	return o.Err
}

//
// DisconnectError is carried by the Fault message delivered when the feed connection drops without
// having been asked to.
//
type DisconnectError struct {
	Name string
	Err  error
}

func (o *DisconnectError) Error() string {
	return fmt.Sprintf("stream %q disconnected: %s", o.Name, o.Err)
}

func (o *DisconnectError) Unwrap() error {
	return o.Err
}

//
// BackpressureDrop is the event raised each time a buffered message is evicted to make room for a
// newer one because the handler could not keep up.
//
type BackpressureDrop struct {
	Stream    string
	SessionID uuid.UUID
	Dropped   Message
	Total     uint64
}

func (o BackpressureDrop) String() string {
	return fmt.Sprintf(
		"stream %q dropped a %s message (session: %s, total dropped: %d)",
		o.Stream, o.Dropped.Kind, o.SessionID, o.Total,
	)
}
