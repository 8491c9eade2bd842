package stream

//
// State is an enum of the lifecycle states of a stream consumer.
//
type State int

const (
	Idle       State = iota // The consumer has no connection and may be started.
	Connecting              // The consumer is dialing the feed and waiting for its subscriptions to be acknowledged.
	Streaming               // The consumer is subscribed and dispatching messages to its handler.
	Closing                 // The consumer has been asked to stop and is letting its in-flight handler call finish.
	Terminated              // The consumer has been killed and can never be started again.
	Faulted                 // The feed connection dropped without being asked to. The consumer may be started again.
)

var stateNames = map[State]string{
	Idle:       "idle",
	Connecting: "connecting",
	Streaming:  "streaming",
	Closing:    "closing",
	Terminated: "terminated",
	Faulted:    "faulted",
}

func (o State) String() string {
	if name, ok := stateNames[o]; ok {
		return name
	}

	return "unknown"
}

//
// Startable returns whether or not a consumer in this state accepts a call to Start.
//
func (o State) Startable() bool {
	return o == Idle || o == Faulted
}
