package neutrino

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lukehollenback/neutrino/stream"
)

//
// UnknownStreamError is returned when addressing a stream that was never configured.
//
type UnknownStreamError struct {
	Name string
}

func (o *UnknownStreamError) Error() string {
	return fmt.Sprintf("no stream named %q has been configured", o.Name)
}

type entry struct {
	sub      stream.Subscription
	consumer *stream.Consumer

	// NOTE ~> Guarded by the coordinator's mutex. Counts StartStream calls that have looked the
	//  entry up but may not have claimed the consumer yet.
	starting int
}

//
// ConfigureStream registers a named stream with the provided subscription. Configuring a name that
// already exists replaces it, which is also the way to bring a killed stream back. A stream that
// is still connecting, streaming, or closing cannot be replaced.
//
func (o *Neutrino) ConfigureStream(name string, sub stream.Subscription) error {
	if name == "" {
		return errors.New("a stream name is required")
	}

	if err := sub.Validate(); err != nil {
		return fmt.Errorf("stream %q: %w", name, err)
	}

	if sub.Authenticate && o.signer == nil {
		return fmt.Errorf("stream %q authenticates but no credentials are configured", name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	if existing, ok := o.streams[name]; ok {
		if existing.starting > 0 {
			return &stream.AlreadyRunningError{Name: name, State: stream.Connecting}
		}

		switch state := existing.consumer.State(); state {
		case stream.Idle, stream.Faulted, stream.Terminated:
			logger.Printf("Overwriting the configuration of stream %q.", name)
		default:
			return &stream.AlreadyRunningError{Name: name, State: state}
		}
	}

	opts := []stream.Option{
		stream.WithClock(o.clock),
		stream.WithHandshakeTimeout(o.cfg.HandshakeTimeout),
		stream.WithBuffer(o.cfg.StreamBuffer),
	}

	if o.signer != nil {
		opts = append(opts, stream.WithSigner(o.signer))
	}

	o.streams[name] = &entry{
		sub:      sub,
		consumer: stream.New(name, o.cfg.WSBaseURL, append(opts, o.options...)...),
	}

	logger.Printf("Stream %q configured. (Channels: %v, Products: %v)", name, sub.Channels, sub.ProductIDs)

	return nil
}

//
// StartStream connects the named stream and begins handing its messages to the provided handler.
// It returns once the subscription has been acknowledged.
//
func (o *Neutrino) StartStream(ctx context.Context, name string, handler stream.Handler) error {
	o.mu.Lock()

	entry, err := o.lookupLocked(name)
	if err != nil {
		o.mu.Unlock()

		return err
	}

	entry.starting++

	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		entry.starting--
		o.mu.Unlock()
	}()

	return entry.consumer.Start(ctx, entry.sub, handler)
}

//
// StopStream gracefully closes the named stream. A channel that can be blocked on for a "true"
// value, which indicates that the in-flight handler call has returned, is returned.
//
func (o *Neutrino) StopStream(name string) (<-chan bool, error) {
	entry, err := o.lookup(name)
	if err != nil {
		return nil, err
	}

	return entry.consumer.Stop(), nil
}

//
// KillStream immediately tears the named stream down. It cannot be started again until it is
// reconfigured.
//
func (o *Neutrino) KillStream(name string) (<-chan bool, error) {
	entry, err := o.lookup(name)
	if err != nil {
		return nil, err
	}

	return entry.consumer.Kill(), nil
}

func (o *Neutrino) StreamState(name string) (stream.State, error) {
	entry, err := o.lookup(name)
	if err != nil {
		return stream.Idle, err
	}

	return entry.consumer.State(), nil
}

func (o *Neutrino) StreamStats(name string) (stream.Stats, error) {
	entry, err := o.lookup(name)
	if err != nil {
		return stream.Stats{}, err
	}

	return entry.consumer.Stats(), nil
}

//
// Streams returns the names of every configured stream in lexical order.
//
func (o *Neutrino) Streams() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ret := make([]string, 0, len(o.streams))
	for name := range o.streams {
		ret = append(ret, name)
	}

	sort.Strings(ret)

	return ret
}

func (o *Neutrino) lookup(name string) (*entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.lookupLocked(name)
}

//
// lookupLocked is lookup for callers that already hold the coordinator's mutex.
//
func (o *Neutrino) lookupLocked(name string) (*entry, error) {
	if o.closed {
		return nil, ErrClosed
	}

	entry, ok := o.streams[name]
	if !ok {
		return nil, &UnknownStreamError{Name: name}
	}

	return entry, nil
}
