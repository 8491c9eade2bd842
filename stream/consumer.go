package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/lukehollenback/neutrino/constants"
	"github.com/lukehollenback/neutrino/exchange"
	"github.com/lukehollenback/neutrino/exchange/coinbase"
	"github.com/lukehollenback/neutrino/structs/evictingqueue"
)

const (
	Name = "≪stream≫"
)

var (
	logger *log.Logger
)

func init() {
	logger = log.New(log.Writer(), fmt.Sprintf(constants.LogPrefixFmt, Name), log.Ldate|log.Ltime|log.Lmsgprefix)
}

//
// Handler is invoked once per delivered message, in arrival order, from a single goroutine.
//
type Handler func(Message)

//
// Stats is a snapshot of a consumer's counters. The counters accumulate across sessions.
//
type Stats struct {
	State      State
	SessionID  uuid.UUID
	Received   uint64
	Dispatched uint64
	Dropped    uint64
	Malformed  uint64
	Buffered   int
}

//
// Consumer maintains one websocket connection to the Coinbase Exchange feed per session and hands
// every message it receives to a handler.
//
// The socket is drained by a reader goroutine into a bounded evicting queue, and a dispatcher
// goroutine feeds the handler from that queue. A slow handler therefore never stalls the socket.
// When the queue is full, the oldest message is dropped and reported.
//
type Consumer struct {
	name             string
	url              string
	signer           *coinbase.Signer
	clock            clock.Clock
	dialer           *ws.Dialer
	handshakeTimeout time.Duration
	buffer           int
	onDrop           func(BackpressureDrop)

	mu    *sync.Mutex
	state State
	sess  *session
	sub   Subscription

	received   atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
	malformed  atomic.Uint64
}

//
// session holds everything that lives exactly as long as one connection.
//
type session struct {
	id      uuid.UUID
	conn    *ws.Conn
	handler Handler
	queue   *evictingqueue.EvictingQueue[Message]
	cancel  context.CancelFunc

	chStop   chan struct{}
	chKill   chan struct{}
	stopOnce sync.Once
	killOnce sync.Once

	// NOTE ~> The following are guarded by the owning consumer's mutex.
	waiters  []chan bool
	finished bool
}

func (o *session) stop() {
	o.stopOnce.Do(func() {
		close(o.chStop)
		o.cancel()
	})
}

func (o *session) kill() {
	o.killOnce.Do(func() {
		close(o.chKill)
		o.cancel()
	})
}

type Option func(*Consumer)

//
// WithSigner provides the key set used to authenticate subscriptions that ask for it.
//
func WithSigner(signer *coinbase.Signer) Option {
	return func(o *Consumer) {
		o.signer = signer
	}
}

func WithClock(clk clock.Clock) Option {
	return func(o *Consumer) {
		o.clock = clk
	}
}

func WithDialer(dialer *ws.Dialer) Option {
	return func(o *Consumer) {
		o.dialer = dialer
	}
}

//
// WithHandshakeTimeout bounds how long Start waits for the connection to be established and its
// subscriptions acknowledged.
//
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *Consumer) {
		o.handshakeTimeout = timeout
	}
}

//
// WithBuffer sets how many messages may wait for the handler before the oldest are dropped.
//
func WithBuffer(size int) Option {
	return func(o *Consumer) {
		o.buffer = size
	}
}

//
// WithDropHandler registers a callback that is invoked (from the reader goroutine) once for every
// message dropped due to backpressure. It must not block.
//
func WithDropHandler(fn func(BackpressureDrop)) Option {
	return func(o *Consumer) {
		o.onDrop = fn
	}
}

//
// New instantiates an idle consumer of the feed at the provided URL.
//
func New(name string, url string, opts ...Option) *Consumer {
	dialer := *ws.DefaultDialer

	o := &Consumer{
		name:             name,
		url:              url,
		clock:            clock.New(),
		dialer:           &dialer,
		handshakeTimeout: constants.DefaultHandshakeTimeout,
		buffer:           constants.DefaultStreamBuffer,
		mu:               &sync.Mutex{},
		state:            Idle,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *Consumer) Name() string {
	return o.name
}

func (o *Consumer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

//
// Subscription returns the subscription of the current (or most recent) session.
//
func (o *Consumer) Subscription() Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.sub.clone()
}

func (o *Consumer) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := Stats{
		State:      o.state,
		Received:   o.received.Load(),
		Dispatched: o.dispatched.Load(),
		Dropped:    o.dropped.Load(),
		Malformed:  o.malformed.Load(),
	}

	if o.sess != nil {
		stats.SessionID = o.sess.id
		stats.Buffered = o.sess.queue.Len()
	}

	return stats
}

//
// Start connects to the feed, subscribes, and waits for the subscriptions to be acknowledged
// before handing every subsequent message to the provided handler. The provided context only
// bounds the handshake. Once streaming, the connection lives until Stop or Kill is called or the
// feed drops it.
//
// Start is only accepted from the Idle and Faulted states.
//
func (o *Consumer) Start(ctx context.Context, sub Subscription, handler Handler) error {
	if handler == nil {
		return errors.New("a stream handler is required")
	}

	if err := sub.Validate(); err != nil {
		return err
	}

	//
	// Claim the consumer for a new session.
	//
	o.mu.Lock()

	if o.state == Terminated {
		o.mu.Unlock()

		return ErrTerminated
	}

	if !o.state.Startable() {
		state := o.state
		o.mu.Unlock()

		return &AlreadyRunningError{Name: o.name, State: state}
	}

	if sub.Authenticate && o.signer == nil {
		o.mu.Unlock()

		return &ConnectError{URL: o.url, Reason: "authentication requested but no credentials were provided"}
	}

	hctx, cancel := context.WithCancel(ctx)

	sess := &session{
		id:      uuid.New(),
		handler: handler,
		queue:   evictingqueue.New[Message](o.buffer),
		cancel:  cancel,
		chStop:  make(chan struct{}),
		chKill:  make(chan struct{}),
	}

	o.state = Connecting
	o.sess = sess
	o.sub = sub.clone()

	o.mu.Unlock()

	logger.Printf(
		"Connecting %q to %s. (Session: %s, Channels: %v, Products: %v)",
		o.name, o.url, sess.id, sub.Channels, sub.ProductIDs,
	)

	//
	// Perform the handshake and then settle on the resulting state.
	//
	conn, err := o.handshake(hctx, sub)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err == nil && o.state != Connecting {
		_ = conn.Close()

		err = &ConnectError{URL: o.url, Reason: "stopped before the subscriptions were acknowledged"}
	}

	if err != nil {
		if o.state == Connecting || o.state == Closing {
			o.state = Idle
		}

		cancel()
		o.finish(sess)

		logger.Printf("Failed to start %q. (Session: %s) (Error: %s)", o.name, sess.id, err)

		return err
	}

	sess.conn = conn
	o.state = Streaming

	go o.run(sess)

	logger.Printf("Subscribed %q. (Session: %s)", o.name, sess.id)

	return nil
}

//
// Stop gracefully closes the connection. The handler call in flight (if any) is allowed to finish
// but nothing further is dispatched. The returned channel receives once the consumer is idle
// again. Stopping an idle (or faulted, or terminated) consumer does nothing.
//
func (o *Consumer) Stop() <-chan bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case Connecting, Streaming:
		logger.Printf("Stopping %q... (Session: %s)", o.name, o.sess.id)

		o.state = Closing
		o.sess.stop()

		return o.wait(o.sess)

	case Closing:
		return o.wait(o.sess)
	}

	return o.wait(nil)
}

//
// Kill tears the connection down immediately, abandoning buffered messages and the handler call in
// flight. A killed consumer can never be started again. Killing an idle consumer does nothing.
//
func (o *Consumer) Kill() <-chan bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case Idle:
		return o.wait(nil)

	case Connecting, Streaming, Closing:
		logger.Printf("Killing %q. (Session: %s)", o.name, o.sess.id)

		o.state = Terminated
		o.sess.kill()

		return o.wait(o.sess)
	}

	o.state = Terminated

	return o.wait(nil)
}

//
// wait returns a channel that receives once the provided session has wound down. The consumer's
// mutex must be held.
//
func (o *Consumer) wait(sess *session) <-chan bool {
	ch := make(chan bool, 1)

	if sess == nil || sess.finished {
		ch <- true

		return ch
	}

	sess.waiters = append(sess.waiters, ch)

	return ch
}

//
// finish marks the provided session as wound down and releases anybody waiting on it. The
// consumer's mutex must be held.
//
func (o *Consumer) finish(sess *session) {
	if sess.finished {
		return
	}

	sess.finished = true

	for _, ch := range sess.waiters {
		ch <- true
	}

	sess.waiters = nil

	if o.sess == sess {
		o.sess = nil
	}
}

//
// handshake dials the feed, sends the subscribe request, and waits for its acknowledgement.
//
func (o *Consumer) handshake(ctx context.Context, sub Subscription) (*ws.Conn, error) {
	hctx, cancel := o.clock.WithTimeout(ctx, o.handshakeTimeout)
	defer cancel()

	conn, _, err := o.dialer.DialContext(hctx, o.url, nil)
	if err != nil {
		return nil, o.connectError(hctx, "dial failed", err)
	}

	//
	// Make sure a blocked read gives up as soon as the handshake is cancelled or times out.
	//
	unwatch := context.AfterFunc(hctx, func() {
		_ = conn.Close()
	})

	fail := func(reason string, err error) (*ws.Conn, error) {
		unwatch()
		_ = conn.Close()

		return nil, o.connectError(hctx, reason, err)
	}

	//
	// Subscribe (signing the request if asked to).
	//
	req := sub.request()

	if sub.Authenticate {
		headers := o.signer.SignFeed(o.clock.Now())

		req.Key = headers.Key
		req.Signature = headers.Signature
		req.Passphrase = headers.Passphrase
		req.Timestamp = headers.Timestamp
	}

	if err := conn.WriteJSON(req); err != nil {
		return fail("failed to send the subscribe request", err)
	}

	//
	// Wait for the acknowledgement. Anything that arrives ahead of it is discarded.
	//
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fail("subscriptions were not acknowledged", err)
		}

		msg, err := ParseMessage(data)
		if err != nil {
			o.malformed.Add(1)

			logger.Printf("Skipped a malformed frame during the handshake of %q. (Error: %s)", o.name, err)

			continue
		}

		switch msg.Kind {
		case Subscriptions:
			if !unwatch() {
				return fail("handshake abandoned", hctx.Err())
			}

			return conn, nil

		case Error:
			return fail(fmt.Sprintf("subscription rejected: %s (%s)", msg.Text, msg.Reason), nil)
		}
	}
}

func (o *Consumer) connectError(ctx context.Context, reason string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ConnectError{
			URL:    o.url,
			Reason: reason,
			Err:    &exchange.TimeoutError{Op: "feed handshake", After: o.handshakeTimeout},
		}
	}

	if ctx.Err() != nil {
		err = ctx.Err()
	}

	return &ConnectError{URL: o.url, Reason: reason, Err: err}
}

//
// run supervises one streaming session until it is stopped, killed, or dropped by the feed.
//
func (o *Consumer) run(sess *session) {
	chReadErr := make(chan error, 1)
	chDispatched := make(chan struct{})

	go o.read(sess, chReadErr)
	go o.dispatch(sess, chDispatched)

	select {
	case err := <-chReadErr:
		//
		// The connection went away. Unless somebody asked for that, raise a fault through the
		// handler once everything buffered ahead of it has been delivered.
		//
		o.mu.Lock()
		requested := o.state != Streaming
		o.mu.Unlock()

		if !requested {
			logger.Printf("Lost the connection of %q. (Session: %s) (Error: %s)", o.name, sess.id, err)

			o.enqueue(sess, Message{
				Kind:       Fault,
				Type:       "fault",
				Stream:     o.name,
				SessionID:  sess.id,
				ReceivedAt: o.clock.Now(),
				Err:        &DisconnectError{Name: o.name, Err: err},
			})
		}

		_ = sess.conn.Close()

		select {
		case <-chDispatched:
		case <-sess.chKill:
		}

		o.mu.Lock()

		switch o.state {
		case Streaming:
			o.state = Faulted
		case Closing:
			o.state = Idle
		}

	case <-sess.chStop:
		//
		// Say goodbye properly and let the in-flight handler call finish.
		//
		_ = sess.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			o.clock.Now().Add(time.Second),
		)
		_ = sess.conn.Close()

		<-chReadErr

		select {
		case <-chDispatched:
		case <-sess.chKill:
		}

		o.mu.Lock()

		if o.state == Closing {
			o.state = Idle
		}

		logger.Printf("Stopped %q. (Session: %s)", o.name, sess.id)

	case <-sess.chKill:
		_ = sess.conn.Close()

		abandoned := sess.queue.Clear()

		<-chReadErr

		o.mu.Lock()

		logger.Printf("Killed %q. (Session: %s, Abandoned: %d)", o.name, sess.id, abandoned)
	}

	o.finish(sess)
	o.mu.Unlock()
}

//
// read drains the socket into the session's queue until the connection fails or is closed.
//
func (o *Consumer) read(sess *session, chErr chan<- error) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			chErr <- err

			return
		}

		o.received.Add(1)

		msg, err := ParseMessage(data)
		if err != nil {
			o.malformed.Add(1)

			logger.Printf("Skipped a malformed frame on %q. (Session: %s) (Error: %s)", o.name, sess.id, err)

			continue
		}

		msg.Stream = o.name
		msg.SessionID = sess.id
		msg.ReceivedAt = o.clock.Now()

		o.enqueue(sess, msg)
	}
}

//
// enqueue buffers a message for the dispatcher, reporting the message it displaces (if any).
//
func (o *Consumer) enqueue(sess *session, msg Message) {
	evicted, ok := sess.queue.Add(msg)
	if !ok {
		return
	}

	total := o.dropped.Add(1)

	if o.onDrop != nil {
		o.onDrop(BackpressureDrop{
			Stream:    o.name,
			SessionID: sess.id,
			Dropped:   evicted,
			Total:     total,
		})
	}
}

//
// dispatch feeds buffered messages to the handler, one at a time and in order, until the session is
// stopped or killed or a fault has been delivered.
//
func (o *Consumer) dispatch(sess *session, chDone chan<- struct{}) {
	defer close(chDone)

	for {
		select {
		case <-sess.chStop:
			return
		case <-sess.chKill:
			return
		case <-sess.queue.Ready():
		}

		for {
			select {
			case <-sess.chStop:
				return
			case <-sess.chKill:
				return
			default:
			}

			msg, ok := sess.queue.Poll()
			if !ok {
				break
			}

			sess.handler(msg)

			o.dispatched.Add(1)

			if msg.Kind == Fault {
				return
			}
		}
	}
}
