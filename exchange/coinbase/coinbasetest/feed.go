package coinbasetest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
)

//
// Subscription is a record of one subscribe request received by the fake feed.
//
type Subscription struct {
	Type       string            `json:"type"`
	ProductIDs []string          `json:"product_ids"`
	Channels   []json.RawMessage `json:"channels"`
	Key        string            `json:"key"`
	Signature  string            `json:"signature"`
	Passphrase string            `json:"passphrase"`
	Timestamp  string            `json:"timestamp"`
}

type feed struct {
	mu            sync.Mutex
	upgrader      ws.Upgrader
	conns         map[*ws.Conn]struct{}
	subscriptions []Subscription
	reject        string
	silent        bool
}

func newFeed() *feed {
	return &feed{
		conns: make(map[*ws.Conn]struct{}),
	}
}

//
// RejectSubscriptions makes the feed answer every subsequent subscribe request with an error frame
// carrying the provided reason.
//
func (o *Server) RejectSubscriptions(reason string) {
	o.feed.mu.Lock()
	defer o.feed.mu.Unlock()

	o.feed.reject = reason
}

//
// IgnoreSubscriptions makes the feed swallow every subsequent subscribe request without ever
// acknowledging it.
//
func (o *Server) IgnoreSubscriptions() {
	o.feed.mu.Lock()
	defer o.feed.mu.Unlock()

	o.feed.silent = true
}

//
// Subscriptions returns every subscribe request received so far, in order.
//
func (o *Server) Subscriptions() []Subscription {
	o.feed.mu.Lock()
	defer o.feed.mu.Unlock()

	return append([]Subscription(nil), o.feed.subscriptions...)
}

//
// Subscribers returns the number of feed connections that are currently subscribed.
//
func (o *Server) Subscribers() int {
	o.feed.mu.Lock()
	defer o.feed.mu.Unlock()

	return len(o.feed.conns)
}

//
// AwaitSubscribers blocks until exactly n feed connections are subscribed or the timeout elapses.
// It returns whether or not the count was reached.
//
func (o *Server) AwaitSubscribers(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		if o.Subscribers() == n {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(5 * time.Millisecond)
	}
}

//
// Publish sends the provided message (encoded as JSON) to every subscribed feed connection.
//
func (o *Server) Publish(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return o.PublishRaw(data)
}

//
// PublishRaw sends the provided frame, verbatim, to every subscribed feed connection.
//
func (o *Server) PublishRaw(data []byte) error {
	o.feed.mu.Lock()
	defer o.feed.mu.Unlock()

	for conn := range o.feed.conns {
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			return err
		}
	}

	return nil
}

//
// DropConnections abruptly closes every subscribed feed connection without a close handshake.
//
func (o *Server) DropConnections() {
	o.feed.closeAll()
}

func (o *feed) closeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for conn := range o.conns {
		_ = conn.UnderlyingConn().Close()

		delete(o.conns, conn)
	}
}

//
// serveFeed upgrades the request to a websocket, performs the subscription handshake, and then
// keeps the connection registered until the client goes away.
//
func (o *Server) serveFeed(c *gin.Context) {
	conn, err := o.feed.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	defer conn.Close()

	//
	// Read and record the subscribe request.
	//
	var sub Subscription

	if err := conn.ReadJSON(&sub); err != nil {
		return
	}

	o.feed.mu.Lock()
	o.feed.subscriptions = append(o.feed.subscriptions, sub)
	reject := o.feed.reject
	silent := o.feed.silent
	o.feed.mu.Unlock()

	//
	// Answer it.
	//
	switch {
	case sub.Type != "subscribe":
		reject = "Failed to subscribe"
	case sub.Signature != "" && o.secret != nil:
		if sub.Key != o.key || sub.Passphrase != o.passphrase ||
			!o.validSignature(sub.Timestamp+"GET/users/self/verify", sub.Signature) {
			reject = "Authentication Failed"
		}
	}

	if reject != "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "Failed to subscribe", "reason": reject})

		return
	}

	if !silent {
		ack := map[string]any{
			"type":     "subscriptions",
			"channels": sub.Channels,
		}

		o.feed.mu.Lock()
		err := conn.WriteJSON(ack)
		if err == nil {
			o.feed.conns[conn] = struct{}{}
		}
		o.feed.mu.Unlock()

		if err != nil {
			return
		}
	}

	//
	// Hold the connection open until the client closes it (or it is dropped).
	//
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	o.feed.mu.Lock()
	delete(o.feed.conns, conn)
	o.feed.mu.Unlock()
}
