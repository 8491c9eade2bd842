package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	coinbasepro "github.com/preichenberger/go-coinbasepro/v2"
	"github.com/shopspring/decimal"
)

//
// Kind is an enum of the message types delivered by the feed, plus Fault, which is raised locally
// when the connection drops.
//
type Kind int

const (
	Unknown Kind = iota
	Subscriptions
	Heartbeat
	Ticker
	Snapshot
	L2Update
	Error
	Received
	Open
	Done
	Match
	LastMatch
	Change
	Activate
	Fault
)

var kindsByType = map[string]Kind{
	"subscriptions": Subscriptions,
	"heartbeat":     Heartbeat,
	"ticker":        Ticker,
	"snapshot":      Snapshot,
	"l2update":      L2Update,
	"error":         Error,
	"received":      Received,
	"open":          Open,
	"done":          Done,
	"match":         Match,
	"last_match":    LastMatch,
	"change":        Change,
	"activate":      Activate,
}

func (o Kind) String() string {
	if o == Fault {
		return "fault"
	}

	for name, kind := range kindsByType {
		if kind == o {
			return name
		}
	}

	return "unknown"
}

//
// IsOrderUpdate returns whether or not the kind belongs to the full (order lifecycle) channel.
//
func (o Kind) IsOrderUpdate() bool {
	switch o {
	case Received, Open, Done, Match, LastMatch, Change, Activate:
		return true
	}

	return false
}

//
// Message is one typed message delivered to a stream's handler.
//
// Feed holds the decoded message as modeled by the go-coinbasepro library. Raw holds the frame
// exactly as it arrived so that handlers can decode fields the model does not carry.
//
type Message struct {
	Kind       Kind
	Type       string
	Stream     string
	SessionID  uuid.UUID
	ReceivedAt time.Time
	ProductID  string
	Sequence   int64
	Text       string
	Reason     string
	Feed       coinbasepro.Message
	Raw        json.RawMessage
	Err        error
}

//
// Time returns the exchange-provided timestamp of the message (zero if it did not carry one).
//
func (o Message) Time() time.Time {
	return o.Feed.Time.Time()
}

//
// Price parses the price carried by ticker and match messages.
//
func (o Message) Price() (decimal.Decimal, error) {
	if o.Feed.Price == "" {
		return decimal.Zero, fmt.Errorf("%s message carries no price", o.Kind)
	}

	return decimal.NewFromString(o.Feed.Price)
}

func (o Message) String() string {
	switch o.Kind {
	case Fault:
		return fmt.Sprintf("fault (session: %s): %s", o.SessionID, o.Err)
	case Error:
		return fmt.Sprintf("error: %s (%s)", o.Text, o.Reason)
	}

	if o.ProductID != "" {
		return fmt.Sprintf("%s %s #%d", o.Kind, o.ProductID, o.Sequence)
	}

	return o.Kind.String()
}

//
// envelope holds the fields every feed frame is expected to be classifiable by.
//
type envelope struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Sequence  int64  `json:"sequence"`
	Message   string `json:"message"`
	Reason    string `json:"reason"`
}

//
// ParseMessage decodes one frame from the feed. Frames that are not JSON objects with a type are
// malformed. Frames of a type this package does not know come back with the Unknown kind.
//
func ParseMessage(data []byte) (Message, error) {
	var env envelope

	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("malformed frame: %w", err)
	}

	if env.Type == "" {
		return Message{}, errors.New("malformed frame: missing type")
	}

	msg := Message{
		Kind:      kindsByType[env.Type],
		Type:      env.Type,
		ProductID: env.ProductID,
		Sequence:  env.Sequence,
		Text:      env.Message,
		Reason:    env.Reason,
		Raw:       append(json.RawMessage(nil), data...),
	}

	//
	// Decode the typed view of known messages. Unknown types are delivered without one since their
	// shape is anybody's guess.
	//
	if msg.Kind != Unknown {
		if err := json.Unmarshal(data, &msg.Feed); err != nil {
			return Message{}, fmt.Errorf("malformed %s frame: %w", env.Type, err)
		}
	}

	return msg, nil
}

//
// subscribeRequest is the first frame sent on a new feed connection.
//
type subscribeRequest struct {
	Type       string                       `json:"type"`
	ProductIDs []string                     `json:"product_ids"`
	Channels   []coinbasepro.MessageChannel `json:"channels"`
	Key        string                       `json:"key,omitempty"`
	Signature  string                       `json:"signature,omitempty"`
	Passphrase string                       `json:"passphrase,omitempty"`
	Timestamp  string                       `json:"timestamp,omitempty"`
}
