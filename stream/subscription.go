package stream

import (
	"errors"

	coinbasepro "github.com/preichenberger/go-coinbasepro/v2"
)

//
// Subscription describes what a stream subscribes to. It is copied when a stream starts and is
// never changed while the connection is open.
//
type Subscription struct {
	Channels     []string `yaml:"channels"`
	ProductIDs   []string `yaml:"product_ids"`
	Authenticate bool     `yaml:"authenticate"`
}

func (o Subscription) Validate() error {
	if len(o.Channels) == 0 {
		return errors.New("a subscription needs at least one channel")
	}

	if len(o.ProductIDs) == 0 {
		return errors.New("a subscription needs at least one product id")
	}

	for _, v := range o.Channels {
		if v == "" {
			return errors.New("a subscription cannot name an empty channel")
		}
	}

	for _, v := range o.ProductIDs {
		if v == "" {
			return errors.New("a subscription cannot name an empty product id")
		}
	}

	return nil
}

func (o Subscription) clone() Subscription {
	return Subscription{
		Channels:     append([]string(nil), o.Channels...),
		ProductIDs:   append([]string(nil), o.ProductIDs...),
		Authenticate: o.Authenticate,
	}
}

//
// request builds the unsigned subscribe request for the subscription.
//
func (o Subscription) request() subscribeRequest {
	channels := make([]coinbasepro.MessageChannel, 0, len(o.Channels))

	for _, name := range o.Channels {
		channels = append(channels, coinbasepro.MessageChannel{
			Name:       name,
			ProductIds: o.ProductIDs,
		})
	}

	return subscribeRequest{
		Type:       "subscribe",
		ProductIDs: o.ProductIDs,
		Channels:   channels,
	}
}
