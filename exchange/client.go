package exchange

import (
	"context"
	"encoding/json"
	"net/url"
)

//
// CandleQuery describes a time-range candle fetch. A zero Range means "the most recent window that
// a single request can cover".
//
type CandleQuery struct {
	ProductID   string
	Granularity Granularity
	Range       TimeRange
	Descending  bool
}

//
// Client generically provides an interface to an object that can be used to interact with a
// cryptocurrency exchange's regular REST API.
//
// Implementations never retry. Whenever an endpoint fails the returned error is classified as a
// TransientError or a PermanentError (possibly wrapped with page or sub-range context) so that the
// caller can decide whether to try again.
//
type Client interface {
	Accounts(ctx context.Context, filters url.Values, opts ...CallOption) ([]Account, error)

	Account(ctx context.Context, id string, opts ...CallOption) (Account, error)

	Ledger(ctx context.Context, accountID string, filters url.Values, opts ...CallOption) ([]LedgerEntry, error)

	Orders(ctx context.Context, filters url.Values, opts ...CallOption) ([]Order, error)

	Transfers(ctx context.Context, filters url.Values, opts ...CallOption) ([]Transfer, error)

	Fees(ctx context.Context, opts ...CallOption) (Fees, error)

	//
	// Fetch pulls every page of an arbitrary paginated endpoint without decoding its records.
	//
	Fetch(ctx context.Context, path string, filters url.Values, opts ...CallOption) ([]json.RawMessage, error)

	//
	// Candles pulls the candles of the queried range, splitting it into as many requests as the
	// exchange's per-request limit requires.
	//
	Candles(ctx context.Context, query CandleQuery, opts ...CallOption) ([]Candle, error)
}
