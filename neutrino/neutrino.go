package neutrino

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/lukehollenback/neutrino/config"
	"github.com/lukehollenback/neutrino/constants"
	"github.com/lukehollenback/neutrino/exchange"
	"github.com/lukehollenback/neutrino/exchange/coinbase"
	"github.com/lukehollenback/neutrino/stream"
)

const (
	Name = "≪neutrino≫"

	//
	// AccountIDFilter names the filter that Fetch moves into the path when pulling a ledger.
	//
	AccountIDFilter = "account_id"
)

var (
	logger *log.Logger

	ErrClosed = errors.New("neutrino has been closed")
)

func init() {
	logger = log.New(
		log.Writer(),
		fmt.Sprintf(constants.LogPrefixFmt, Name),
		log.Ldate|log.Ltime|log.Lmsgprefix,
	)
}

//
// Neutrino is the coordinator that a caller works with. It owns a single exchange client, which it
// calls with a retry policy wrapped around every operation, and a registry of named streams.
//
type Neutrino struct {
	mu      *sync.Mutex
	cfg     config.Config
	client  exchange.Client
	signer  *coinbase.Signer
	clock   clock.Clock
	http    *http.Client
	timer   func() backoff.Timer
	streams map[string]*entry
	options []stream.Option
	closed  bool
}

type Option func(*Neutrino)

//
// WithClient replaces the exchange client that would otherwise be composed from the configuration.
//
func WithClient(client exchange.Client) Option {
	return func(o *Neutrino) {
		o.client = client
	}
}

func WithClock(clk clock.Clock) Option {
	return func(o *Neutrino) {
		o.clock = clk
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *Neutrino) {
		o.http = httpClient
	}
}

//
// WithStreamOptions appends options that every configured stream consumer is created with.
//
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *Neutrino) {
		o.options = append(o.options, opts...)
	}
}

//
// New validates the provided configuration and builds a coordinator from it. Any streams named by
// the configuration are configured, but not started.
//
func New(cfg config.Config, opts ...Option) (*Neutrino, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Neutrino{
		mu:      &sync.Mutex{},
		cfg:     cfg,
		clock:   clock.New(),
		streams: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.timer == nil {
		o.timer = func() backoff.Timer {
			return &clockTimer{clock: o.clock}
		}
	}

	//
	// Only sign when credentials were provided. Without them, public endpoints and unauthenticated
	// streams still work.
	//
	if creds := cfg.Credentials(); !creds.Empty() {
		signer, err := coinbase.NewSigner(creds)
		if err != nil {
			return nil, err
		}

		o.signer = signer
	}

	if o.client == nil {
		clientOpts := []coinbase.Option{
			coinbase.WithClock(o.clock),
			coinbase.WithTimeout(cfg.DefaultTimeout),
			coinbase.WithMaxCandles(cfg.MaxRecordsPerCandleRequest),
		}

		if o.http != nil {
			clientOpts = append(clientOpts, coinbase.WithHTTPClient(o.http))
		}

		o.client = coinbase.NewClient(cfg.RESTBaseURL, o.signer, clientOpts...)
	}

	for name, sub := range cfg.Streams {
		if err := o.ConfigureStream(name, sub); err != nil {
			return nil, err
		}
	}

	logger.Printf("Ready. (REST: %s, Feed: %s, Authenticated: %t)", cfg.RESTBaseURL, cfg.WSBaseURL, o.signer != nil)

	return o, nil
}

func (o *Neutrino) newTimer() backoff.Timer {
	return o.timer()
}

func (o *Neutrino) Accounts(ctx context.Context, filters url.Values, opts ...exchange.CallOption) ([]exchange.Account, error) {
	return retry(ctx, o, "accounts", func() ([]exchange.Account, error) {
		return o.client.Accounts(ctx, filters, opts...)
	})
}

func (o *Neutrino) Account(ctx context.Context, id string, opts ...exchange.CallOption) (exchange.Account, error) {
	return retry(ctx, o, "account", func() (exchange.Account, error) {
		return o.client.Account(ctx, id, opts...)
	})
}

func (o *Neutrino) Ledger(
	ctx context.Context,
	accountID string,
	filters url.Values,
	opts ...exchange.CallOption,
) ([]exchange.LedgerEntry, error) {
	return retry(ctx, o, "ledger", func() ([]exchange.LedgerEntry, error) {
		return o.client.Ledger(ctx, accountID, filters, opts...)
	})
}

func (o *Neutrino) Orders(ctx context.Context, filters url.Values, opts ...exchange.CallOption) ([]exchange.Order, error) {
	return retry(ctx, o, "orders", func() ([]exchange.Order, error) {
		return o.client.Orders(ctx, filters, opts...)
	})
}

func (o *Neutrino) Transfers(ctx context.Context, filters url.Values, opts ...exchange.CallOption) ([]exchange.Transfer, error) {
	return retry(ctx, o, "transfers", func() ([]exchange.Transfer, error) {
		return o.client.Transfers(ctx, filters, opts...)
	})
}

func (o *Neutrino) Fees(ctx context.Context, opts ...exchange.CallOption) (exchange.Fees, error) {
	return retry(ctx, o, "fees", func() (exchange.Fees, error) {
		return o.client.Fees(ctx, opts...)
	})
}

//
// Fetch pulls every raw record of the named resource. Pulling a ledger requires the account to be
// named by the AccountIDFilter filter, which is moved into the request path rather than sent along
// as a query parameter.
//
func (o *Neutrino) Fetch(
	ctx context.Context,
	resource exchange.Resource,
	filters url.Values,
	opts ...exchange.CallOption,
) ([]json.RawMessage, error) {
	path, filters, err := resourcePath(resource, filters)
	if err != nil {
		return nil, err
	}

	return retry(ctx, o, string(resource), func() ([]json.RawMessage, error) {
		return o.client.Fetch(ctx, path, filters, opts...)
	})
}

//
// Candles pulls the candles of the queried range. When a sub-range fails with a transient error,
// the retry picks up from that sub-range instead of starting the whole range over.
//
func (o *Neutrino) Candles(
	ctx context.Context,
	query exchange.CandleQuery,
	opts ...exchange.CallOption,
) ([]exchange.Candle, error) {
	descending := query.Descending
	query.Descending = false

	series := exchange.NewSeries(0)

	candles, err := retry(ctx, o, "candles", func() ([]exchange.Candle, error) {
		candles, err := o.client.Candles(ctx, query, opts...)

		var subRange *exchange.SubRangeError
		if errors.As(err, &subRange) && !subRange.Remaining.IsZero() {
			if mergeErr := series.AppendAll(subRange.Fetched); mergeErr != nil {
				return nil, &exchange.PermanentError{Err: mergeErr}
			}

			query.Range = subRange.Remaining
		}

		return candles, err
	})
	if err != nil {
		var subRange *exchange.SubRangeError
		if errors.As(err, &subRange) {
			partial := *subRange
			partial.Fetched = series.Candles()

			return nil, &partial
		}

		return nil, err
	}

	if err := series.AppendAll(candles); err != nil {
		return nil, &exchange.PermanentError{Err: err}
	}

	ret := series.Candles()

	if descending {
		exchange.ReverseCandles(ret)
	}

	return ret, nil
}

//
// Close kills every stream and waits for them to shut down. The coordinator cannot be used
// afterwards.
//
func (o *Neutrino) Close() error {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()

		return nil
	}

	o.closed = true

	chKilled := make([]<-chan bool, 0, len(o.streams))
	for _, v := range o.streams {
		chKilled = append(chKilled, v.consumer.Kill())
	}

	o.mu.Unlock()

	logger.Print("Closing...")

	for _, ch := range chKilled {
		<-ch
	}

	logger.Print("Closed.")

	return nil
}

func resourcePath(resource exchange.Resource, filters url.Values) (string, url.Values, error) {
	switch resource {
	case exchange.Accounts:
		return coinbase.AccountsPath, filters, nil
	case exchange.Orders:
		return coinbase.OrdersPath, filters, nil
	case exchange.Transfers:
		return coinbase.TransfersPath, filters, nil
	case exchange.Ledger:
		accountID := filters.Get(AccountIDFilter)
		if accountID == "" {
			return "", nil, &exchange.PermanentError{Err: fmt.Errorf("fetching a ledger requires the %q filter", AccountIDFilter)}
		}

		rest := url.Values{}
		for k, v := range filters {
			if k != AccountIDFilter {
				rest[k] = v
			}
		}

		return coinbase.AccountsPath + "/" + url.PathEscape(accountID) + "/ledger", rest, nil
	}

	return "", nil, &exchange.PermanentError{Err: fmt.Errorf("unknown resource %q", resource)}
}
