package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lukehollenback/neutrino/constants"
	"github.com/lukehollenback/neutrino/exchange"
)

const (
	Name = "≪coinbase≫"
)

var (
	logger *log.Logger

	_ exchange.Client = (*Client)(nil)
)

func init() {
	logger = log.New(log.Writer(), fmt.Sprintf(constants.LogPrefixFmt, Name), log.Ldate|log.Ltime|log.Lmsgprefix)
}

//
// Client implements the exchange.Client interface for the Coinbase Exchange REST API.
//
// A Client holds no per-call state and may be shared freely between goroutines. It never retries
// and never sleeps; classifying failures is as far as it goes.
//
type Client struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	clock      clock.Clock
	defaults   exchange.CallOptions
	maxCandles int
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *Client) {
		o.httpClient = httpClient
	}
}

//
// WithClock replaces the clock used to timestamp signatures and to enforce per-call timeouts.
//
func WithClock(clk clock.Clock) Option {
	return func(o *Client) {
		o.clock = clk
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Client) {
		o.defaults.Timeout = timeout
	}
}

//
// WithMaxCandles overrides the number of candles the exchange returns from a single request.
//
func WithMaxCandles(limit int) Option {
	return func(o *Client) {
		o.maxCandles = limit
	}
}

//
// NewClient instantiates a client against the provided base URL. A nil signer restricts the
// client to public endpoints (requests go out unsigned).
//
func NewClient(baseURL string, signer *Signer, opts ...Option) *Client {
	o := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{},
		clock:      clock.New(),
		defaults: exchange.CallOptions{
			Timeout: constants.DefaultTimeout,
		},
		maxCandles: constants.MaxCandleRequest,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *Client) BaseURL() string {
	return o.baseURL
}

//
// request makes the specified request to the Coinbase Exchange API and returns a wrapped response
// or a classified error if something went wrong.
//
func (o *Client) request(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body []byte,
	opts exchange.CallOptions,
) (*response, error) {
	op := fmt.Sprintf("%s %s", method, path)

	//
	// Bound the request by the per-call timeout (if there is one).
	//
	reqCtx := ctx

	if opts.Timeout > 0 {
		var cancel context.CancelFunc

		reqCtx, cancel = o.clock.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	//
	// Build and sign the request.
	//
	desc := Descriptor{
		Method:    method,
		Path:      path,
		Query:     query,
		Body:      string(body),
		Timestamp: o.clock.Now(),
	}

	req, err := http.NewRequestWithContext(reqCtx, method, o.baseURL+desc.RequestPath(), bytes.NewReader(body))
	if err != nil {
		return nil, &exchange.PermanentError{Err: fmt.Errorf("failed to build request for %s: %w", op, err)}
	}

	if o.signer != nil {
		o.signer.Sign(desc).Apply(req.Header)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	//
	// Make the request and read the whole response.
	//
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, o.transportError(ctx, reqCtx, op, opts.Timeout, err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, o.transportError(ctx, reqCtx, op, opts.Timeout, err)
	}

	wrappedResp := &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   respBody,
	}

	//
	// Classify non-2xx responses, preferring the exchange's own error message when it sent one.
	//
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var cause error

		if apiErr := parseAPIError(resp.StatusCode, respBody); apiErr != nil {
			cause = apiErr
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), o.clock.Now())

		return wrappedResp, exchange.ClassifyStatus(resp.StatusCode, retryAfter, cause)
	}

	return wrappedResp, nil
}

//
// transportError classifies a failure to complete an HTTP exchange. The caller's own cancellation
// is passed through untouched. Everything else (including an expired per-call timeout) is worth
// retrying.
//
func (o *Client) transportError(
	ctx context.Context,
	reqCtx context.Context,
	op string,
	timeout time.Duration,
	err error,
) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return &exchange.TransientError{Err: &exchange.TimeoutError{Op: op, After: timeout}}
	}

	return &exchange.TransientError{Err: fmt.Errorf("%s: %w", op, err)}
}

//
// getJSON makes a GET request and decodes the response body into the provided destination.
//
func (o *Client) getJSON(
	ctx context.Context,
	path string,
	query url.Values,
	opts exchange.CallOptions,
	dest any,
) (*response, error) {
	resp, err := o.request(ctx, http.MethodGet, path, query, nil, opts)
	if err != nil {
		return resp, err
	}

	if err := json.Unmarshal(resp.body, dest); err != nil {
		return resp, &exchange.PermanentError{
			StatusCode: resp.status,
			Err:        fmt.Errorf("malformed response from %s: %w", path, err),
		}
	}

	return resp, nil
}

//
// parseRetryAfter interprets a Retry-After header, which holds either a number of seconds or an
// HTTP date.
//
func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0
		}

		return time.Duration(seconds * float64(time.Second))
	}

	if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		return at.Sub(now)
	}

	return 0
}
