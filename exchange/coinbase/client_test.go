package coinbase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lukehollenback/neutrino/exchange"
	"github.com/lukehollenback/neutrino/exchange/coinbase/coinbasetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerPath = "/accounts/a1b2/ledger"

func newTestServer(t *testing.T, opts ...coinbasetest.Option) *coinbasetest.Server {
	t.Helper()

	opts = append([]coinbasetest.Option{coinbasetest.WithAuth(testKey, testSecret, testPassphrase)}, opts...)
	server := coinbasetest.New(opts...)
	t.Cleanup(server.Close)

	return server
}

func newTestClient(t *testing.T, server *coinbasetest.Server, opts ...Option) *Client {
	t.Helper()

	return NewClient(server.URL(), testSigner(t), opts...)
}

func ledgerPage(ids ...string) []any {
	ret := make([]any, 0, len(ids))

	for _, id := range ids {
		ret = append(ret, map[string]any{
			"id":         id,
			"created_at": "2021-01-01T00:00:00.000Z",
			"amount":     "1.00",
			"balance":    "10.00",
			"type":       "transfer",
		})
	}

	return ret
}

func ids(entries []exchange.LedgerEntry) []string {
	ret := make([]string, len(entries))

	for i, v := range entries {
		ret[i] = v.ID
	}

	return ret
}

func TestPaginationFollowsCursors(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(ledgerPath, ledgerPage("1", "2"), ledgerPage("3", "4"), ledgerPage("5"))

	entries, err := newTestClient(t, server).Ledger(context.Background(), "a1b2", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(entries))

	requests := server.RequestsTo(ledgerPath)
	require.Len(t, requests, 3)
	assert.Empty(t, requests[0].Query.Get("after"))
	assert.Equal(t, "cursor-1", requests[1].Query.Get("after"))
	assert.Equal(t, "cursor-2", requests[2].Query.Get("after"))
}

func TestPaginationHundredHundredThirtySeven(t *testing.T) {
	numbered := func(from int, n int) []any {
		ret := make([]string, n)
		for i := range ret {
			ret[i] = strconv.Itoa(from + i)
		}

		return ledgerPage(ret...)
	}

	server := newTestServer(t)
	server.SetPages(ledgerPath, numbered(0, 100), numbered(100, 100), numbered(200, 37))

	entries, err := newTestClient(t, server).Ledger(context.Background(), "a1b2", nil)
	require.NoError(t, err)

	require.Len(t, entries, 237)
	for i, v := range entries {
		require.Equal(t, strconv.Itoa(i), v.ID)
	}

	requests := server.RequestsTo(ledgerPath)
	require.Len(t, requests, 3)
	assert.Empty(t, requests[0].Query.Get("after"))
	assert.Equal(t, "cursor-1", requests[1].Query.Get("after"))
	assert.Equal(t, "cursor-2", requests[2].Query.Get("after"))
}

func TestPaginationKeepsFilters(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(OrdersPath, []any{map[string]any{"id": "o1", "status": "done"}}, []any{map[string]any{"id": "o2"}})

	orders, err := newTestClient(t, server).Orders(context.Background(), map[string][]string{"status": {"all"}})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "done", orders[0].Status)

	for _, r := range server.RequestsTo(OrdersPath) {
		assert.Equal(t, "all", r.Query.Get("status"))
	}
}

func TestPaginationStopsOnEmptyPage(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(ledgerPath, ledgerPage("1"), []any{}, ledgerPage("3"))

	entries, err := newTestClient(t, server).Ledger(context.Background(), "a1b2", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, ids(entries))
	assert.Len(t, server.RequestsTo(ledgerPath), 2)
}

func TestPaginationDetectsCursorLoop(t *testing.T) {
	server := newTestServer(t)
	server.SetLoop(ledgerPath, ledgerPage("1")...)

	client := newTestClient(t, server)

	entries, err := client.Ledger(context.Background(), "a1b2", nil)

	var loop *exchange.PaginationLoopError
	require.True(t, errors.As(err, &loop))
	assert.Equal(t, 1, loop.Page)
	assert.Equal(t, string(exchange.Ledger), loop.Resource)
	assert.Nil(t, entries)
	assert.Len(t, server.RequestsTo(ledgerPath), 2)

	entries, err = client.Ledger(context.Background(), "a1b2", nil, exchange.BestEffort())
	assert.Error(t, err)
	assert.Len(t, entries, 2)
}

func TestPaginationFailFast(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(ledgerPath, ledgerPage("1"), ledgerPage("2"), ledgerPage("3"))
	server.Fail(ledgerPath, coinbasetest.Fault{}, coinbasetest.Fault{Status: http.StatusBadGateway})

	entries, err := newTestClient(t, server).Ledger(context.Background(), "a1b2", nil)

	var page *exchange.PageError
	require.True(t, errors.As(err, &page))
	assert.Equal(t, 1, page.Page)
	assert.True(t, exchange.IsTransient(err))
	assert.Nil(t, entries)
}

func TestPaginationBestEffort(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(ledgerPath, ledgerPage("1"), ledgerPage("2"), ledgerPage("3"))
	server.Fail(ledgerPath, coinbasetest.Fault{}, coinbasetest.Fault{Status: http.StatusBadGateway})

	entries, err := newTestClient(t, server).Ledger(context.Background(), "a1b2", nil, exchange.BestEffort())

	assert.Error(t, err)
	assert.Equal(t, []string{"1"}, ids(entries))
}

func TestFetchRawRecords(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(TransfersPath, []any{map[string]any{"id": "t1"}}, []any{map[string]any{"id": "t2"}})

	records, err := newTestClient(t, server).Fetch(context.Background(), TransfersPath, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"id":"t2"}`, string(records[1]))

	_, err = newTestClient(t, server).Fetch(context.Background(), "transfers", nil)
	assert.True(t, exchange.IsPermanent(err))
}

func TestSingleResourceIsIdempotent(t *testing.T) {
	server := newTestServer(t)
	server.SetResource(FeesPath, map[string]any{
		"maker_fee_rate": "0.0040",
		"taker_fee_rate": "0.0060",
		"usd_volume":     "1234.56",
	})

	client := newTestClient(t, server)

	first, err := client.Fees(context.Background())
	require.NoError(t, err)

	second, err := client.Fees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "0.006", first.TakerFeeRate.String())
	assert.Len(t, server.RequestsTo(FeesPath), 2)
}

func TestAccounts(t *testing.T) {
	server := newTestServer(t)
	server.SetPages(AccountsPath, []any{
		map[string]any{"id": "a1", "currency": "BTC", "balance": "0.5", "available": "0.5", "hold": "0"},
		map[string]any{"id": "a2", "currency": "ETH", "balance": "0", "available": "0", "hold": "0"},
	})
	server.SetResource(AccountsPath+"/a1", map[string]any{"id": "a1", "currency": "BTC", "balance": "0.5"})

	client := newTestClient(t, server)

	accounts, err := client.Accounts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	nonEmpty := exchange.NonEmptyAccounts(accounts)
	require.Len(t, nonEmpty, 1)
	assert.Equal(t, "BTC", nonEmpty[0].Currency)

	account, err := client.Account(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "0.5", account.Balance.String())

	_, err = client.Account(context.Background(), "missing")
	assert.True(t, exchange.IsPermanent(err))

	var apiErr exchange.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Code())
	assert.Equal(t, "NotFound", apiErr.Message())
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(epoch)

	server := newTestServer(t)
	server.SetResource(FeesPath, map[string]any{"maker_fee_rate": "0.004"})
	server.Fail(
		FeesPath,
		coinbasetest.Fault{Status: http.StatusTooManyRequests, RetryAfter: "3"},
		coinbasetest.Fault{Status: http.StatusTooManyRequests, RetryAfter: epoch.Add(10 * time.Second).Format(http.TimeFormat)},
		coinbasetest.Fault{Status: http.StatusServiceUnavailable},
	)

	client := newTestClient(t, server, WithClock(mock))

	_, err := client.Fees(context.Background())
	wait, ok := exchange.RetryAfter(err)
	assert.True(t, exchange.IsTransient(err))
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, wait)

	_, err = client.Fees(context.Background())
	wait, ok = exchange.RetryAfter(err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, wait)

	_, err = client.Fees(context.Background())
	_, ok = exchange.RetryAfter(err)
	assert.True(t, exchange.IsTransient(err))
	assert.False(t, ok)

	_, err = client.Fees(context.Background())
	assert.NoError(t, err)
}

func TestBadSignatureIsPermanent(t *testing.T) {
	server := newTestServer(t)
	server.SetResource(FeesPath, map[string]any{})

	signer, err := NewSigner(NewCredentials(testKey, "b3RoZXItc2VjcmV0", testPassphrase))
	require.NoError(t, err)

	_, err = NewClient(server.URL(), signer).Fees(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, exchange.IsPermanent(err))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code())
	assert.Equal(t, "invalid signature", apiErr.Message())
}

func TestPerCallTimeout(t *testing.T) {
	server := newTestServer(t)
	server.SetResource(FeesPath, map[string]any{})
	server.Fail(FeesPath, coinbasetest.Fault{Delay: 2 * time.Second})

	_, err := newTestClient(t, server).Fees(context.Background(), exchange.Timeout(50*time.Millisecond))

	var timeout *exchange.TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.True(t, exchange.IsTransient(err))
	assert.Equal(t, 50*time.Millisecond, timeout.After)
}

func TestCallerCancellationIsNotClassified(t *testing.T) {
	server := newTestServer(t)
	server.SetResource(FeesPath, map[string]any{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, server).Fees(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, exchange.IsTransient(err))
	assert.False(t, exchange.IsPermanent(err))
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := coinbasetest.New()
	url := server.URL()
	server.Close()

	_, err := NewClient(url, nil).Fees(context.Background())

	assert.True(t, exchange.IsTransient(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter("", epoch))
	assert.Equal(t, 2*time.Second, parseRetryAfter("2", epoch))
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter("1.5", epoch))
	assert.Equal(t, time.Minute, parseRetryAfter(epoch.Add(time.Minute).Format(http.TimeFormat), epoch))
	assert.Equal(t, time.Duration(0), parseRetryAfter(epoch.Add(-time.Minute).Format(http.TimeFormat), epoch))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", epoch))
}
