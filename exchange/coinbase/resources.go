package coinbase

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/lukehollenback/neutrino/exchange"
)

func (o *Client) Accounts(ctx context.Context, filters url.Values, opts ...exchange.CallOption) ([]exchange.Account, error) {
	return paginate[exchange.Account](
		ctx, o, string(exchange.Accounts), AccountsPath, filters, exchange.ApplyCallOptions(o.defaults, opts...),
	)
}

//
// Account retrieves a single account by its identifier.
//
func (o *Client) Account(ctx context.Context, id string, opts ...exchange.CallOption) (exchange.Account, error) {
	var account exchange.Account

	if id == "" {
		return account, &exchange.PermanentError{Err: errors.New("an account id is required")}
	}

	_, err := o.getJSON(
		ctx, AccountsPath+"/"+url.PathEscape(id), nil, exchange.ApplyCallOptions(o.defaults, opts...), &account,
	)
	if err != nil {
		return exchange.Account{}, err
	}

	return account, nil
}

//
// Ledger retrieves the complete transaction history of the provided account.
//
func (o *Client) Ledger(
	ctx context.Context,
	accountID string,
	filters url.Values,
	opts ...exchange.CallOption,
) ([]exchange.LedgerEntry, error) {
	if accountID == "" {
		return nil, &exchange.PermanentError{Err: errors.New("an account id is required")}
	}

	return paginate[exchange.LedgerEntry](
		ctx, o, string(exchange.Ledger), AccountsPath+"/"+url.PathEscape(accountID)+"/ledger", filters,
		exchange.ApplyCallOptions(o.defaults, opts...),
	)
}

func (o *Client) Orders(ctx context.Context, filters url.Values, opts ...exchange.CallOption) ([]exchange.Order, error) {
	return paginate[exchange.Order](
		ctx, o, string(exchange.Orders), OrdersPath, filters, exchange.ApplyCallOptions(o.defaults, opts...),
	)
}

func (o *Client) Transfers(ctx context.Context, filters url.Values, opts ...exchange.CallOption) ([]exchange.Transfer, error) {
	return paginate[exchange.Transfer](
		ctx, o, string(exchange.Transfers), TransfersPath, filters, exchange.ApplyCallOptions(o.defaults, opts...),
	)
}

//
// Fees retrieves the authenticated profile's current fee rates.
//
func (o *Client) Fees(ctx context.Context, opts ...exchange.CallOption) (exchange.Fees, error) {
	var fees exchange.Fees

	if _, err := o.getJSON(ctx, FeesPath, nil, exchange.ApplyCallOptions(o.defaults, opts...), &fees); err != nil {
		return exchange.Fees{}, err
	}

	return fees, nil
}

//
// Fetch pulls every page of an arbitrary paginated endpoint and hands back the raw records.
//
func (o *Client) Fetch(
	ctx context.Context,
	path string,
	filters url.Values,
	opts ...exchange.CallOption,
) ([]json.RawMessage, error) {
	if path == "" || path[0] != '/' {
		return nil, &exchange.PermanentError{Err: errors.New("an absolute endpoint path is required")}
	}

	return paginate[json.RawMessage](ctx, o, path, path, filters, exchange.ApplyCallOptions(o.defaults, opts...))
}
