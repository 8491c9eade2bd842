package coinbase

import (
	"context"
	"net/url"

	"github.com/lukehollenback/neutrino/exchange"
)

//
// paginate pulls every page of a cursor-paginated collection, following the CB-AFTER response
// header via the "after" query parameter until the exchange stops handing out cursors or returns
// an empty page.
//
// NOTE ~> Pages are fetched strictly one after another since each request depends on the cursor
//  returned by the one before it.
//
func paginate[T any](
	ctx context.Context,
	client *Client,
	resource string,
	path string,
	filters url.Values,
	opts exchange.CallOptions,
) ([]T, error) {
	query := cloneValues(filters)
	records := make([]T, 0)

	var cursor exchange.Cursor

	for page := 0; ; page++ {
		if cursor != "" {
			query.Set("after", string(cursor))
		}

		//
		// Fetch and decode the page.
		//
		var batch []T

		resp, err := client.getJSON(ctx, path, query, opts, &batch)
		if err != nil {
			return partial(records, opts, &exchange.PageError{Resource: resource, Page: page, Err: err})
		}

		records = append(records, batch...)

		//
		// Figure out whether or not there is anything further to fetch.
		//
		next := resp.after()

		if len(batch) == 0 || next == "" {
			return records, nil
		}

		if next == cursor {
			logger.Printf("Pagination of %s looped on page %d. (Cursor: %s)", resource, page, next)

			return partial(records, opts, &exchange.PaginationLoopError{Resource: resource, Page: page, Cursor: next})
		}

		cursor = next
	}
}

//
// partial decides what a failed paginated fetch hands back alongside its error. Fail-fast calls
// discard what was gathered. Best-effort calls keep it.
//
func partial[T any](records []T, opts exchange.CallOptions, err error) ([]T, error) {
	if opts.BestEffort {
		return records, err
	}

	return nil, err
}

func cloneValues(values url.Values) url.Values {
	ret := make(url.Values, len(values))

	for k, v := range values {
		ret[k] = append([]string(nil), v...)
	}

	return ret
}
