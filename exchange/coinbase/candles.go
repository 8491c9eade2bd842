package coinbase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lukehollenback/neutrino/exchange"
)

//
// Candles pulls the candles of the queried range. The range is split into sub-ranges no wider
// than a single request can cover, which are then requested one after another in order. Each
// response is trimmed to its own sub-range before being merged, so the result is strictly ordered
// and free of duplicate buckets.
//
// If any sub-request fails, the whole operation fails with an exchange.SubRangeError that names
// the failed sub-range and carries the candles of every sub-range that completed before it.
//
func (o *Client) Candles(
	ctx context.Context,
	query exchange.CandleQuery,
	opts ...exchange.CallOption,
) ([]exchange.Candle, error) {
	callOpts := exchange.ApplyCallOptions(o.defaults, opts...)

	//
	// Validate the query and fill in any missing bounds.
	//
	if query.ProductID == "" {
		return nil, &exchange.PermanentError{Err: errors.New("a product id is required")}
	}

	if !query.Granularity.Valid() {
		return nil, &exchange.PermanentError{Err: fmt.Errorf("unsupported granularity %s", query.Granularity)}
	}

	if o.maxCandles <= 0 {
		return nil, &exchange.PermanentError{Err: fmt.Errorf("invalid candle request limit %d", o.maxCandles)}
	}

	maxSpan := query.Granularity.MaxSpan(o.maxCandles)
	whole := o.candleBounds(query.Range, query.Granularity, maxSpan)

	ranges, err := whole.Split(maxSpan)
	if err != nil {
		return nil, &exchange.PermanentError{Err: err}
	}

	logger.Printf(
		"Loading %s %s candles from %s through %s across %d request(s).",
		query.ProductID, query.Granularity,
		whole.Start.UTC().Format(time.RFC3339), whole.End.UTC().Format(time.RFC3339), len(ranges),
	)

	//
	// Request each sub-range in order and merge the results.
	//
	//
	// NOTE ~> The series starts out no bigger than a single response and grows as sub-ranges
	//  complete, so a huge range that fails early never pays for its full size.
	//
	series := exchange.NewSeries(min(int(whole.Span()/query.Granularity.Duration()), o.maxCandles))
	path := fmt.Sprintf("/products/%s/candles", url.PathEscape(query.ProductID))

	for i, r := range ranges {
		candles, err := o.candlesWithin(ctx, path, query.Granularity, r, callOpts)
		if err == nil {
			if mergeErr := series.AppendAll(candles); mergeErr != nil {
				err = &exchange.PermanentError{Err: mergeErr}
			}
		}

		if err != nil {
			fetched := append([]exchange.Candle(nil), series.Candles()...)

			return nil, &exchange.SubRangeError{
				Index:     i,
				Count:     len(ranges),
				Range:     r,
				Remaining: exchange.TimeRange{Start: r.Start, End: whole.End},
				Fetched:   fetched,
				Err:       err,
			}
		}
	}

	if n := series.Duplicates(); n > 0 {
		logger.Printf("Skipped %d duplicate %s %s candle(s).", n, query.ProductID, query.Granularity)
	}

	ret := series.Candles()

	if query.Descending {
		exchange.ReverseCandles(ret)
	}

	return ret, nil
}

//
// candlesWithin makes a single request for the provided sub-range and hands back only the buckets
// that start within it, in ascending order.
//
// NOTE ~> The exchange treats both bounds as inclusive, so the end bound is pulled back by a second
//  to keep a sub-range that spans exactly the request limit from asking for one bucket too many.
//
func (o *Client) candlesWithin(
	ctx context.Context,
	path string,
	granularity exchange.Granularity,
	r exchange.TimeRange,
	opts exchange.CallOptions,
) ([]exchange.Candle, error) {
	end := r.End.Add(-time.Second)
	if end.Before(r.Start) {
		end = r.Start
	}

	query := url.Values{
		"granularity": {strconv.Itoa(int(granularity))},
		"start":       {r.Start.UTC().Format(time.RFC3339)},
		"end":         {end.UTC().Format(time.RFC3339)},
	}

	var raw []candle

	if _, err := o.getJSON(ctx, path, query, opts, &raw); err != nil {
		return nil, err
	}

	ret := make([]exchange.Candle, 0, len(raw))

	for _, v := range raw {
		if r.Contains(v.Time) {
			ret = append(ret, exchange.Candle(v))
		}
	}

	exchange.SortCandles(ret)

	return ret, nil
}

//
// candleBounds fills in whatever bounds the caller left out. With no bounds at all, the most recent
// window that a single request can cover is used. Its end is aligned to the granularity so that the
// bucket still in progress is left out.
//
func (o *Client) candleBounds(r exchange.TimeRange, granularity exchange.Granularity, maxSpan time.Duration) exchange.TimeRange {
	if r.End.IsZero() {
		if r.Start.IsZero() {
			r.End = o.clock.Now().UTC().Truncate(granularity.Duration())
		} else {
			r.End = o.clock.Now().UTC()
		}
	}

	if r.Start.IsZero() {
		r.Start = r.End.Add(-maxSpan)
	}

	return r
}
