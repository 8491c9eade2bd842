package exchange

import (
	"fmt"
	"time"
)

//
// Series accumulates candles in strictly ascending time order. It is used to merge the results of
// the sub-requests of a single time-range fetch.
//
type Series struct {
	candles    []Candle
	last       time.Time
	duplicates int
}

//
// NewSeries instantiates an empty series with room for the expected number of candles.
//
func NewSeries(capacity int) *Series {
	return &Series{
		candles: make([]Candle, 0, capacity),
	}
}

//
// Append adds the provided candle to the tip of the series. A candle that repeats the timestamp of
// the current tip is skipped. A candle that starts before the current tip is an error, since that
// would mean sub-request results were merged out of order.
//
func (o *Series) Append(candle Candle) error {
	if len(o.candles) > 0 {
		if candle.Time.Equal(o.last) {
			o.duplicates++

			return nil
		}

		if candle.Time.Before(o.last) {
			return fmt.Errorf(
				"cannot append candle starting at %s behind the series tip at %s",
				candle.Time.UTC().Format(time.RFC3339), o.last.UTC().Format(time.RFC3339),
			)
		}
	}

	o.candles = append(o.candles, candle)
	o.last = candle.Time

	return nil
}

//
// AppendAll appends each of the provided candles in order, stopping at the first failure.
//
func (o *Series) AppendAll(candles []Candle) error {
	for _, v := range candles {
		if err := o.Append(v); err != nil {
			return err
		}
	}

	return nil
}

func (o *Series) Len() int {
	return len(o.candles)
}

//
// Duplicates returns how many candles were skipped because their timestamp was already present.
//
func (o *Series) Duplicates() int {
	return o.duplicates
}

//
// Candles returns the accumulated candles in ascending time order.
//
func (o *Series) Candles() []Candle {
	return o.candles
}
