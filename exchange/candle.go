package exchange

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

//
// Candle represents one candlestick (a.k.a. kline) bucket provided in a response from a call to an
// exchange's historical data endpoint. Time is the opening instant of the bucket.
//
type Candle struct {
	Time   time.Time
	Low    decimal.Decimal
	High   decimal.Decimal
	Open   decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

func (o Candle) String() string {
	return fmt.Sprintf(
		"%s O %s H %s L %s C %s V %s",
		o.Time.UTC().Format(time.RFC3339), o.Open, o.High, o.Low, o.Close, o.Volume,
	)
}

//
// SortCandles orders the provided candles by ascending time in place.
//
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
}

//
// ReverseCandles flips the order of the provided candles in place.
//
func ReverseCandles(candles []Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}
