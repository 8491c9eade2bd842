package coinbase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lukehollenback/neutrino/exchange"
	"github.com/shopspring/decimal"
)

// NOTE ~> The Coinbase Exchange candles endpoint returns each bucket as an array, newest bucket
//  first:
//
//  [0] 1609459200,  // Bucket start time (Unix seconds)
//  [1] 28990.01,    // Low
//  [2] 29010.22,    // High
//  [3] 29000.00,    // Open
//  [4] 29005.13,    // Close
//  [5] 12.34567     // Volume

const (
	TimeIndex   = 0
	LowIndex    = 1
	HighIndex   = 2
	OpenIndex   = 3
	CloseIndex  = 4
	VolumeIndex = 5
)

//
// candle decodes the array representation of a bucket returned by the Coinbase Exchange candles
// endpoint.
//
type candle exchange.Candle

//
// UnmarshalJSON implements the json.Unmarshaler interface so that the JSON arrays provided by the
// Coinbase Exchange API can be properly unmarshalled.
//
func (o *candle) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw) <= VolumeIndex {
		return fmt.Errorf("expected %d candle fields but got %d", VolumeIndex+1, len(raw))
	}

	//
	// Parse the start time of the bucket.
	//
	var seconds int64

	if err := json.Unmarshal(raw[TimeIndex], &seconds); err != nil {
		return fmt.Errorf("failed to parse candle time (%s): %w", raw[TimeIndex], err)
	}

	o.Time = time.Unix(seconds, 0).UTC()

	//
	// Parse the prices and the volume. They may arrive either as bare numbers or as strings.
	//
	fields := []struct {
		index int
		name  string
		dest  *decimal.Decimal
	}{
		{LowIndex, "low", &o.Low},
		{HighIndex, "high", &o.High},
		{OpenIndex, "open", &o.Open},
		{CloseIndex, "close", &o.Close},
		{VolumeIndex, "volume", &o.Volume},
	}

	for _, f := range fields {
		if err := f.dest.UnmarshalJSON(raw[f.index]); err != nil {
			return fmt.Errorf("failed to parse candle %s (%s): %w", f.name, raw[f.index], err)
		}
	}

	return nil
}
