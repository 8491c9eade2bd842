package exchange

import (
	"fmt"
	"strconv"
	"time"
)

//
// Granularity is an enum that represents the candlestick bucket widths (in seconds) that can be
// retrieved from the Coinbase Exchange's historical data endpoint.
//
type Granularity int

const (
	OneMinute      Granularity = 60
	FiveMinutes    Granularity = 300
	FifteenMinutes Granularity = 900
	OneHour        Granularity = 3600
	SixHours       Granularity = 21600
	OneDay         Granularity = 86400
)

var granularityNames = map[Granularity]string{
	OneMinute:      "1m",
	FiveMinutes:    "5m",
	FifteenMinutes: "15m",
	OneHour:        "1h",
	SixHours:       "6h",
	OneDay:         "1d",
}

func (o Granularity) String() string {
	if name, ok := granularityNames[o]; ok {
		return name
	}

	return fmt.Sprintf("%ds", int(o))
}

func (o Granularity) Duration() time.Duration {
	return time.Duration(o) * time.Second
}

//
// Valid returns whether or not the exchange accepts the granularity.
//
func (o Granularity) Valid() bool {
	_, ok := granularityNames[o]

	return ok
}

//
// MaxSpan returns the widest time range a single request can cover when the exchange returns at
// most limit candles per request.
//
func (o Granularity) MaxSpan(limit int) time.Duration {
	return time.Duration(limit) * o.Duration()
}

//
// ParseGranularity accepts either a short name ("1m", "6h") or a number of seconds ("60").
//
func ParseGranularity(raw string) (Granularity, error) {
	for g, name := range granularityNames {
		if name == raw {
			return g, nil
		}
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || !Granularity(seconds).Valid() {
		return 0, fmt.Errorf("unsupported granularity %q", raw)
	}

	return Granularity(seconds), nil
}
