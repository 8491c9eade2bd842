package constants

import (
	"time"
)

const (
	LogPrefixFmt = "%-17s "

	//
	// MaxCandleRequest is the number of candles the Coinbase Exchange will return from a single
	// call to its candles endpoint.
	//
	MaxCandleRequest = 300

	DefaultTimeout          = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultStreamBuffer     = 1024

	TimeFormat = "2006-01-02 15:04"
)
