package coinbasetest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//
// Price returns the deterministic open price the fake exchange reports for the bucket starting at
// the provided instant.
//
func Price(t time.Time) decimal.Decimal {
	return decimal.NewFromInt(20000 + t.Unix()/60%1000).Div(decimal.NewFromInt(100))
}

//
// candles serves the candles endpoint. Buckets are generated on demand for every multiple of the
// granularity within the inclusive [start, end] window, newest first, as the real exchange does.
//
func (o *Server) candles(c *gin.Context) {
	granularity, err := strconv.Atoi(c.Query("granularity"))
	if err != nil || granularity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unsupported granularity"})

		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid start"})

		return
	}

	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil || end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid end"})

		return
	}

	step := time.Duration(granularity) * time.Second

	first := start.Truncate(step)
	if first.Before(start) {
		first = first.Add(step)
	}

	buckets := make([]time.Time, 0)

	for t := first; !t.After(end); t = t.Add(step) {
		buckets = append(buckets, t)
	}

	if len(buckets) > o.maxCandles {
		c.JSON(
			http.StatusBadRequest,
			gin.H{"message": "granularity too small for the requested time range. Count of aggregations requested exceeds 300"},
		)

		return
	}

	ret := make([][]any, 0, len(buckets))

	for i := len(buckets) - 1; i >= 0; i-- {
		t := buckets[i]
		open := Price(t)
		closing := Price(t.Add(step))

		ret = append(ret, []any{
			t.Unix(),
			json.Number(decimal.Min(open, closing).Sub(decimal.NewFromInt(1)).String()),
			json.Number(decimal.Max(open, closing).Add(decimal.NewFromInt(1)).String()),
			json.Number(open.String()),
			json.Number(closing.String()),
			json.Number("1.5"),
		})
	}

	c.JSON(http.StatusOK, ret)
}
