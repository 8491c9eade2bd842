package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/logrusorgru/aurora"
	"github.com/lukehollenback/neutrino/stream"
	"github.com/shopspring/decimal"
)

const (
	up   = "↑"
	down = "↓"
	flat = "→"
)

//
// tickerPrinter writes one line per ticker message, marking whether the price moved up, down, or
// not at all since the previous tick of the same product.
//
type tickerPrinter struct {
	mu    *sync.Mutex
	out   io.Writer
	last  map[string]decimal.Decimal
	color aurora.Aurora
}

func newTickerPrinter(out io.Writer) *tickerPrinter {
	return &tickerPrinter{
		mu:    &sync.Mutex{},
		out:   out,
		last:  make(map[string]decimal.Decimal),
		color: aurora.NewAurora(true),
	}
}

func (o *tickerPrinter) Handle(msg stream.Message) {
	switch msg.Kind {
	case stream.Ticker:
		o.ticker(msg)

	case stream.Error:
		fmt.Fprintf(o.out, " %s %s (%s)\n", o.color.Bold(o.color.Red("error")), msg.Text, msg.Reason)

	case stream.Fault:
		fmt.Fprintf(o.out, " %s %s\n", o.color.Bold(o.color.Red("fault")), msg.Err)
	}
}

func (o *tickerPrinter) ticker(msg stream.Message) {
	price, err := msg.Price()
	if err != nil {
		return
	}

	o.mu.Lock()
	delta := o.delta(msg.ProductID, price)
	o.mu.Unlock()

	var arrow aurora.Value

	switch delta {
	case up:
		arrow = o.color.Green(delta)
	case down:
		arrow = o.color.Red(delta)
	default:
		arrow = o.color.Yellow(delta)
	}

	fmt.Fprintf(
		o.out, " %s | %s %s | %s\n",
		msg.Time().Local().Format("2006-01-02 15:04:05"), msg.ProductID, arrow, o.color.Bold(price.String()),
	)
}

//
// delta records the provided price as the product's latest and returns the direction it moved in.
// The first tick of a product is always flat.
//
func (o *tickerPrinter) delta(productID string, price decimal.Decimal) string {
	prev, ok := o.last[productID]
	o.last[productID] = price

	switch {
	case !ok:
		return flat
	case price.GreaterThan(prev):
		return up
	case price.LessThan(prev):
		return down
	}

	return flat
}
