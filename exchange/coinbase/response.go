package coinbase

import (
	"net/http"

	"github.com/lukehollenback/neutrino/exchange"
)

//
// response wraps a completed response from the Coinbase Exchange API.
//
type response struct {
	status int
	header http.Header
	body   []byte
}

//
// after returns the cursor of the page that follows this one. An empty cursor means the exchange
// has nothing further.
//
func (o *response) after() exchange.Cursor {
	return exchange.Cursor(o.header.Get(AfterHeader))
}
