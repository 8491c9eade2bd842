package coinbase

import (
	"encoding/json"
	"fmt"

	"github.com/lukehollenback/neutrino/exchange"
)

var _ exchange.APIError = (*APIError)(nil)

//
// APIError implements the exchange.APIError interface for errors returned from Coinbase Exchange
// API calls.
//
type APIError struct {
	Status int    `json:"-"`
	Msg    string `json:"message"`
}

func (o *APIError) Code() int {
	return o.Status
}

func (o *APIError) Message() string {
	return o.Msg
}

func (o *APIError) Error() string {
	return fmt.Sprintf(
		"the Coinbase Exchange endpoint returned an API error (status: %d, message: %s)",
		o.Code(), o.Message(),
	)
}

//
// parseAPIError attempts to pull the exchange's error message out of a non-2xx response body. It
// returns nil if the body did not carry one.
//
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Msg == "" {
		return nil
	}

	return apiErr
}
