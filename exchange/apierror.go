package exchange

//
// APIError is satisfied by errors that carry the exchange's own explanation of a rejected request,
// so callers can surface it without knowing which exchange they talk to.
//
type APIError interface {
	error

	//
	// Code returns the HTTP status code that the error arrived with.
	//
	Code() int

	//
	// Message returns the actual error message provided by the API (if there was one).
	//
	Message() string
}
