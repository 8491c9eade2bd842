package exchange

import (
	"fmt"
	"net/http"
	"time"
)

//
// HTTPError represents an error due to a non-2xx response from an API endpoint whose body did not
// carry a usable API error.
//
type HTTPError struct {
	statusCode int
}

func NewHTTPError(statusCode int) *HTTPError {
	return &HTTPError{
		statusCode: statusCode,
	}
}

func (o *HTTPError) StatusCode() int {
	return o.statusCode
}

func (o *HTTPError) Error() string {
	return fmt.Sprintf("server responded with a %d status code", o.statusCode)
}

//
// ClassifyStatus wraps the cause of a non-2xx response in the transient/permanent taxonomy. Rate
// limiting and server-side failures are transient (and carry the suggested wait, if any). Every
// other status is permanent.
//
func ClassifyStatus(statusCode int, retryAfter time.Duration, cause error) error {
	if cause == nil {
		cause = NewHTTPError(statusCode)
	}

	if statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError {
		return &TransientError{StatusCode: statusCode, RetryAfter: retryAfter, Err: cause}
	}

	return &PermanentError{StatusCode: statusCode, Err: cause}
}
