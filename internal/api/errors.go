package api

import (
	"errors"
	"fmt"
)

// DefaultReason is reported when a failed response carries no reason
const DefaultReason = "Request failed"

// ErrDecode marks a response body that was not valid JSON for the target type
var ErrDecode = errors.New("malformed response body")

// APIError is the typed failure for every call to the dispenser service.
// HTTPStatus is zero when the request never got a response.
type APIError struct {
	HTTPStatus int
	Reason     string
	Err        error
}

func (e *APIError) Error() string {
	if e.HTTPStatus == 0 {
		return fmt.Sprintf("dispenser unreachable: %v", e.Err)
	}
	return fmt.Sprintf("dispenser returned %d: %s", e.HTTPStatus, e.Reason)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the failure was a connectivity problem that
// the next poll may recover from.
func (e *APIError) IsTransient() bool {
	return e.HTTPStatus == 0
}

// ReasonText returns the text to show a user for err: the server reason when
// one was supplied, otherwise DefaultReason.
func ReasonText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return apiErr.Reason
	}
	return DefaultReason
}
