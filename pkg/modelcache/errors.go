package modelcache

import (
	"errors"
	"fmt"
)

// ErrModelNotFound is returned by Get and Resolve when the id/string in
// question matches no cached model. List, Get and Resolve also return it
// when the foundation-model response body does not decode as JSON.
var ErrModelNotFound = errors.New("modelcache: model not found")

// ErrInvalidURL is returned for any error from the control-plane client's
// Get on the foundation-model endpoint, transport failures included.
var ErrInvalidURL = errors.New("modelcache: invalid control-plane URL")

// RequestFailedError wraps a non-2xx response from the foundation-model
// control-plane endpoint.
type RequestFailedError struct {
	Status int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("modelcache: control-plane request failed with status %d", e.Status)
}
