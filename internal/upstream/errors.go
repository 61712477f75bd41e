package upstream

import (
	"errors"
	"fmt"
)

// ErrUnavailable wraps transport failures where no response was received.
var ErrUnavailable = errors.New("upstream unavailable")

// APIError is a response the upstream rejected.
type APIError struct {
	Status   int
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream %s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("upstream %s: %d: %s", e.Endpoint, e.Status, e.Message)
}

// IsStatus reports whether err carries the given upstream status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
