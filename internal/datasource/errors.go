package datasource

import (
	"fmt"
	"net/http"
)

// NotFoundError is returned when no administrative relation matches a boundary name
type NotFoundError struct {
	Boundary string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no administrative relation found for %q", e.Boundary)
}

// UpstreamServiceError is returned when Overpass answers with a non-success status
type UpstreamServiceError struct {
	Body       string
	StatusCode int
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("overpass error: %d %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying (rate limiting or a server-side failure).
func (e *UpstreamServiceError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TransportError wraps network-level failures reaching Overpass
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("overpass transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
