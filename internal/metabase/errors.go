package metabase

import "fmt"

// ValidationError reports caller-supplied arguments failing a required
// field or range check. It is produced before any network call is made.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// TransportError reports a network-level failure (dial timeout, request
// timeout, connection refused, DNS). No response was received.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteAPIError reports a non-2xx response from the Metabase API.
// Body carries the remote error payload verbatim.
type RemoteAPIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("%s: API request failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
