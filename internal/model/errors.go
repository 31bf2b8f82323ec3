package model

import "errors"

// Error taxonomy shared by all components. Handlers map these to HTTP
// statuses; components wrap them with context via fmt.Errorf and %w.
var (
	// ErrNotFound means no release or asset matched a query. A user-level
	// condition, not an upstream failure.
	ErrNotFound = errors.New("not found")

	// ErrUpstream means a backend fetch failed or timed out. Retryable; the
	// index keeps serving its last good snapshot when this happens.
	ErrUpstream = errors.New("upstream failure")

	// ErrBadRequest means a required query parameter is missing or invalid.
	ErrBadRequest = errors.New("bad request")

	// ErrMalformedFeed means a release manifest failed to decode. Fatal for
	// the request; indicates corrupt backend data, never silently skipped.
	ErrMalformedFeed = errors.New("malformed release manifest")
)

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
