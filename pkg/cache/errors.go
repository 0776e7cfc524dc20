package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNotFound is returned when a key does not exist in the cache or has expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrClosed is returned when an operation is attempted on a closed cache.
	ErrClosed = errors.New("cache: closed")

	// ErrWrite is returned when a payload cannot be stored. The cache is left unmodified.
	ErrWrite = errors.New("cache: failed to write entry")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("cache: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")

	// ErrTypeMismatch is returned by a Bucket when a stored payload is not of the bucket's type.
	ErrTypeMismatch = errors.New("cache: unexpected payload type")

	// ErrInvalidNamespace is returned when a namespace has no prefix or a non-positive TTL.
	ErrInvalidNamespace = errors.New("cache: invalid namespace")

	// ErrUnknownNamespace is returned when a catalog has no namespace with the requested name.
	ErrUnknownNamespace = errors.New("cache: unknown namespace")

	// ErrHealthcheckFailed is returned by Healthcheck when the manager cannot serve requests.
	ErrHealthcheckFailed = errors.New("cache: healthcheck failed")
)
