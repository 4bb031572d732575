// Package common defines shared constants and sentinel errors used across
// the distribution and federation jobs. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Distribution run errors.
	ErrOutsideWindow = errors.New("distribution triggered outside of its time window")

	// Worker pool errors.
	ErrTaskFailed      = errors.New("task failed")
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrPoolClosed      = errors.New("pool closed")

	// Federation transport errors.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrMalformedBody    = errors.New("malformed response body")

	// Signing errors.
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnsupportedKey   = errors.New("unsupported key")
)
