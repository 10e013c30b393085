package domain

import "errors"

var (
	// ErrInvalidParameter is returned for bad input when creating a link.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrTampered covers bad signatures, unexpected algorithms and malformed tokens.
	ErrTampered = errors.New("token tampered or malformed")
	ErrExpired  = errors.New("token expired")
	// ErrBackendUnavailable means the dedup store could not be reached.
	// Redemption must fail rather than skip deduplication.
	ErrBackendUnavailable = errors.New("dedup backend unavailable")
	ErrMissingState       = errors.New("state is required")
)
