// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested note or version does not exist
	// for the given owner. Cross-owner access is deliberately
	// indistinguishable from absence.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., duplicate id or email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrContention indicates a row lock on a hot note could not be acquired in time.
	ErrContention = errors.New("contention")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
