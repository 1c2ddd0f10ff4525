package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrLockHeld             = errors.New("lock already held")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrCapitalNotConfigured = errors.New("capital not configured")
	ErrVenueUnavailable     = errors.New("venue unavailable")
	ErrVenueRejected        = errors.New("venue rejected order")
	ErrRateLimited          = errors.New("rate limited")
)
