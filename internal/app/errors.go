package service

import "errors"

// Sentinel kinds for service errors. The HTTP layer maps them to statuses.
var (
	ErrValidation    = errors.New("validation failed")
	ErrRateLimited   = errors.New("rate limited")
	ErrDurableWrite  = errors.New("durable write failed")
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("service not configured")
)
