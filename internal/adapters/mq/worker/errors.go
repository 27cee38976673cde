package worker

import "errors"

// Sentinel kinds for replay errors.
var (
	ErrStopped   = errors.New("worker stopped")
	ErrExpired   = errors.New("update belongs to a past day")
	ErrExhausted = errors.New("replay attempts exhausted")
)
