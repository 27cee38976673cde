package ranking

import "errors"

// Sentinel kinds for fast store errors. They are logged, never returned to
// callers of Store.
var (
	ErrUnavailable = errors.New("fast store unavailable")
	ErrClosed      = errors.New("fast store closed")
)
