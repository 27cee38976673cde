// Package ranking implements the fast, ephemeral daily ranking store.
//
// Every operation is best effort. Instead of returning errors, operations
// report ok=false when the backend could not answer, and callers treat the
// derived value as unknown.
package ranking

import (
	"context"
	"time"

	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
)

// DayTTL is how long a day bucket survives after its most recent write.
const DayTTL = 24 * time.Hour

// Entry is one ranked member of a day bucket.
type Entry struct {
	Member      string
	DisplayName string
	Tag         string
	Value       float64
}

func newEntry(member string, value float64) Entry {
	name, tag := identity.SplitMember(member)
	return Entry{Member: member, DisplayName: name, Tag: tag, Value: value}
}

// Ranker is the daily ranking contract.
type Ranker interface {
	// UpsertIfBetter stores value for member unless the member already has an
	// equal or better value, refreshes the bucket expiry and returns the
	// member's 0-indexed best-first rank.
	UpsertIfBetter(ctx context.Context, day, member string, value float64) (rank int64, ok bool)
	// TopN returns up to n members best-first.
	TopN(ctx context.Context, day string, n int) ([]Entry, bool)
	// Cardinality returns the number of members in the bucket.
	Cardinality(ctx context.Context, day string) (int64, bool)
	// Best returns the member's stored value.
	Best(ctx context.Context, day, member string) (value float64, found bool, ok bool)
	// Remove deletes member from the bucket.
	Remove(ctx context.Context, day, member string) bool
}

// Limiter counts events per key in fixed windows.
type Limiter interface {
	// Allow records one event for key and reports whether the count within
	// the current window is at most limit. It fails open.
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

// ProfileCache holds recently read or written profiles.
type ProfileCache interface {
	CacheProfile(ctx context.Context, p model.Profile, ttl time.Duration) bool
	CachedProfile(ctx context.Context, playerID string) (model.Profile, bool)
}

// Store is a complete fast store backend.
type Store interface {
	Ranker
	Limiter
	ProfileCache

	// Available reports whether the backend is currently usable.
	Available(ctx context.Context) bool
	Close() error
}
