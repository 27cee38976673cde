package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/metrics"
)

type bucket struct {
	root      *node
	byMember  map[string]float64
	expiresAt time.Time
}

type window struct {
	count     int
	expiresAt time.Time
}

type cachedProfile struct {
	profile   model.Profile
	expiresAt time.Time
}

// MemoryStore is a single-process fast store. It keeps one treap per day
// bucket and is always available. Expired entries are dropped lazily and by
// Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	windows  map[string]*window
	profiles map[string]cachedProfile
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		buckets:  make(map[string]*bucket),
		windows:  make(map[string]*window),
		profiles: make(map[string]cachedProfile),
		ttl:      DayTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bucketLocked returns the live bucket for day, or nil. Caller holds mu.
func (s *MemoryStore) bucketLocked(day string, now time.Time) *bucket {
	b, ok := s.buckets[day]
	if !ok {
		return nil
	}
	if !now.Before(b.expiresAt) {
		return nil
	}
	return b
}

// UpsertIfBetter implements Ranker.
func (s *MemoryStore) UpsertIfBetter(_ context.Context, day, member string, value float64) (int64, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucketLocked(day, now)
	if b == nil {
		b = &bucket{byMember: make(map[string]float64)}
		s.buckets[day] = b
	}
	b.expiresAt = now.Add(s.ttl)

	old, exists := b.byMember[member]
	if !exists || value > old {
		if exists {
			b.root = deleteNode(b.root, member, old)
		}
		b.byMember[member] = value
		b.root = insert(b.root, member, value)
	}

	metrics.RecordFastStoreOp("upsert", "ok")
	return int64(rankOf(b.root, member, b.byMember[member])), true
}

// TopN implements Ranker.
func (s *MemoryStore) TopN(_ context.Context, day string, n int) ([]Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, max(n, 0))
	if b := s.bucketLocked(day, s.now()); b != nil && n > 0 {
		collectTopN(b.root, n, &out)
	}
	metrics.RecordFastStoreOp("top", "ok")
	return out, true
}

// Cardinality implements Ranker.
func (s *MemoryStore) Cardinality(_ context.Context, day string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b := s.bucketLocked(day, s.now()); b != nil {
		return int64(len(b.byMember)), true
	}
	return 0, true
}

// Best implements Ranker.
func (s *MemoryStore) Best(_ context.Context, day, member string) (float64, bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.bucketLocked(day, s.now())
	if b == nil {
		return 0, false, true
	}
	v, found := b.byMember[member]
	return v, found, true
}

// Remove implements Ranker.
func (s *MemoryStore) Remove(_ context.Context, day, member string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucketLocked(day, s.now())
	if b == nil {
		return true
	}
	if v, ok := b.byMember[member]; ok {
		b.root = deleteNode(b.root, member, v)
		delete(b.byMember, member)
	}
	metrics.RecordFastStoreOp("remove", "ok")
	return true
}

// Allow implements Limiter with fixed windows aligned to the clock.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, win time.Duration) bool {
	if limit <= 0 || win <= 0 {
		return true
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Truncate(win).Add(win)}
		s.windows[key] = w
	}
	w.count++
	return w.count <= limit
}

// CacheProfile implements ProfileCache.
func (s *MemoryStore) CacheProfile(_ context.Context, p model.Profile, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.PlayerID] = cachedProfile{profile: p, expiresAt: s.now().Add(ttl)}
	return true
}

// CachedProfile implements ProfileCache.
func (s *MemoryStore) CachedProfile(_ context.Context, playerID string) (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.profiles[playerID]
	if !ok || !s.now().Before(c.expiresAt) {
		return model.Profile{}, false
	}
	return c.profile, true
}

// Available implements Store.
func (s *MemoryStore) Available(context.Context) bool { return true }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Sweep drops every expired bucket, rate window and cached profile and
// returns the number of day buckets removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for day, b := range s.buckets {
		if !now.Before(b.expiresAt) {
			delete(s.buckets, day)
			removed++
		}
	}
	for key, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, key)
		}
	}
	for id, c := range s.profiles {
		if !now.Before(c.expiresAt) {
			delete(s.profiles, id)
		}
	}
	return removed
}
