// Package dedupe tracks the idempotency keys of recently accepted requests.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxSize = 50000
	defaultTTL     = 10 * time.Minute

	// compactSlack is how many stale FIFO items are tolerated before
	// Unrecord rewrites the FIFO.
	compactSlack = 64
)

// Deduper records idempotency keys so a retried request is applied once.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen within the window and
	// records it if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a request that failed can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key string
	at  time.Time
	seq uint64
}

// inMemoryDeduper keeps keys in a map plus a FIFO of insertion times.
// Keys leave by expiry, by eviction of the oldest when full, or by Unrecord.
// FIFO items whose key was unrecorded or re-recorded are skipped lazily.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	order   []entry
	seq     uint64
	head    int
	maxSize int // 0 or negative = unbounded
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expireLocked(now)

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize && d.popLocked() {
		}
	}
	d.seq++
	d.seen[key] = d.seq
	d.order = append(d.order, entry{key: key, at: now, seq: d.seq})
	d.size.Store(int64(len(d.seen)))
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seq, ok := d.seen[key]
	if !ok {
		return
	}
	delete(d.seen, key)
	if n := len(d.order); n > d.head && d.order[n-1].seq == seq {
		d.order[n-1] = entry{}
		d.order = d.order[:n-1]
	} else if len(d.order)-d.head > 2*len(d.seen)+compactSlack {
		d.compactLocked()
	}
	d.size.Store(int64(len(d.seen)))
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// expireLocked drops keys older than the window from the FIFO head.
func (d *inMemoryDeduper) expireLocked(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for d.head < len(d.order) && !now.Before(d.order[d.head].at.Add(d.ttl)) {
		d.popLocked()
	}
	d.size.Store(int64(len(d.seen)))
}

// popLocked removes the oldest FIFO item, deleting its key when the item
// is still the live record. Reports false when the FIFO is empty.
func (d *inMemoryDeduper) popLocked() bool {
	if d.head >= len(d.order) {
		return false
	}
	e := d.order[d.head]
	d.order[d.head] = entry{}
	d.head++
	if seq, ok := d.seen[e.key]; ok && seq == e.seq {
		delete(d.seen, e.key)
	}
	if d.head > len(d.order)/2 {
		d.order = append(d.order[:0], d.order[d.head:]...)
		d.head = 0
	}
	return true
}

// compactLocked drops FIFO items whose key is no longer live under the same
// sequence number.
func (d *inMemoryDeduper) compactLocked() {
	live := d.order[:0]
	for _, e := range d.order[d.head:] {
		if seq, ok := d.seen[e.key]; ok && seq == e.seq {
			live = append(live, e)
		}
	}
	clear(d.order[len(live):])
	d.order = live
	d.head = 0
}
