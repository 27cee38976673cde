package ranking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreRanking(t *testing.T) {
	Convey("Given a redis backed fast store", t, func() {
		s, mr := newTestRedis(t)
		ctx := context.Background()
		day := "2026-10-19"
		ann := identity.Member("Ann", "")
		bob := identity.Member("Bob", "clan")

		Convey("When the first value is stored", func() {
			rank, ok := s.UpsertIfBetter(ctx, day, ann, 200)

			Convey("Then it ranks first and the bucket expires in a day", func() {
				So(ok, ShouldBeTrue)
				So(rank, ShouldEqual, 0)
				So(mr.TTL("podium:daily:"+day), ShouldEqual, DayTTL)
			})
		})

		Convey("When a worse value follows a better one", func() {
			s.UpsertIfBetter(ctx, day, ann, 300)
			rank, ok := s.UpsertIfBetter(ctx, day, ann, 250)
			v, found, _ := s.Best(ctx, day, ann)

			Convey("Then the stored best does not decrease", func() {
				So(ok, ShouldBeTrue)
				So(rank, ShouldEqual, 0)
				So(found, ShouldBeTrue)
				So(v, ShouldEqual, 300)
			})
		})

		Convey("When several members compete", func() {
			s.UpsertIfBetter(ctx, day, ann, 200)
			s.UpsertIfBetter(ctx, day, bob, 400)
			rank, _ := s.UpsertIfBetter(ctx, day, ann, 210)
			top, ok := s.TopN(ctx, day, 10)
			card, _ := s.Cardinality(ctx, day)

			Convey("Then the order is best first", func() {
				So(ok, ShouldBeTrue)
				So(rank, ShouldEqual, 1)
				So(card, ShouldEqual, 2)
				So(len(top), ShouldEqual, 2)
				So(top[0].DisplayName, ShouldEqual, "Bob")
				So(top[0].Tag, ShouldEqual, "clan")
				So(top[0].Value, ShouldEqual, 400)
				So(top[1].DisplayName, ShouldEqual, "Ann")
				So(top[1].Value, ShouldEqual, 210)
			})

			Convey("And TopN honors the limit", func() {
				one, _ := s.TopN(ctx, day, 1)
				So(len(one), ShouldEqual, 1)
				So(one[0].DisplayName, ShouldEqual, "Bob")
			})

			Convey("And a removed member disappears", func() {
				So(s.Remove(ctx, day, bob), ShouldBeTrue)
				_, found, ok := s.Best(ctx, day, bob)
				So(ok, ShouldBeTrue)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When buckets for different days are written", func() {
			s.UpsertIfBetter(ctx, "2026-10-18", ann, 999)
			s.UpsertIfBetter(ctx, day, bob, 1)
			top, _ := s.TopN(ctx, day, 10)

			Convey("Then they stay separate", func() {
				So(len(top), ShouldEqual, 1)
				So(top[0].DisplayName, ShouldEqual, "Bob")
			})
		})

		Convey("When the bucket lives past its expiry", func() {
			s.UpsertIfBetter(ctx, day, ann, 200)
			mr.FastForward(DayTTL + time.Second)
			top, ok := s.TopN(ctx, day, 10)

			Convey("Then it is empty", func() {
				So(ok, ShouldBeTrue)
				So(top, ShouldBeEmpty)
			})
		})
	})
}

func TestRedisStoreUnavailable(t *testing.T) {
	Convey("Given a fast store whose server goes away", t, func() {
		clock := &fakeClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
		s, mr := newTestRedis(t,
			WithRetryCooldown(5*time.Second),
			WithDialTimeout(100*time.Millisecond),
			WithOpTimeout(100*time.Millisecond),
			WithRedisClock(clock.Now),
		)
		ctx := context.Background()
		day := "2026-10-19"
		So(s.Available(ctx), ShouldBeTrue)

		mr.Close()

		Convey("When writing while it is down", func() {
			_, ok := s.UpsertIfBetter(ctx, day, "x", 10)
			_, okTop := s.TopN(ctx, day, 5)

			Convey("Then calls report unavailable instead of failing", func() {
				So(ok, ShouldBeFalse)
				So(okTop, ShouldBeFalse)
				So(s.Available(ctx), ShouldBeFalse)
			})

			Convey("And rate limiting fails open", func() {
				So(s.Allow(ctx, "fp", 1, time.Minute), ShouldBeTrue)
				So(s.Allow(ctx, "fp", 1, time.Minute), ShouldBeTrue)
			})
		})

		Convey("When the server returns", func() {
			s.UpsertIfBetter(ctx, day, "x", 10)
			So(mr.Restart(), ShouldBeNil)

			Convey("Then the store stays down during the cooldown", func() {
				So(s.Available(ctx), ShouldBeFalse)
			})

			Convey("Then it reconnects after the cooldown", func() {
				clock.Advance(6 * time.Second)
				So(s.Available(ctx), ShouldBeTrue)
				rank, ok := s.UpsertIfBetter(ctx, day, "x", 10)
				So(ok, ShouldBeTrue)
				So(rank, ShouldEqual, 0)
			})
		})
	})
}

func TestRedisStoreNeverConnected(t *testing.T) {
	Convey("Given a fast store pointing at nothing", t, func() {
		s := NewRedisStore("127.0.0.1:1", WithDialTimeout(50*time.Millisecond))
		defer s.Close()

		Convey("Then every call degrades", func() {
			_, ok := s.UpsertIfBetter(context.Background(), "2026-10-19", "x", 1)
			So(ok, ShouldBeFalse)
			_, ok = s.Cardinality(context.Background(), "2026-10-19")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRedisStoreLimiterAndCache(t *testing.T) {
	Convey("Given a redis backed fast store", t, func() {
		s, _ := newTestRedis(t)
		ctx := context.Background()

		Convey("When a key exceeds its window limit", func() {
			first := s.Allow(ctx, "fp", 2, time.Minute)
			second := s.Allow(ctx, "fp", 2, time.Minute)
			third := s.Allow(ctx, "fp", 2, time.Minute)
			other := s.Allow(ctx, "other", 2, time.Minute)

			Convey("Then only the overflow is refused", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeTrue)
				So(third, ShouldBeFalse)
				So(other, ShouldBeTrue)
			})
		})

		Convey("When a profile is cached", func() {
			p := model.Profile{PlayerID: "p1", DisplayName: "Ann", Tag: "t"}
			So(s.CacheProfile(ctx, p, time.Hour), ShouldBeTrue)
			got, ok := s.CachedProfile(ctx, "p1")
			_, missing := s.CachedProfile(ctx, "p2")

			Convey("Then it can be read back", func() {
				So(ok, ShouldBeTrue)
				So(got.DisplayName, ShouldEqual, "Ann")
				So(got.Tag, ShouldEqual, "t")
				So(missing, ShouldBeFalse)
			})
		})
	})
}

func TestRedisStoreCallerCancellation(t *testing.T) {
	Convey("Given a healthy redis backed fast store", t, func() {
		s, _ := newTestRedis(t)
		day := "2026-10-19"
		ann := identity.Member("Ann", "")
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When the first call arrives on an already cancelled context", func() {
			_, first := s.UpsertIfBetter(cancelled, day, ann, 200)
			rank, next := s.UpsertIfBetter(context.Background(), day, ann, 210)

			Convey("Then only that call degrades", func() {
				So(first, ShouldBeFalse)
				So(next, ShouldBeTrue)
				So(rank, ShouldEqual, 0)
				So(s.Available(context.Background()), ShouldBeTrue)
			})
		})

		Convey("When a connected store sees a cancelled request", func() {
			_, warm := s.UpsertIfBetter(context.Background(), day, ann, 200)
			s.UpsertIfBetter(cancelled, day, ann, 300)
			s.TopN(cancelled, day, 10)
			top, ok := s.TopN(context.Background(), day, 10)

			Convey("Then other requests keep their daily ranks", func() {
				So(warm, ShouldBeTrue)
				So(ok, ShouldBeTrue)
				So(len(top), ShouldEqual, 1)
			})
		})
	})
}
