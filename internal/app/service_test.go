package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
)

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without ledgers", t, func() {
		svc := service.New()

		Convey("When starting it", func() {
			err := svc.Start(context.Background())

			Convey("Then it reports the missing wiring", func() {
				So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
				So(svc.Started(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a fully wired service", t, func() {
		e := newEnv(t)
		ctx := context.Background()

		Convey("When it is started and stopped", func() {
			So(e.svc.Start(ctx), ShouldBeNil)
			So(e.svc.Start(ctx), ShouldBeNil)
			started := e.svc.GetStats(ctx)["started"]
			e.svc.Stop(ctx)

			Convey("Then the stats follow", func() {
				So(started, ShouldEqual, true)
				So(e.svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SubmitValidation(t *testing.T) {
	Convey("Given a service", t, func() {
		e := newEnv(t)
		ctx := context.Background()

		Convey("When inputs are malformed", func() {
			cases := []model.Submission{
				{DisplayName: "   ", Value: 200},
				{DisplayName: "\u200b\x00", Value: 200},
				{DisplayName: "Ann", Value: -1},
				{DisplayName: "Ann", Value: math.NaN()},
				{DisplayName: "Ann", Value: math.Inf(1)},
			}

			Convey("Then each is rejected without side effects", func() {
				for _, c := range cases {
					_, err := e.svc.Submit(ctx, c)
					So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				}
				n, _ := e.scores.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When names carry noise", func() {
			res, err := e.svc.Submit(ctx, model.Submission{DisplayName: "  Ann\t", Tag: " red ", Value: 200})

			Convey("Then they are stored sanitized", func() {
				So(err, ShouldBeNil)
				row, _ := e.scores.Get(ctx, res.ScoreID)
				So(row.DisplayName, ShouldEqual, "Ann")
				So(row.Tag, ShouldEqual, "red")
			})
		})
	})
}

func TestService_SubmitPipeline(t *testing.T) {
	Convey("Given a service with healthy stores", t, func() {
		e := newEnv(t)
		ctx := context.Background()

		Convey("When a player submits several runs in one day", func() {
			values := []float64{200, 450, 300, 450, 100}
			var last types.SubmitResult
			for _, v := range values {
				last, _ = e.svc.Submit(ctx, playerRun("p1", "Ann", v))
			}

			Convey("Then the daily entry is the maximum submitted value", func() {
				v, found, ok := e.fast.Best(ctx, today, identity.Member("Ann", ""))
				So(ok, ShouldBeTrue)
				So(found, ShouldBeTrue)
				So(v, ShouldEqual, 450)
				So(*last.DailyRank, ShouldEqual, 1)
			})

			Convey("Then every run is in the ledger", func() {
				n, _ := e.scores.Count(ctx)
				So(n, ShouldEqual, len(values))
			})
		})

		Convey("When personal bests are tracked", func() {
			first, _ := e.svc.Submit(ctx, playerRun("p1", "Ann", 200))
			lower, _ := e.svc.Submit(ctx, playerRun("p1", "Ann", 150))
			equal, _ := e.svc.Submit(ctx, playerRun("p1", "Ann", 200))
			higher, _ := e.svc.Submit(ctx, playerRun("p1", "Annie", 260))

			Convey("Then only strictly better runs of the same player are new bests", func() {
				So(first.IsNewBest, ShouldBeTrue)
				So(lower.IsNewBest, ShouldBeFalse)
				So(equal.IsNewBest, ShouldBeFalse)
				So(higher.IsNewBest, ShouldBeTrue)
			})
		})

		Convey("When anonymous runs share a display name", func() {
			e.svc.Submit(ctx, run("Guest", 300))
			again, _ := e.svc.Submit(ctx, run("Guest", 250))

			Convey("Then the previous best is found by name", func() {
				So(again.IsNewBest, ShouldBeFalse)
			})
		})

		Convey("When computing all-time ranks", func() {
			e.svc.Submit(ctx, playerRun("p1", "Ann", 500))
			e.svc.Submit(ctx, playerRun("p1", "Ann", 600))
			e.svc.Submit(ctx, playerRun("p2", "Bob", 400))
			res, err := e.svc.Submit(ctx, playerRun("p3", "Cid", 300))

			Convey("Then better players are counted once each", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
				So(*res.AllTimeRank, ShouldEqual, 3)
				So(*res.DailyRank, ShouldEqual, 3)
				So(res.ScoreID, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestService_AntiCheat(t *testing.T) {
	Convey("Given a service with the default minimum completion", t, func() {
		e := newEnv(t)
		ctx := context.Background()

		Convey("When a victory is faster than possible", func() {
			sub := run("Eve", 90)
			sub.Victory = true
			res, err := e.svc.Submit(ctx, sub)

			Convey("Then it is rejected and flagged without a score row", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeFalse)
				So(res.Flagged, ShouldBeTrue)
				So(res.Reason, ShouldEqual, model.FlagReasonVictoryBelowMinimum)

				n, _ := e.scores.Count(ctx)
				So(n, ShouldEqual, 0)
				flagged, _ := e.flags.IsFlagged(ctx, "fp-Eve")
				So(flagged, ShouldBeTrue)
				_, found, _ := e.fast.Best(ctx, today, identity.Member("Eve", ""))
				So(found, ShouldBeFalse)
			})

			Convey("Then later runs from the same origin are accepted but flagged", func() {
				later, err := e.svc.Submit(ctx, run("Eve", 400))
				So(err, ShouldBeNil)
				So(later.Accepted, ShouldBeTrue)
				So(later.Flagged, ShouldBeTrue)
				So(later.AllTimeRank, ShouldBeNil)

				row, _ := e.scores.Get(ctx, later.ScoreID)
				So(row.Flagged, ShouldBeTrue)

				top, _ := e.svc.AllTimeLeaderboard(ctx, 10)
				So(top, ShouldBeEmpty)
			})
		})

		Convey("When a short run is not a victory", func() {
			res, err := e.svc.Submit(ctx, run("Ann", 30))

			Convey("Then it is accepted", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
				So(res.Flagged, ShouldBeFalse)
			})
		})

		Convey("When a victory meets the minimum exactly", func() {
			sub := run("Ann", 180)
			sub.Victory = true
			res, _ := e.svc.Submit(ctx, sub)

			Convey("Then it is accepted", func() {
				So(res.Accepted, ShouldBeTrue)
			})
		})
	})
}

func TestService_Degradation(t *testing.T) {
	Convey("Given a service whose fast store is down", t, func() {
		e := newEnv(t)
		ctx := context.Background()
		e.svc.Submit(ctx, playerRun("p2", "Bob", 500))
		e.fast.down.Store(true)

		Convey("When a score is submitted", func() {
			res, err := e.svc.Submit(ctx, playerRun("p1", "Ann", 300))

			Convey("Then the durable write still succeeds", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
				So(res.DailyRank, ShouldBeNil)
				So(*res.AllTimeRank, ShouldEqual, 2)
				So(res.IsNewBest, ShouldBeTrue)
			})

			Convey("Then the daily update waits for replay", func() {
				So(e.queue.Len(ctx), ShouldEqual, 1)
				u := <-e.queue.Dequeue(ctx)
				So(u.Day, ShouldEqual, today)
				So(u.Member, ShouldEqual, identity.Member("Ann", ""))
				So(u.Value, ShouldEqual, 300)
			})

			Convey("Then the daily leaderboard is served from the ledger", func() {
				top, err := e.svc.DailyLeaderboard(ctx, 10)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].DisplayName, ShouldEqual, "Bob")
				So(top[1].Rank, ShouldEqual, 2)
			})

			Convey("Then stats report the outage", func() {
				stats := e.svc.GetStats(ctx)
				So(stats["fastStoreAvailable"], ShouldEqual, false)
				So(stats["replayQueueLength"], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a service whose ledger rejects writes", t, func() {
		e := newEnv(t)
		e.svc = service.New(
			service.WithRanking(e.fast),
			service.WithScores(brokenScores{e.scores}),
			service.WithFlags(e.flags),
			service.WithRewards(e.rewards),
			service.WithClock(e.clock.Now),
		)

		Convey("When a score is submitted", func() {
			_, err := e.svc.Submit(context.Background(), run("Ann", 300))

			Convey("Then the submission fails as a durable write error", func() {
				So(errors.Is(err, service.ErrDurableWrite), ShouldBeTrue)
			})
		})
	})
}

func TestService_RateLimit(t *testing.T) {
	Convey("Given a service limited to two submissions per minute", t, func() {
		e := newEnv(t, service.WithRateLimit(2))
		ctx := context.Background()

		Convey("When one origin submits three times", func() {
			_, err1 := e.svc.Submit(ctx, run("Ann", 200))
			_, err2 := e.svc.Submit(ctx, run("Ann", 210))
			_, err3 := e.svc.Submit(ctx, run("Ann", 220))
			_, other := e.svc.Submit(ctx, run("Bob", 220))

			Convey("Then the third is refused and other origins are unaffected", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(errors.Is(err3, service.ErrRateLimited), ShouldBeTrue)
				So(other, ShouldBeNil)
			})
		})
	})
}

func TestService_Leaderboards(t *testing.T) {
	Convey("Given runs across two days", t, func() {
		e := newEnv(t, service.WithLeaderboardSize(3))
		ctx := context.Background()

		e.clock.Set(noon.Add(-24 * time.Hour))
		e.svc.Submit(ctx, run("Old", 900))
		e.clock.Set(noon)
		e.svc.Submit(ctx, run("Ann", 200))
		e.svc.Submit(ctx, run("Ann", 250))
		e.svc.Submit(ctx, model.Submission{DisplayName: "Ann", Tag: "red", Value: 220})
		e.svc.Submit(ctx, run("Bob", 300))
		e.svc.Submit(ctx, run("Cid", 100))

		Convey("When reading today's leaderboard", func() {
			top, err := e.svc.DailyLeaderboard(ctx, 0)

			Convey("Then only today's best per pair is ranked, up to the cap", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].DisplayName, ShouldEqual, "Bob")
				So(top[1].DisplayName, ShouldEqual, "Ann")
				So(top[1].Value, ShouldEqual, 250)
				So(top[2].Tag, ShouldEqual, "red")
				So(top[2].Rank, ShouldEqual, 3)
				So(top[0].Date.Equal(identity.DayStart(noon)), ShouldBeTrue)
			})
		})

		Convey("When reading the all-time leaderboard", func() {
			top, err := e.svc.AllTimeLeaderboard(ctx, 2)

			Convey("Then yesterday's runs count", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].DisplayName, ShouldEqual, "Old")
				So(top[0].Rank, ShouldEqual, 1)
			})
		})
	})
}

func TestService_DailyBoardFallback(t *testing.T) {
	Convey("Given today's runs including one from a flagged origin", t, func() {
		e := newEnv(t)
		ctx := context.Background()
		So(e.flags.Record(ctx, &model.Flag{Fingerprint: "fp-Eve", Reason: model.FlagReasonVictoryBelowMinimum, CreatedAt: noon}), ShouldBeNil)
		flagged, _ := e.svc.Submit(ctx, run("Eve", 500))
		e.svc.Submit(ctx, run("Ann", 200))
		e.svc.Submit(ctx, run("Bob", 300))

		Convey("When the board is read from the fast store and then from the ledger", func() {
			fast, err1 := e.svc.DailyLeaderboard(ctx, 10)
			e.fast.down.Store(true)
			ledger, err2 := e.svc.DailyLeaderboard(ctx, 10)

			Convey("Then both paths return the same entries", func() {
				So(flagged.Flagged, ShouldBeTrue)
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(len(fast), ShouldEqual, 3)
				So(fast[0].DisplayName, ShouldEqual, "Eve")
				So(ledger, ShouldResemble, fast)
			})
		})
	})
}
