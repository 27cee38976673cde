package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/identity"
	"github.com/okian/podium/internal/domain/model"
)

func TestService_Profiles(t *testing.T) {
	Convey("Given a service", t, func() {
		e := newEnv(t)
		ctx := context.Background()

		Convey("When a profile is saved", func() {
			saved, err := e.svc.SaveProfile(ctx, "p1", " Ann ", "red")

			Convey("Then it can be read back from the cache", func() {
				So(err, ShouldBeNil)
				So(saved.DisplayName, ShouldEqual, "Ann")
				cached, ok := e.fast.CachedProfile(ctx, "p1")
				So(ok, ShouldBeTrue)
				So(cached.Tag, ShouldEqual, "red")

				got, err := e.svc.Profile(ctx, "p1")
				So(err, ShouldBeNil)
				So(got.DisplayName, ShouldEqual, "Ann")
			})

			Convey("Then it survives a cache expiry", func() {
				e.clock.Set(noon.Add(2 * time.Hour))
				got, err := e.svc.Profile(ctx, "p1")
				So(err, ShouldBeNil)
				So(got.Tag, ShouldEqual, "red")
			})
		})

		Convey("When a profile is missing or malformed", func() {
			_, missing := e.svc.Profile(ctx, "ghost")
			_, noID := e.svc.Profile(ctx, "")
			_, noName := e.svc.SaveProfile(ctx, "p1", " ", "")

			Convey("Then the errors are typed", func() {
				So(errors.Is(missing, service.ErrNotFound), ShouldBeTrue)
				So(errors.Is(noID, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(noName, service.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_AdminScores(t *testing.T) {
	Convey("Given today's runs", t, func() {
		e := newEnv(t)
		ctx := context.Background()
		member := identity.Member("Ann", "")

		low, _ := e.svc.Submit(ctx, run("Ann", 200))
		best, _ := e.svc.Submit(ctx, run("Ann", 400))

		Convey("When today's best run is deleted", func() {
			So(e.svc.DeleteScore(ctx, best.ScoreID), ShouldBeNil)

			Convey("Then the daily entry falls back to the next best run", func() {
				v, found, _ := e.fast.Best(ctx, today, member)
				So(found, ShouldBeTrue)
				So(v, ShouldEqual, 200)
			})

			Convey("Then deleting the last run clears the entry", func() {
				So(e.svc.DeleteScore(ctx, low.ScoreID), ShouldBeNil)
				_, found, _ := e.fast.Best(ctx, today, member)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When a run that is not the best is deleted", func() {
			So(e.svc.DeleteScore(ctx, low.ScoreID), ShouldBeNil)

			Convey("Then the daily entry is untouched", func() {
				v, _, _ := e.fast.Best(ctx, today, member)
				So(v, ShouldEqual, 400)
			})
		})

		Convey("When the best run of a flagged origin is deleted", func() {
			So(e.flags.Record(ctx, &model.Flag{Fingerprint: "fp-Eve", Reason: model.FlagReasonVictoryBelowMinimum, CreatedAt: noon}), ShouldBeNil)
			eve := identity.Member("Eve", "")
			e.svc.Submit(ctx, run("Eve", 250))
			top, _ := e.svc.Submit(ctx, run("Eve", 350))
			So(top.Flagged, ShouldBeTrue)
			So(e.svc.DeleteScore(ctx, top.ScoreID), ShouldBeNil)

			Convey("Then the daily entry falls back to its other flagged run", func() {
				v, found, _ := e.fast.Best(ctx, today, eve)
				So(found, ShouldBeTrue)
				So(v, ShouldEqual, 250)
			})
		})

		Convey("When a missing run is deleted", func() {
			err := e.svc.DeleteScore(ctx, 999)

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When listing runs", func() {
			rows, err := e.svc.ListScores(ctx, 0, 0)

			Convey("Then they come newest first", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0].ID, ShouldEqual, best.ScoreID)
			})
		})

		Convey("When a flagged run is unflagged", func() {
			So(e.scores.SetFlagged(ctx, best.ScoreID, true), ShouldBeNil)
			So(e.svc.UnflagScore(ctx, best.ScoreID), ShouldBeNil)

			Convey("Then it counts again", func() {
				row, _ := e.scores.Get(ctx, best.ScoreID)
				So(row.Flagged, ShouldBeFalse)
				So(errors.Is(e.svc.UnflagScore(ctx, 999), service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_AdminFlags(t *testing.T) {
	Convey("Given flagged origins", t, func() {
		e := newEnv(t)
		ctx := context.Background()
		for _, name := range []string{"Eve", "Mal"} {
			sub := run(name, 10)
			sub.Victory = true
			e.svc.Submit(ctx, sub)
		}

		Convey("When listing flags", func() {
			flags, err := e.svc.ListFlags(ctx, 10)

			Convey("Then both are present", func() {
				So(err, ShouldBeNil)
				So(len(flags), ShouldEqual, 2)
			})
		})

		Convey("When clearing one origin", func() {
			n, err := e.svc.ClearFlags(ctx, "fp-Eve")

			Convey("Then only that origin is cleared", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				res, _ := e.svc.Submit(ctx, run("Eve", 400))
				So(res.Flagged, ShouldBeFalse)
				res, _ = e.svc.Submit(ctx, run("Mal", 400))
				So(res.Flagged, ShouldBeTrue)
			})
		})

		Convey("When clearing everything", func() {
			n, err := e.svc.ClearFlags(ctx, "")

			Convey("Then no flags remain", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})
}
