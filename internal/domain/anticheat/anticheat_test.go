package anticheat_test

import (
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/anticheat"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGate_Evaluate(t *testing.T) {
	Convey("Given a gate with a 180 second floor", t, func() {
		gate := anticheat.New(anticheat.WithMinCompletionSeconds(180))

		Convey("When a victory run is faster than the floor", func() {
			v := gate.Evaluate(150, true)

			Convey("Then it should be rejected and flagged", func() {
				So(v.Accepted, ShouldBeFalse)
				So(v.ShouldFlag, ShouldBeTrue)
			})
		})

		Convey("When a victory run hits the floor exactly", func() {
			v := gate.Evaluate(180, true)

			Convey("Then it should be accepted", func() {
				So(v.Accepted, ShouldBeTrue)
				So(v.ShouldFlag, ShouldBeFalse)
			})
		})

		Convey("When non-victory runs carry any value", func() {
			Convey("Then none of them should be rejected", func() {
				for _, value := range []float64{0, 1, 179.99, 180, 5000} {
					v := gate.Evaluate(value, false)
					So(v.Accepted, ShouldBeTrue)
					So(v.ShouldFlag, ShouldBeFalse)
				}
			})
		})
	})

	Convey("Given a gate built with defaults", t, func() {
		gate := anticheat.New()

		Convey("Then the floor should be the default completion time", func() {
			So(gate.MinCompletionSeconds(), ShouldEqual, anticheat.DefaultMinCompletion.Seconds())
		})
	})

	Convey("Given a gate configured by duration", t, func() {
		gate := anticheat.New(anticheat.WithMinCompletion(2 * time.Minute))

		Convey("Then negative overrides should be ignored", func() {
			anticheat.WithMinCompletionSeconds(-1)(gate)
			So(gate.MinCompletionSeconds(), ShouldEqual, 120)
		})
	})
}
