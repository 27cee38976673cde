package identity_test

import (
	"strings"
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/identity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSanitize(t *testing.T) {
	Convey("Given raw identity inputs", t, func() {
		Convey("When a display name has padding and control characters", func() {
			got := identity.DisplayName("  An\x00n\u200b\t ")

			Convey("Then they should be stripped", func() {
				So(got, ShouldEqual, "Ann")
			})
		})

		Convey("When a display name is too long", func() {
			got := identity.DisplayName(strings.Repeat("é", 80))

			Convey("Then it should be capped by runes, not bytes", func() {
				So([]rune(got), ShouldHaveLength, identity.MaxDisplayName)
			})
		})

		Convey("When a name uses decomposed accents", func() {
			got := identity.DisplayName("Zoe\u0301")

			Convey("Then it should be NFC normalized", func() {
				So(got, ShouldEqual, "Zo\u00e9")
			})
		})

		Convey("When tag and player id exceed their caps", func() {
			tag := identity.Tag(strings.Repeat("t", 150))
			pid := identity.PlayerID(strings.Repeat("p", 60))

			Convey("Then each should use its own cap", func() {
				So(tag, ShouldHaveLength, identity.MaxTag)
				So(pid, ShouldHaveLength, identity.MaxPlayerID)
			})
		})

		Convey("When a player id is blank", func() {
			Convey("Then it should be treated as absent", func() {
				So(identity.PlayerID("   "), ShouldEqual, "")
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given a network origin", t, func() {
		fp := identity.Fingerprint("203.0.113.7")

		Convey("Then the fingerprint should be short, stable and not contain the origin", func() {
			So(fp, ShouldHaveLength, 16)
			So(identity.Fingerprint("203.0.113.7"), ShouldEqual, fp)
			So(fp, ShouldNotContainSubstring, "203")
			So(identity.Fingerprint("203.0.113.8"), ShouldNotEqual, fp)
		})

		Convey("Then an empty origin should yield an empty fingerprint", func() {
			So(identity.Fingerprint(""), ShouldEqual, "")
		})
	})
}

func TestDayKey(t *testing.T) {
	Convey("Given timestamps around UTC midnight", t, func() {
		east := time.FixedZone("UTC+3", 3*60*60)
		before := time.Date(2026, 10, 19, 23, 59, 59, 0, time.UTC)
		after := before.Add(2 * time.Second)
		local := time.Date(2026, 10, 20, 1, 0, 0, 0, east)

		Convey("Then the key should change exactly at UTC midnight", func() {
			So(identity.DayKey(before), ShouldEqual, "2026-10-19")
			So(identity.DayKey(after), ShouldEqual, "2026-10-20")
		})

		Convey("Then local offsets should not matter", func() {
			So(identity.DayKey(local), ShouldEqual, "2026-10-19")
			So(identity.DayStart(local), ShouldEqual, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
		})

		Convey("Then ParseDay should invert DayKey", func() {
			d, err := identity.ParseDay("2026-10-19")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, identity.DayStart(before))
		})
	})
}

func TestMember(t *testing.T) {
	Convey("Given a display name and tag", t, func() {
		m := identity.Member("Ann", "speedrun")

		Convey("Then SplitMember should recover both parts", func() {
			name, tag := identity.SplitMember(m)
			So(name, ShouldEqual, "Ann")
			So(tag, ShouldEqual, "speedrun")
		})

		Convey("Then an empty tag should still round trip", func() {
			name, tag := identity.SplitMember(identity.Member("Bo", ""))
			So(name, ShouldEqual, "Bo")
			So(tag, ShouldEqual, "")
		})
	})
}
