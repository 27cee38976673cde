// Package identity normalizes player identifiers and display names and
// derives the request-scoped keys used around them.
//
// Two key spaces are kept apart here: player identity (the caller-supplied
// opaque player id) and the request fingerprint (derived from network origin,
// used only for abuse signals). Nothing in this package converts one into the
// other.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Length caps, counted in runes after normalization.
const (
	MaxDisplayName = 50
	MaxTag         = 100
	MaxPlayerID    = 50
)

// fingerprintLen is the number of hex characters kept from the origin hash.
const fingerprintLen = 16

// memberSep joins display name and tag in fast store member keys. Sanitize
// removes control characters, so it never occurs inside either part.
const memberSep = "\x1f"

// DayLayout is the calendar-date layout of day keys.
const DayLayout = "2006-01-02"

// DisplayName sanitizes a display name. The result may be empty.
func DisplayName(s string) string { return clean(s, MaxDisplayName) }

// Tag sanitizes a secondary identity label. The result may be empty.
func Tag(s string) string { return clean(s, MaxTag) }

// PlayerID sanitizes an opaque player identifier. Empty means "absent".
func PlayerID(s string) string { return clean(s, MaxPlayerID) }

func clean(s string, limit int) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > limit {
		s = strings.TrimSpace(string(r[:limit]))
	}
	return s
}

// Fingerprint derives a non-reversible key from a network origin. An empty
// origin yields an empty fingerprint.
func Fingerprint(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(origin))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// DayKey returns the UTC calendar day of t. It changes at UTC midnight.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DayStart returns UTC midnight of the day containing t.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay returns UTC midnight of a day key.
func ParseDay(key string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, key, time.UTC)
}

// Member encodes the (display name, tag) pair used as the daily ranking key.
func Member(displayName, tag string) string {
	return displayName + memberSep + tag
}

// SplitMember reverses Member.
func SplitMember(member string) (displayName, tag string) {
	displayName, tag, _ = strings.Cut(member, memberSep)
	return displayName, tag
}
